package extract

import (
	"fmt"
	"strings"
	"testing"
)

func TestFullText_PageMarkers(t *testing.T) {
	r := &ExtractionResult{
		TotalPages: 2,
		PageTexts:  []string{"first page", "second page"},
	}
	got := r.FullText()
	want := "--- Page 1 ---\nfirst page\n\n--- Page 2 ---\nsecond page"
	if got != want {
		t.Errorf("FullText =\n%q\nwant\n%q", got, want)
	}
}

func TestIsEmpty(t *testing.T) {
	r := &ExtractionResult{TotalPages: 3, PageTexts: []string{"", "", ""}}
	if !r.IsEmpty() {
		t.Error("image-only extraction should be empty")
	}
	r.CharsExtracted = 5
	if r.IsEmpty() {
		t.Error("non-zero chars should not be empty")
	}
}

func TestChunkForAnalysis_SmallDocSingleChunk(t *testing.T) {
	r := &ExtractionResult{
		TotalPages:     4,
		PageTexts:      []string{"a", "b", "c", "d"},
		CharsExtracted: 4,
	}
	chunks := ChunkForAnalysis(r, 50)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	c := chunks[0]
	if c.PageStart != 1 || c.PageEnd != 4 || c.ChunkIndex != 0 || c.TotalChunks != 1 {
		t.Errorf("chunk = %+v", c)
	}
	if c.Text != r.FullText() {
		t.Error("single chunk should carry the full text")
	}
}

func bigResult(pages, charsPerPage int) *ExtractionResult {
	r := &ExtractionResult{TotalPages: pages}
	for i := 0; i < pages; i++ {
		text := strings.Repeat("x", charsPerPage)
		r.PageTexts = append(r.PageTexts, text)
		r.CharsExtracted += len(text)
	}
	return r
}

func TestChunkForAnalysis_LargeDocPageRanges(t *testing.T) {
	// 120 pages of 1000 chars is well past the small-doc threshold.
	r := bigResult(120, 1000)
	chunks := ChunkForAnalysis(r, 50)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}

	ranges := [][2]int{{1, 50}, {51, 100}, {101, 120}}
	for i, c := range chunks {
		if c.PageStart != ranges[i][0] || c.PageEnd != ranges[i][1] {
			t.Errorf("chunk %d pages = %d-%d, want %d-%d", i, c.PageStart, c.PageEnd, ranges[i][0], ranges[i][1])
		}
		if c.ChunkIndex != i || c.TotalChunks != 3 {
			t.Errorf("chunk %d index/total = %d/%d", i, c.ChunkIndex, c.TotalChunks)
		}
	}

	// Page markers inside each chunk use absolute page numbers.
	if !strings.HasPrefix(chunks[1].Text, "--- Page 51 ---") {
		t.Errorf("chunk 1 should start at page 51: %q", chunks[1].Text[:40])
	}
	if !strings.Contains(chunks[2].Text, fmt.Sprintf("--- Page %d ---", 120)) {
		t.Error("chunk 2 should contain the final page marker")
	}
}

func TestChunkForAnalysis_DefaultChunkPages(t *testing.T) {
	r := bigResult(60, 3000)
	chunks := ChunkForAnalysis(r, 0)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 with the %d-page default", len(chunks), DefaultChunkPages)
	}
}
