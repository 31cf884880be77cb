package extract

import (
	"github.com/hliu/living-archive/internal/analysis"
)

// Docs under this character count stay as a single chunk.
const SmallDocThreshold = 100_000

// DefaultChunkPages is the chunk size in pages (not tokens — simpler and
// model-agnostic).
const DefaultChunkPages = 50

// ChunkForAnalysis splits an extraction result into page-range chunks for the
// analysis dispatcher. Small documents stay whole; large ones are cut into
// chunkPages-page slices with page markers renumbered per slice.
func ChunkForAnalysis(result *ExtractionResult, chunkPages int) []analysis.TextChunk {
	if chunkPages <= 0 {
		chunkPages = DefaultChunkPages
	}

	full := result.FullText()
	if len(full) < SmallDocThreshold {
		return []analysis.TextChunk{{
			Text:        full,
			PageStart:   1,
			PageEnd:     result.TotalPages,
			ChunkIndex:  0,
			TotalChunks: 1,
		}}
	}

	totalChunks := (result.TotalPages + chunkPages - 1) / chunkPages
	chunks := make([]analysis.TextChunk, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		start := i * chunkPages
		end := start + chunkPages
		if end > result.TotalPages {
			end = result.TotalPages
		}
		chunks = append(chunks, analysis.TextChunk{
			Text:        joinPages(result.PageTexts[start:end], start+1),
			PageStart:   start + 1,
			PageEnd:     end,
			ChunkIndex:  i,
			TotalChunks: totalChunks,
		})
	}
	return chunks
}
