// Package extract pulls page-level text out of scanned PDFs and plans
// page-range chunks for LLM analysis.
package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractionResult holds per-page text for one PDF.
type ExtractionResult struct {
	TotalPages     int
	PageTexts      []string
	CharsExtracted int
}

// FullText joins all pages with explicit page markers so the model can cite
// page numbers in key_dates and summaries.
func (r *ExtractionResult) FullText() string {
	return joinPages(r.PageTexts, 1)
}

// IsEmpty reports an image-only PDF (no extractable text; OCR would be needed).
func (r *ExtractionResult) IsEmpty() bool {
	return r.CharsExtracted == 0
}

// ExtractText extracts text from every page of a PDF. Pages that fail text
// extraction contribute an empty string rather than failing the document.
func ExtractText(path string) (*ExtractionResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	result := &ExtractionResult{TotalPages: total}
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		var text string
		if !page.V.IsNull() {
			if t, err := page.GetPlainText(nil); err == nil {
				text = strings.TrimSpace(t)
			}
		}
		result.PageTexts = append(result.PageTexts, text)
		result.CharsExtracted += len(text)
	}
	return result, nil
}

// PageCount returns the number of pages without extracting text.
func PageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// joinPages renders pages with "--- Page N ---" markers, numbering from
// firstPage.
func joinPages(pages []string, firstPage int) string {
	parts := make([]string, 0, len(pages))
	for i, text := range pages {
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", firstPage+i, text))
	}
	return strings.Join(parts, "\n\n")
}
