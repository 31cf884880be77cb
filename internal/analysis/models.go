// Package analysis dispatches extracted document text to an LLM provider and
// normalizes the structured result. It owns the provider abstraction, the
// retry policy, and the chunk merge rules; extraction and persistence live in
// their own packages.
package analysis

// Sensitivity marks content classes that require careful handling. Flags are
// independent; any true flag keeps the document out of shared exports.
type Sensitivity struct {
	HasSSN       bool `json:"has_ssn"`
	HasFinancial bool `json:"has_financial"`
	HasMedical   bool `json:"has_medical"`
}

// DocumentAnalysis is the normalized shape we want from the LLM. Every field
// has a usable zero value so partially populated or legacy manifests always
// decode; unknown keys in a raw response are dropped by encoding/json.
type DocumentAnalysis struct {
	DocumentType   string      `json:"document_type"`
	Title          string      `json:"title"`
	Date           string      `json:"date"` // ISO-ish, may be partial ("1999" or "1999-06")
	DateConfidence float64     `json:"date_confidence"`
	SummaryEN      string      `json:"summary_en"`
	SummaryZH      string      `json:"summary_zh"`
	KeyPeople      []string    `json:"key_people"`
	KeyDates       []string    `json:"key_dates"`
	Sensitivity    Sensitivity `json:"sensitivity"`
	Tags           []string    `json:"tags"`
	Language       string      `json:"language"`
	Quality        string      `json:"quality"`
}

// InferenceMetadata records how an analysis was produced. Each provider call
// builds a fresh instance; MergeChunks allocates a new aggregate instead of
// mutating any chunk's copy.
type InferenceMetadata struct {
	Method               string `json:"method"` // "auto" or "manual"
	Provider             string `json:"provider"`
	Model                string `json:"model"` // as reported by the backend, may differ from requested
	PromptVersion        string `json:"prompt_version"`
	Timestamp            string `json:"timestamp"` // RFC 3339, set at write/merge time
	InputTokens          int    `json:"input_tokens"`
	OutputTokens         int    `json:"output_tokens"`
	EstimatedInputTokens int    `json:"estimated_input_tokens"`
	ChunkCount           int    `json:"chunk_count"`
}

// TextChunk is a page-range slice of an extracted document, produced once by
// the chunk planner and consumed by exactly one provider call.
type TextChunk struct {
	Text        string `json:"text"`
	PageStart   int    `json:"page_start"` // 1-indexed
	PageEnd     int    `json:"page_end"`   // inclusive
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// ChunkResult pairs one chunk's analysis with its inference metadata.
type ChunkResult struct {
	Analysis  DocumentAnalysis
	Inference InferenceMetadata
}
