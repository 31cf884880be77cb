package analysis

import "strings"

// MergeChunks combines per-chunk results of one document, ordered by ascending
// page range, into a single result under a fixed policy:
//
//   - document_type, title, language, quality: first chunk wins (assumed
//     consistent across a document; later chunks are not authoritative)
//   - date/date_confidence: strictly highest confidence wins, earliest chunk
//     kept on ties
//   - key_people, key_dates, tags: ordered union, first-seen order
//   - sensitivity flags: OR across chunks — any chunk flagging a concern flags
//     the document, because a missed sensitive document costs more than a
//     false positive
//   - summaries: concatenated (space-joined for English, unseparated for
//     Chinese)
//   - tokens: summed; timestamp regenerated at merge time
//
// A single-chunk input is returned unchanged; callers must not assume the
// merge allocates.
func MergeChunks(results []ChunkResult) ChunkResult {
	if len(results) == 1 {
		return results[0]
	}

	first := results[0]

	bestDate := first.Analysis.Date
	bestConf := first.Analysis.DateConfidence
	for _, r := range results[1:] {
		if r.Analysis.DateConfidence > bestConf {
			bestDate = r.Analysis.Date
			bestConf = r.Analysis.DateConfidence
		}
	}

	var people, dates, tags [][]string
	var enParts, zhParts []string
	merged := Sensitivity{}
	totalInput, totalOutput := 0, 0
	for _, r := range results {
		people = append(people, r.Analysis.KeyPeople)
		dates = append(dates, r.Analysis.KeyDates)
		tags = append(tags, r.Analysis.Tags)
		if r.Analysis.SummaryEN != "" {
			enParts = append(enParts, r.Analysis.SummaryEN)
		}
		if r.Analysis.SummaryZH != "" {
			zhParts = append(zhParts, r.Analysis.SummaryZH)
		}
		merged.HasSSN = merged.HasSSN || r.Analysis.Sensitivity.HasSSN
		merged.HasFinancial = merged.HasFinancial || r.Analysis.Sensitivity.HasFinancial
		merged.HasMedical = merged.HasMedical || r.Analysis.Sensitivity.HasMedical
		totalInput += r.Inference.InputTokens
		totalOutput += r.Inference.OutputTokens
	}

	analysis := DocumentAnalysis{
		DocumentType:   first.Analysis.DocumentType,
		Title:          first.Analysis.Title,
		Date:           bestDate,
		DateConfidence: bestConf,
		SummaryEN:      strings.Join(enParts, " "),
		SummaryZH:      strings.Join(zhParts, ""),
		KeyPeople:      unionOrdered(people),
		KeyDates:       unionOrdered(dates),
		Sensitivity:    merged,
		Tags:           unionOrdered(tags),
		Language:       first.Analysis.Language,
		Quality:        first.Analysis.Quality,
	}

	inference := InferenceMetadata{
		Method:        first.Inference.Method,
		Provider:      first.Inference.Provider,
		Model:         first.Inference.Model,
		PromptVersion: first.Inference.PromptVersion,
		Timestamp:     nowUTC(),
		InputTokens:   totalInput,
		OutputTokens:  totalOutput,
		ChunkCount:    len(results),
	}

	return ChunkResult{Analysis: analysis, Inference: inference}
}

// unionOrdered concatenates the lists in order, keeping the first occurrence
// of each distinct value. Dedup key is the exact string — no normalization.
func unionOrdered(lists [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
