package analysis

import (
	"context"
	"fmt"
	"log/slog"
)

// Service is the dispatch entry point orchestration code calls per chunk:
// resolve the provider, run its Analyze under the retry policy. It never
// swallows errors — classification and retry decisions live in one place
// (Retryer + IsRetryable), and callers record per-document failures.
type Service struct {
	Registry *Registry
	Retry    Retryer
	Log      *slog.Logger
}

// AnalyzeDocument analyzes one chunk of text with the named provider (or the
// registry default for ""), retrying transient failures.
func (s *Service) AnalyzeDocument(ctx context.Context, text, sourceFile string, pageCount int, providerName string) (DocumentAnalysis, InferenceMetadata, error) {
	provider, err := s.Registry.Get(providerName)
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, err
	}

	s.logger().Debug("analyze.dispatch", "provider", provider.Name(), "source_file", sourceFile)

	var analysis DocumentAnalysis
	var meta InferenceMetadata
	err = s.Retry.Do(ctx, "analyze "+sourceFile, func() error {
		var aerr error
		analysis, meta, aerr = provider.Analyze(ctx, AnalyzeRequest{
			Text:       text,
			SourceFile: sourceFile,
			PageCount:  pageCount,
		})
		return aerr
	})
	if err != nil {
		return DocumentAnalysis{}, InferenceMetadata{}, err
	}
	return analysis, meta, nil
}

// AnalyzeChunks runs AnalyzeDocument for each chunk of one document in order
// and merges the results. Chunks are processed strictly sequentially; one
// chunk's exhausted retries fail the whole document.
func (s *Service) AnalyzeChunks(ctx context.Context, chunks []TextChunk, sourceFile string, pageCount int, providerName string) (DocumentAnalysis, InferenceMetadata, error) {
	if len(chunks) == 0 {
		return DocumentAnalysis{}, InferenceMetadata{}, fmt.Errorf("no chunks to analyze: %s", sourceFile)
	}
	results := make([]ChunkResult, 0, len(chunks))
	for _, chunk := range chunks {
		s.logger().Info("analyze.chunk",
			"source_file", sourceFile,
			"chunk", chunk.ChunkIndex+1,
			"total_chunks", chunk.TotalChunks,
			"pages", chunk.PageEnd-chunk.PageStart+1)

		a, m, err := s.AnalyzeDocument(ctx, chunk.Text, sourceFile, pageCount, providerName)
		if err != nil {
			return DocumentAnalysis{}, InferenceMetadata{}, err
		}
		results = append(results, ChunkResult{Analysis: a, Inference: m})
	}

	merged := MergeChunks(results)
	return merged.Analysis, merged.Inference, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
