package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunFailure records one document that exhausted its retries or otherwise
// failed. The raw error message is preserved verbatim so failures are
// diagnosable without re-running.
type RunFailure struct {
	SourceFile string `json:"source_file"`
	SHA256     string `json:"sha256"`
	Error      string `json:"error"`
}

// RunMeta is the run-level summary written when a batch finishes.
type RunMeta struct {
	RunID          string       `json:"run_id"`
	Pipeline       string       `json:"pipeline"`
	SlicePath      string       `json:"slice_path"`
	Started        string       `json:"started"`
	Completed      string       `json:"completed"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
	Total          int          `json:"total"`
	Succeeded      int          `json:"succeeded"`
	Failed         int          `json:"failed"`
	Skipped        int          `json:"skipped"`
	Failures       []RunFailure `json:"failures"`
	Method         string       `json:"method"`
	Provider       string       `json:"provider"`
	PromptVersion  string       `json:"prompt_version"`
}

// NewRunID returns a UTC timestamp run identifier, e.g. 20260828T143000Z.
func NewRunID() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

// WriteRunMeta writes run_meta.json for a run.
func (s *Store) WriteRunMeta(meta *RunMeta) (string, error) {
	dir := s.RunDir(meta.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(dir, "run_meta.json")
	if err := writeJSONAtomic(path, meta); err != nil {
		return "", fmt.Errorf("write run meta: %w", err)
	}
	return path, nil
}

// LoadRunMeta reads run_meta.json; a run without one returns nil, nil.
func (s *Store) LoadRunMeta(runID string) (*RunMeta, error) {
	b, err := os.ReadFile(filepath.Join(s.RunDir(runID), "run_meta.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta RunMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decode run meta for %s: %w", runID, err)
	}
	return &meta, nil
}
