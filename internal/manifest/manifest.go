// Package manifest reads and writes the append-only JSON records that make up
// the archive's AI layer. Manifests are the source of truth; the catalog and
// search index are derived, rebuildable views.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hliu/living-archive/internal/analysis"
)

// Extraction records how text was pulled from the source PDF.
type Extraction struct {
	TextFile       string `json:"text_file"`
	TotalPages     int    `json:"total_pages"`
	CharsExtracted int    `json:"chars_extracted"`
	ChunkCount     int    `json:"chunk_count"`
}

// DocumentManifest is one document's immutable analysis record.
type DocumentManifest struct {
	SourceFile    string                     `json:"source_file"`
	SourceSHA256  string                     `json:"source_sha256"`
	FileSizeBytes int64                      `json:"file_size_bytes"`
	PageCount     int                        `json:"page_count"`
	Extraction    Extraction                 `json:"extraction"`
	Analysis      analysis.DocumentAnalysis  `json:"analysis"`
	Inference     analysis.InferenceMetadata `json:"inference"`
}

// Store addresses the AI-layer directory tree:
//
//	<root>/runs/<run>/manifests/<sha12>.json
//	<root>/runs/<run>/extracted-text/<sha12>.txt
//	<root>/runs/<run>/reviews/<sha12>.review.json
//	<root>/runs/<run>/run_meta.json
type Store struct {
	Root string
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.Root, "runs", runID)
}

func (s *Store) ManifestDir(runID string) string {
	return filepath.Join(s.RunDir(runID), "manifests")
}

func (s *Store) TextDir(runID string) string {
	return filepath.Join(s.RunDir(runID), "extracted-text")
}

func (s *Store) ReviewDir(runID string) string {
	return filepath.Join(s.RunDir(runID), "reviews")
}

// shaPrefix is how many hash characters name on-disk artifacts.
const shaPrefix = 12

func shortSHA(sha string) string {
	if len(sha) > shaPrefix {
		return sha[:shaPrefix]
	}
	return sha
}

// WriteManifest writes one document manifest atomically (temp file + rename)
// and fills in the extraction text_file reference. Returns the written path.
func (s *Store) WriteManifest(runID string, m *DocumentManifest) (string, error) {
	m.Extraction.TextFile = "extracted-text/" + shortSHA(m.SourceSHA256) + ".txt"

	dir := s.ManifestDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create manifest dir: %w", err)
	}
	path := filepath.Join(dir, shortSHA(m.SourceSHA256)+".json")
	if err := writeJSONAtomic(path, m); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}
	return path, nil
}

// WriteExtractedText writes a document's extracted text atomically.
func (s *Store) WriteExtractedText(runID, sha, text string) (string, error) {
	dir := s.TextDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create text dir: %w", err)
	}
	path := filepath.Join(dir, shortSHA(sha)+".txt")
	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return "", fmt.Errorf("write extracted text %s: %w", path, err)
	}
	return path, nil
}

// LoadManifest reads one manifest JSON file.
func (s *Store) LoadManifest(path string) (*DocumentManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m DocumentManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// ListManifests returns all manifest paths for a run, sorted by name. A run
// with no manifests yet is an empty list, not an error.
func (s *Store) ListManifests(runID string) ([]string, error) {
	dir := s.ManifestDir(runID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ProcessedHashes returns the full SHA-256 set already recorded in a run, for
// resume support.
func (s *Store) ProcessedHashes(runID string) (map[string]bool, error) {
	paths, err := s.ListManifests(runID)
	if err != nil {
		return nil, err
	}
	processed := make(map[string]bool, len(paths))
	for _, p := range paths {
		m, err := s.LoadManifest(p)
		if err != nil {
			return nil, err
		}
		processed[m.SourceSHA256] = true
	}
	return processed, nil
}

// ListRuns returns run IDs under the store root, newest first.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, "runs"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs, nil
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

// writeFileAtomic writes via a temp file in the target directory and renames
// into place, so readers never observe a partial manifest.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
