package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReviewDecision is a human review overlay for one document. Manifests stay
// immutable; corrections live alongside them as separate review files.
type ReviewDecision struct {
	Status             string `json:"status"` // approved, corrected, skipped
	ReviewedAt         string `json:"reviewed_at"`
	CorrectedDate      string `json:"corrected_date,omitempty"`
	CorrectedTitle     string `json:"corrected_title,omitempty"`
	CorrectedSummaryEN string `json:"corrected_summary_en,omitempty"`
	CorrectedSummaryZH string `json:"corrected_summary_zh,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// ValidReviewStatus reports whether status is one of the accepted values.
func ValidReviewStatus(status string) bool {
	switch status {
	case "approved", "corrected", "skipped":
		return true
	}
	return false
}

// SaveReview writes a review decision for a document, stamping ReviewedAt if
// the caller left it empty.
func (s *Store) SaveReview(runID, sha string, decision *ReviewDecision) (string, error) {
	if !ValidReviewStatus(decision.Status) {
		return "", fmt.Errorf("invalid review status: %q", decision.Status)
	}
	if decision.ReviewedAt == "" {
		decision.ReviewedAt = time.Now().UTC().Format(time.RFC3339)
	}
	dir := s.ReviewDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create review dir: %w", err)
	}
	path := filepath.Join(dir, shortSHA(sha)+".review.json")
	if err := writeJSONAtomic(path, decision); err != nil {
		return "", fmt.Errorf("write review %s: %w", path, err)
	}
	return path, nil
}

// LoadReview reads a document's review decision; nil, nil when unreviewed.
func (s *Store) LoadReview(runID, sha string) (*ReviewDecision, error) {
	b, err := os.ReadFile(filepath.Join(s.ReviewDir(runID), shortSHA(sha)+".review.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d ReviewDecision
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode review for %s: %w", sha, err)
	}
	return &d, nil
}
