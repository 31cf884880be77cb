package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hliu/living-archive/internal/manifest"
)

// IndexPath returns the search index database path for a run.
func IndexPath(store *manifest.Store, runID string) string {
	return filepath.Join(store.RunDir(runID), "index.db")
}

// BuildIndex rebuilds the FTS5 search index for a run from its manifests and
// extracted text. Any existing index is replaced. Returns the number of
// documents indexed.
func BuildIndex(ctx context.Context, store *manifest.Store, runID string) (int, error) {
	indexPath := IndexPath(store, runID)
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("remove stale index: %w", err)
	}

	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return 0, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return 0, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE documents (
			sha256          TEXT PRIMARY KEY,
			source_file     TEXT NOT NULL,
			file_size_bytes INTEGER,
			page_count      INTEGER,
			document_type   TEXT,
			title           TEXT,
			date            TEXT,
			date_confidence REAL,
			summary_en      TEXT,
			summary_zh      TEXT,
			has_ssn         INTEGER DEFAULT 0,
			has_financial   INTEGER DEFAULT 0,
			has_medical     INTEGER DEFAULT 0,
			tags            TEXT,
			quality         TEXT,
			manifest_json   TEXT
		);

		CREATE VIRTUAL TABLE documents_fts USING fts5(
			sha256 UNINDEXED,
			source_file,
			title,
			summary_en,
			summary_zh,
			extracted_text,
			tags,
			key_people
		);
	`); err != nil {
		return 0, fmt.Errorf("create index schema: %w", err)
	}

	paths, err := store.ListManifests(runID)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, p := range paths {
		m, err := store.LoadManifest(p)
		if err != nil {
			return indexed, err
		}

		sha12 := m.SourceSHA256
		if len(sha12) > 12 {
			sha12 = sha12[:12]
		}
		textBytes, _ := os.ReadFile(filepath.Join(store.TextDir(runID), sha12+".txt"))

		tags := strings.Join(m.Analysis.Tags, ", ")
		people := strings.Join(m.Analysis.KeyPeople, ", ")
		rawManifest, err := json.Marshal(m)
		if err != nil {
			return indexed, fmt.Errorf("marshal manifest %s: %w", m.SourceSHA256, err)
		}

		if _, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO documents VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			m.SourceSHA256, m.SourceFile, m.FileSizeBytes, m.PageCount,
			m.Analysis.DocumentType, m.Analysis.Title, m.Analysis.Date, m.Analysis.DateConfidence,
			m.Analysis.SummaryEN, m.Analysis.SummaryZH,
			boolToInt(m.Analysis.Sensitivity.HasSSN),
			boolToInt(m.Analysis.Sensitivity.HasFinancial),
			boolToInt(m.Analysis.Sensitivity.HasMedical),
			tags, m.Analysis.Quality, string(rawManifest),
		); err != nil {
			return indexed, fmt.Errorf("index document %s: %w", m.SourceSHA256, err)
		}

		if _, err := db.ExecContext(ctx, `
			INSERT INTO documents_fts (sha256, source_file, title, summary_en, summary_zh, extracted_text, tags, key_people)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			m.SourceSHA256, m.SourceFile, m.Analysis.Title,
			m.Analysis.SummaryEN, m.Analysis.SummaryZH, string(textBytes), tags, people,
		); err != nil {
			return indexed, fmt.Errorf("index fts %s: %w", m.SourceSHA256, err)
		}
		indexed++
	}
	return indexed, nil
}

// OpenIndex opens an existing run index read-only-ish (WAL, busy timeout).
func OpenIndex(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index not found (run -index first?): %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SearchHit is one full-text search result.
type SearchHit struct {
	SHA256       string  `json:"sha256"`
	SourceFile   string  `json:"source_file"`
	Title        string  `json:"title"`
	DocumentType string  `json:"document_type"`
	Date         string  `json:"date"`
	Snippet      string  `json:"snippet"`
	Rank         float64 `json:"rank"`
}

// Search runs an FTS5 match over the run index, best matches first.
func Search(ctx context.Context, db *sql.DB, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT f.sha256, f.source_file, d.title, d.document_type, d.date,
		       snippet(documents_fts, 5, '[', ']', '…', 12), bm25(documents_fts)
		FROM documents_fts f
		JOIN documents d ON d.sha256 = f.sha256
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts)
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.SHA256, &h.SourceFile, &h.Title, &h.DocumentType, &h.Date, &h.Snippet, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
