// Package catalog maintains the SQLite views derived from manifests: an asset
// catalog across runs and a per-run FTS5 search index. Both are rebuildable;
// manifests remain the source of truth.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = "1"

// Open opens (creating if needed) the asset catalog database with WAL mode
// and a busy timeout suitable for one writer plus the review server.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='catalog_meta'",
	).Scan(&name)
	if err == nil {
		var version string
		if err := db.QueryRow(
			"SELECT value FROM catalog_meta WHERE key='schema_version'",
		).Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("catalog schema version mismatch: expected %s, got %s", schemaVersion, version)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("inspect catalog schema: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE catalog_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE assets (
			sha256        TEXT PRIMARY KEY,
			path          TEXT NOT NULL,
			content_type  TEXT NOT NULL,
			file_size     INTEGER,
			manifest_path TEXT,
			run_id        TEXT,
			status        TEXT NOT NULL DEFAULT 'discovered',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX idx_assets_content_type ON assets(content_type);
		CREATE INDEX idx_assets_status ON assets(status);
		CREATE INDEX idx_assets_path ON assets(path);
	`)
	if err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	if _, err := db.Exec(
		"INSERT INTO catalog_meta (key, value) VALUES ('schema_version', ?)", schemaVersion,
	); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// Asset is one catalog row, keyed by content hash.
type Asset struct {
	SHA256       string
	Path         string
	ContentType  string // "document" or "photo"
	FileSize     int64
	ManifestPath string
	RunID        string
	Status       string // discovered, indexed
}

// UpsertAsset inserts or refreshes an asset row, preserving created_at on
// conflict.
func UpsertAsset(ctx context.Context, db *sql.DB, a Asset) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO assets (sha256, path, content_type, file_size, manifest_path, run_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sha256) DO UPDATE SET
			path          = excluded.path,
			content_type  = excluded.content_type,
			file_size     = excluded.file_size,
			manifest_path = excluded.manifest_path,
			run_id        = excluded.run_id,
			status        = excluded.status,
			updated_at    = excluded.updated_at
	`, a.SHA256, a.Path, a.ContentType, a.FileSize, a.ManifestPath, a.RunID, a.Status, now, now)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.SHA256, err)
	}
	return nil
}

// StatRow is one (content_type, status) bucket count.
type StatRow struct {
	ContentType string `json:"content_type"`
	Status      string `json:"status"`
	Count       int    `json:"count"`
}

// Stats returns asset counts grouped by content type and status.
func Stats(ctx context.Context, db *sql.DB) ([]StatRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT content_type, status, COUNT(*)
		FROM assets
		GROUP BY content_type, status
		ORDER BY content_type, status
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog stats: %w", err)
	}
	defer rows.Close()

	var stats []StatRow
	for rows.Next() {
		var s StatRow
		if err := rows.Scan(&s.ContentType, &s.Status, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
