package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScannedFile describes one source PDF found under the slice directory.
type ScannedFile struct {
	Path          string // absolute
	RelPath       string // relative to the scan root
	SHA256        string
	FileSizeBytes int64
	PageCount     int
}

// ScanPDFs walks root for PDFs, hashing each and reading its page count.
// Hidden entries and the _ai-layer output directory are skipped. Results are
// sorted by size, smallest first, so a resumed run makes visible progress
// early.
func ScanPDFs(root string, log *slog.Logger) ([]ScannedFile, error) {
	if log == nil {
		log = slog.Default()
	}
	var files []ScannedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || name == "_ai-layer" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := SHA256File(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", path, err)
		}
		pages, err := PageCount(path)
		if err != nil {
			log.Warn("scan.page_count_failed", "path", path, "error", err)
			pages = 0
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, ScannedFile{
			Path:          path,
			RelPath:       rel,
			SHA256:        sum,
			FileSizeBytes: info.Size(),
			PageCount:     pages,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].FileSizeBytes < files[j].FileSizeBytes
	})
	return files, nil
}

// SHA256File returns the lowercase hex SHA-256 of a file's contents.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
