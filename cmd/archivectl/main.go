// archivectl runs the document pipeline over a slice of the archive: scan
// PDFs, extract text, analyze with the configured LLM provider, merge chunk
// results, and write manifests plus the derived catalog and search index.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hliu/living-archive/internal/analysis"
	"github.com/hliu/living-archive/internal/catalog"
	"github.com/hliu/living-archive/internal/common"
	"github.com/hliu/living-archive/internal/extract"
	"github.com/hliu/living-archive/internal/manifest"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "slice directory to process (overrides DOC_SLICE_PATH)")
		run      = flag.String("run", "", "resume an existing run ID (default: start a new run)")
		provider = flag.String("provider", "", "analysis provider: claude-cli, codex, ollama (default from DOC_PROVIDER)")
		status   = flag.Bool("status", false, "show progress for -run and exit")
		index    = flag.Bool("index", false, "rebuild the search index for -run and exit")
		limit    = flag.Int("limit", 0, "process at most N documents this invocation")
		debug    = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *dir != "" {
		cfg.Archive.SlicePath = *dir
	}
	store := &manifest.Store{Root: cfg.Archive.LayerDir}
	ctx := context.Background()

	if *status {
		if *run == "" {
			printError("Error: -status requires -run\n")
			os.Exit(1)
		}
		showStatus(store, *run)
		return
	}
	if *index {
		if *run == "" {
			printError("Error: -index requires -run\n")
			os.Exit(1)
		}
		n, err := catalog.BuildIndex(ctx, store, *run)
		if err != nil {
			logger.Error("index build failed", "run", *run, "error", err)
			os.Exit(1)
		}
		logger.Info("index built", "run", *run, "documents", n)
		return
	}

	if errs := cfg.ValidateArchive(); len(errs) > 0 {
		for _, e := range errs {
			printError("Error: %s\n", e)
		}
		os.Exit(1)
	}

	prompt, err := analysis.LoadPromptTemplate(cfg.Analysis.PromptFile)
	if err != nil {
		logger.Error("load prompt template", "error", err)
		os.Exit(1)
	}

	svc := &analysis.Service{
		Registry: buildRegistry(cfg, prompt, logger),
		Retry: analysis.Retryer{
			MaxAttempts: cfg.Analysis.MaxAttempts,
			BaseDelay:   cfg.Analysis.RetryBase,
			MaxDelay:    cfg.Analysis.RetryMax,
			Log:         logger,
		},
		Log: logger,
	}

	runID := *run
	if runID == "" {
		runID = manifest.NewRunID()
	}

	sliceDir := filepath.Join(cfg.Archive.DocumentsRoot, cfg.Archive.SlicePath)
	if err := runBatch(ctx, cfg, store, svc, logger, sliceDir, runID, *provider, *limit); err != nil {
		logger.Error("batch run failed", "run", runID, "error", err)
		os.Exit(1)
	}
}

func buildRegistry(cfg *common.Config, prompt *analysis.PromptTemplate, logger *slog.Logger) *analysis.Registry {
	a := cfg.Analysis
	return analysis.NewRegistry(a.Provider,
		&analysis.ClaudeCLI{
			Bin: a.ClaudeBin, Model: a.ClaudeModel,
			Prompt: prompt, Timeout: a.Timeout, Log: logger,
		},
		&analysis.CodexCLI{
			Bin: a.CodexBin, Model: a.CodexModel,
			Prompt: prompt, Timeout: a.Timeout, Log: logger,
		},
		&analysis.Ollama{
			BaseURL: a.OllamaURL, Model: a.OllamaModel,
			Prompt: prompt, Timeout: a.Timeout, Log: logger,
			Client: &http.Client{},
		},
	)
}

// runBatch processes every unprocessed PDF in sliceDir. One document's
// failure is recorded and the batch moves on; only setup errors abort.
func runBatch(ctx context.Context, cfg *common.Config, store *manifest.Store, svc *analysis.Service, logger *slog.Logger, sliceDir, runID, providerName string, limit int) error {
	start := time.Now()

	files, err := extract.ScanPDFs(sliceDir, logger)
	if err != nil {
		return fmt.Errorf("scan %s: %w", sliceDir, err)
	}
	processed, err := store.ProcessedHashes(runID)
	if err != nil {
		return fmt.Errorf("load processed hashes: %w", err)
	}
	logger.Info("run.start",
		"run", runID, "slice", sliceDir,
		"found", len(files), "already_processed", len(processed))

	catalogDB, err := catalog.Open(cfg.Archive.CatalogPath)
	if err != nil {
		return err
	}
	defer catalogDB.Close()

	var failures []manifest.RunFailure
	succeeded, skipped := 0, 0
	for _, f := range files {
		if processed[f.SHA256] {
			skipped++
			continue
		}
		if limit > 0 && succeeded+len(failures) >= limit {
			break
		}

		if err := processDocument(ctx, cfg, store, svc, catalogDB, runID, providerName, f); err != nil {
			logger.Error("document.failed", "file", f.RelPath, "error", err)
			failures = append(failures, manifest.RunFailure{
				SourceFile: f.RelPath,
				SHA256:     f.SHA256,
				Error:      err.Error(),
			})
			continue
		}
		succeeded++
	}

	providerUsed := providerName
	if providerUsed == "" {
		providerUsed = cfg.Analysis.Provider
	}
	meta := &manifest.RunMeta{
		RunID:          runID,
		Pipeline:       "document",
		SlicePath:      cfg.Archive.SlicePath,
		Started:        runID,
		Completed:      time.Now().UTC().Format(time.RFC3339),
		ElapsedSeconds: time.Since(start).Seconds(),
		Total:          len(files),
		Succeeded:      succeeded,
		Failed:         len(failures),
		Skipped:        skipped,
		Failures:       failures,
		Method:         "auto",
		Provider:       providerUsed,
		PromptVersion:  promptVersion(cfg),
	}
	if _, err := store.WriteRunMeta(meta); err != nil {
		return err
	}

	logger.Info("run.done",
		"run", runID,
		"succeeded", succeeded, "failed", len(failures), "skipped", skipped,
		"elapsed_s", int(time.Since(start).Seconds()))
	return nil
}

// processDocument runs the whole pipeline for one PDF: extract, chunk,
// analyze (sequentially, chunk by chunk), merge, persist.
func processDocument(ctx context.Context, cfg *common.Config, store *manifest.Store, svc *analysis.Service, catalogDB *sql.DB, runID, providerName string, f extract.ScannedFile) error {
	result, err := extract.ExtractText(f.Path)
	if err != nil {
		return err
	}
	if result.IsEmpty() {
		return fmt.Errorf("no extractable text (image-only PDF?): %s", f.RelPath)
	}

	chunks := extract.ChunkForAnalysis(result, cfg.Analysis.ChunkPages)
	docAnalysis, inference, err := svc.AnalyzeChunks(ctx, chunks, f.RelPath, result.TotalPages, providerName)
	if err != nil {
		return err
	}

	if _, err := store.WriteExtractedText(runID, f.SHA256, result.FullText()); err != nil {
		return err
	}
	m := &manifest.DocumentManifest{
		SourceFile:    f.RelPath,
		SourceSHA256:  f.SHA256,
		FileSizeBytes: f.FileSizeBytes,
		PageCount:     result.TotalPages,
		Extraction: manifest.Extraction{
			TotalPages:     result.TotalPages,
			CharsExtracted: result.CharsExtracted,
			ChunkCount:     len(chunks),
		},
		Analysis:  docAnalysis,
		Inference: inference,
	}
	manifestPath, err := store.WriteManifest(runID, m)
	if err != nil {
		return err
	}

	// Catalog update is derived state; a failure there should not lose the
	// manifest we just wrote.
	if err := catalog.UpsertAsset(ctx, catalogDB, catalog.Asset{
		SHA256:       f.SHA256,
		Path:         f.RelPath,
		ContentType:  "document",
		FileSize:     f.FileSizeBytes,
		ManifestPath: manifestPath,
		RunID:        runID,
		Status:       "indexed",
	}); err != nil {
		slog.Warn("catalog.upsert_failed", "sha", f.SHA256, "error", err)
	}
	return nil
}

func promptVersion(cfg *common.Config) string {
	base := filepath.Base(cfg.Analysis.PromptFile)
	return base[:len(base)-len(filepath.Ext(base))]
}

func showStatus(store *manifest.Store, runID string) {
	paths, err := store.ListManifests(runID)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	docTypes := map[string]int{}
	totalPages := 0
	for _, p := range paths {
		m, err := store.LoadManifest(p)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		totalPages += m.PageCount
		dt := m.Analysis.DocumentType
		if dt == "" {
			dt = "unknown"
		}
		docTypes[dt]++
	}
	fmt.Printf("Run: %s\n  Manifests: %d\n  Pages: %d\n", runID, len(paths), totalPages)
	for dt, n := range docTypes {
		fmt.Printf("  %-20s %d\n", dt, n)
	}
	if meta, err := store.LoadRunMeta(runID); err == nil && meta != nil {
		fmt.Printf("  Succeeded: %d  Failed: %d  Skipped: %d\n", meta.Succeeded, meta.Failed, meta.Skipped)
	}
}
