// Package server exposes the review and search workflow as a small JSON API
// over the manifest store and the run search index.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hliu/living-archive/internal/catalog"
	"github.com/hliu/living-archive/internal/manifest"
)

// Server serves the human-review workflow: list runs, inspect a run's
// documents, record review decisions, and search the active run's index.
type Server struct {
	Store *manifest.Store
	Index *sql.DB // search index for the active run; nil disables /api/search
	Log   *slog.Logger
}

func New(store *manifest.Store, index *sql.DB, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Store: store, Index: index, Log: log}
}

// Routes builds the chi router for the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/{run}/items", s.handleRunItems)
	r.Post("/api/runs/{run}/reviews/{sha}", s.handleSaveReview)
	r.Get("/api/search", s.handleSearch)
	return r
}

type runSummary struct {
	RunID         string            `json:"run_id"`
	Meta          *manifest.RunMeta `json:"meta,omitempty"`
	ManifestCount int               `json:"manifest_count"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Store.ListRuns()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]runSummary, 0, len(runs))
	for _, runID := range runs {
		meta, err := s.Store.LoadRunMeta(runID)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		paths, err := s.Store.ListManifests(runID)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, runSummary{RunID: runID, Meta: meta, ManifestCount: len(paths)})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type runItem struct {
	SourceFile   string                      `json:"source_file"`
	SourceSHA256 string                      `json:"source_sha256"`
	PageCount    int                         `json:"page_count"`
	Manifest     *manifest.DocumentManifest  `json:"manifest"`
	Review       *manifest.ReviewDecision    `json:"review,omitempty"`
}

func (s *Server) handleRunItems(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run")
	paths, err := s.Store.ListManifests(runID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	items := make([]runItem, 0, len(paths))
	for _, p := range paths {
		m, err := s.Store.LoadManifest(p)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		review, err := s.Store.LoadReview(runID, m.SourceSHA256)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		items = append(items, runItem{
			SourceFile:   m.SourceFile,
			SourceSHA256: m.SourceSHA256,
			PageCount:    m.PageCount,
			Manifest:     m,
			Review:       review,
		})
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleSaveReview(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run")
	sha := chi.URLParam(r, "sha")

	var decision manifest.ReviewDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if !manifest.ValidReviewStatus(decision.Status) {
		http.Error(w, "status must be approved, corrected, or skipped", http.StatusBadRequest)
		return
	}
	path, err := s.Store.SaveReview(runID, sha, &decision)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.Log.Info("review.saved", "run", runID, "sha", sha, "status", decision.Status)
	s.writeJSON(w, http.StatusOK, map[string]string{"path": filepath.Base(path)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.Index == nil {
		http.Error(w, "search index not loaded", http.StatusServiceUnavailable)
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := catalog.Search(r.Context(), s.Index, query, limit)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []catalog.SearchHit{}
	}
	s.writeJSON(w, http.StatusOK, hits)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Warn("server.encode_response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.Log.Error("server.request_failed", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}
