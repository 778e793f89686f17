package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vectralite/vectralite/hybrid"
	"github.com/vectralite/vectralite/vector"
)

// DocumentSink mirrors API document writes into the rebuild source so that a
// later rebuild does not treat them as orphans. Deployments backed by a
// directory corpus run without one.
type DocumentSink interface {
	Put(doc hybrid.Document)
	Remove(id string)
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine *hybrid.Engine
	sink   DocumentSink
	logger *zap.Logger
}

// New creates a Server. sink may be nil.
func New(engine *hybrid.Engine, sink DocumentSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, sink: sink, logger: logger}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Put("/documents/{id}", s.handleUpsert)
		r.Delete("/documents/{id}", s.handleDelete)
		r.Get("/documents/{id}/similar", s.handleSimilar)
		r.Post("/rebuild", s.handleRebuild)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// ListenAndServe runs the HTTP server until ctx is canceled, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("http server listening", zap.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type resultPayload struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Text       string  `json:"text,omitempty"`
	Score      float64 `json:"score"`
}

type searchResponse struct {
	Results []resultPayload `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.K <= 0 {
		req.K = 10
	}
	results, err := s.engine.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: toPayload(results)})
}

type upsertRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.AddOrUpdateDocument(r.Context(), id, req.Title, req.Text); err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.sink != nil {
		s.sink.Put(hybrid.Document{ID: id, Title: req.Title, Text: req.Text})
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"document_id": id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.RemoveDocument(r.Context(), id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.sink != nil {
		s.sink.Remove(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	k := 10
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("k must be a positive integer"))
			return
		}
		k = n
	}
	results, err := s.engine.SimilarToDocument(r.Context(), id, k)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, searchResponse{Results: toPayload(results)})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	centroids, err := s.engine.RebuildIndex(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"centroids": centroids})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetStats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.engine.State().String(),
	})
}

func toPayload(results []hybrid.Result) []resultPayload {
	out := make([]resultPayload, len(results))
	for i, res := range results {
		out[i] = resultPayload{
			DocumentID: res.DocumentID,
			Title:      res.Title,
			Text:       res.Text,
			Score:      res.Score,
		}
	}
	return out
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vector.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, hybrid.ErrInsufficientData):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, hybrid.ErrNotReady), vector.Transient(err):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}
