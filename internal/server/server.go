// Package server exposes the recommendation engine over HTTP. This is the
// transport the core never mandates (spec §6 explicitly leaves HTTP/RPC out
// of scope); it exists so the engine is runnable as a standalone process,
// following the teacher's server.New(ServerConfig) construction pattern
// with explicit read/write timeouts and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/circle-system/swipeengine/internal/engine"
	"github.com/circle-system/swipeengine/internal/ingest"
	"github.com/circle-system/swipeengine/internal/model"
)

// Config configures the HTTP server.
type Config struct {
	Engine       *engine.Engine
	Ingest       *ingest.Pipeline
	Logger       *slog.Logger
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// Server wraps an http.Server bound to the engine's request handlers.
type Server struct {
	httpSrv *http.Server
	logger  *slog.Logger
}

// New builds a Server with its routes registered.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	h := &handlers{engine: cfg.Engine, ingest: cfg.Ingest, logger: logger, version: cfg.Version}
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("POST /v1/recommendations", h.getRecommendations)
	mux.HandleFunc("POST /v1/recluster", h.reclusterMoments)
	mux.HandleFunc("POST /v1/content", h.ingestContent)

	return &Server{
		httpSrv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type handlers struct {
	engine  *engine.Engine
	ingest  *ingest.Pipeline
	logger  *slog.Logger
	version string
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": h.version})
}

type recommendationsRequest struct {
	UserID        string   `json:"userId"`
	Limit         int      `json:"limit"`
	ExcludeIDs    []string `json:"excludeIds"`
	TimeOfDay     *float64 `json:"timeOfDay"`
	Weekday       *int     `json:"weekday"`
	Location      string   `json:"location"`
	NoveltyLevel  *float64 `json:"noveltyLevel"`
	DiversityLevel *float64 `json:"diversityLevel"`
}

func (h *handlers) getRecommendations(w http.ResponseWriter, r *http.Request) {
	var body recommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	var reqCtx *model.RequestContext
	if body.TimeOfDay != nil || body.Weekday != nil || body.Location != "" {
		reqCtx = &model.RequestContext{TimeOfDay: body.TimeOfDay, Location: body.Location}
		if body.Weekday != nil {
			wd := time.Weekday(*body.Weekday)
			reqCtx.Weekday = &wd
		}
	}

	recs := h.engine.GetRecommendations(r.Context(), engine.Request{
		UserID:         body.UserID,
		Limit:          body.Limit,
		ExcludeIDs:     body.ExcludeIDs,
		Context:        reqCtx,
		NoveltyLevel:   body.NoveltyLevel,
		DiversityLevel: body.DiversityLevel,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"recommendations": recs})
}

// reclusterMoments triggers a batch re-cluster. Per spec §5, concurrent
// triggers are coalesced by the engine itself. When no run is in flight the
// re-cluster runs synchronously and the handler responds after it finishes;
// a call that arrives during a run marks one pending run and returns at once.
func (h *handlers) reclusterMoments(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ReclusterMoments(r.Context()); err != nil {
		h.logger.Error("server: recluster failed", "error", err)
		http.Error(w, "recluster failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type ingestContentRequest struct {
	ContentID string   `json:"contentId"`
	Text      string   `json:"text"`
	Topics    []string `json:"topics"`
	AuthorID  string   `json:"authorId"`
}

// ingestContent generates and stores a content embedding from submitted
// text. Video/audio ingestion go through the same internal/ingest
// pipeline but have no HTTP surface here; this endpoint only fronts the
// text path, the one every deployment of this service can exercise
// without a configured visual or transcription backend.
func (h *handlers) ingestContent(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		http.Error(w, "content ingestion not configured", http.StatusServiceUnavailable)
		return
	}

	var body ingestContentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.ContentID == "" || body.Text == "" {
		http.Error(w, "contentId and text are required", http.StatusBadRequest)
		return
	}

	if err := h.ingest.IngestText(r.Context(), body.ContentID, body.Text, body.Topics, body.AuthorID); err != nil {
		h.logger.Error("server: ingest failed", "contentId", body.ContentID, "error", err)
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
