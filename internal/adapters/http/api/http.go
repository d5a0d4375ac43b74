// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	repository "github.com/okian/datalens/internal/adapters/repository"
	service "github.com/okian/datalens/internal/app"
	"github.com/okian/datalens/internal/domain/cleaning"
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/types"
	"github.com/okian/datalens/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues an upload. Returns service.ErrBackpressure when full.
	Submit(ctx context.Context, data []byte, format loader.Format) (types.Submission, error)
	// Analyze runs the pipeline synchronously.
	Analyze(ctx context.Context, data []byte, format loader.Format) (*pipeline.Run, error)

	Get(ctx context.Context, id string) (repository.Record, error)
	List(ctx context.Context, limit int) ([]types.RunInfo, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	runsHandler    *RunsHandler
	analyzeHandler *AnalyzeHandler

	limiter *rate.Limiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	up := uploadReader{maxBytes: cfg.maxUploadBytes}

	var limiter *rate.Limiter
	if cfg.uploadsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.uploadsPerSecond), max(cfg.uploadBurst, 1))
	}

	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		runsHandler:    NewRunsHandler(deps, up, cfg.maxListLimit, cfg.logger),
		analyzeHandler: NewAnalyzeHandler(deps, up, cfg.logger),
		limiter:        limiter,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /runs", MetricsMiddleware(RateLimitMiddleware(s.limiter, s.runsHandler.HandlePostRun), "runs"))
	mux.HandleFunc("GET /runs", MetricsMiddleware(s.runsHandler.HandleListRuns, "runs"))
	mux.HandleFunc("GET /runs/{id}", MetricsMiddleware(s.runsHandler.HandleGetRun, "run"))
	mux.HandleFunc("GET /runs/{id}/{part}", MetricsMiddleware(s.runsHandler.HandleGetRunPart, "run_part"))

	mux.HandleFunc("POST /analyze", MetricsMiddleware(RateLimitMiddleware(s.limiter, s.analyzeHandler.HandleAnalyze), "analyze"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a status and code, logs server-side failures and
// writes the error body.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
	} else {
		log.Debug(ctx, "request rejected", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}

// classify maps error kinds to HTTP status codes and API error codes.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrRunNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrNoNarrative):
		return http.StatusNotFound, "narrative_unavailable"
	case errors.Is(err, ErrRunNotReady):
		return http.StatusConflict, "run_not_ready"
	case errors.Is(err, ErrMissingFormat):
		return http.StatusBadRequest, "missing_format"
	case errors.Is(err, service.ErrInvalidLimit), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, loader.ErrUnsupportedFormat),
		errors.Is(err, loader.ErrMalformedInput),
		errors.Is(err, loader.ErrEmptyInput):
		return http.StatusBadRequest, pipeline.Kind(err)
	case errors.Is(err, cleaning.ErrCleaningInfeasible):
		return http.StatusUnprocessableEntity, pipeline.Kind(err)
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, pipeline.ErrCancelled), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "cancelled"
	}
	return http.StatusInternalServerError, "internal_error"
}
