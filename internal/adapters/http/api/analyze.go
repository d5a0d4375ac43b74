package api

import (
	"context"
	"net/http"

	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/pkg/logger"
)

// AnalyzeDependencies defines the synchronous analysis operation.
type AnalyzeDependencies interface {
	Analyze(ctx context.Context, data []byte, format loader.Format) (*pipeline.Run, error)
}

// AnalyzeHandler handles synchronous analysis requests.
type AnalyzeHandler struct {
	deps   AnalyzeDependencies
	upload uploadReader
	logger logger.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(deps AnalyzeDependencies, upload uploadReader, log logger.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{deps: deps, upload: upload, logger: log.Named("api.analyze")}
}

// HandleAnalyze handles POST /analyze. The upload is processed within the
// request and the full result is returned.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze"
	data, format, err := h.upload.read(w, r)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	run, err := h.deps.Analyze(r.Context(), data, format)
	if err != nil {
		fail(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}
