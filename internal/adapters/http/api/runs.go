package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	repository "github.com/okian/datalens/internal/adapters/repository"
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/quality"
	"github.com/okian/datalens/internal/domain/types"
	"github.com/okian/datalens/pkg/logger"
)

const defaultListLimit = 20

// RunsDependencies defines the run operations used by RunsHandler.
type RunsDependencies interface {
	Submit(ctx context.Context, data []byte, format loader.Format) (types.Submission, error)
	Get(ctx context.Context, id string) (repository.Record, error)
	List(ctx context.Context, limit int) ([]types.RunInfo, error)
}

// RunsHandler handles asynchronous run requests.
type RunsHandler struct {
	deps     RunsDependencies
	upload   uploadReader
	maxLimit int
	logger   logger.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunsDependencies, upload uploadReader, maxLimit int, log logger.Logger) *RunsHandler {
	return &RunsHandler{deps: deps, upload: upload, maxLimit: maxLimit, logger: log.Named("api.runs")}
}

// runDetail is the GET /runs/{id} body: the listing view plus the full
// result once the run succeeded.
type runDetail struct {
	types.RunInfo
	Result *pipeline.Run `json:"result,omitempty"`
}

// reportBody is the GET /runs/{id}/report body.
type reportBody struct {
	Score  float64        `json:"score"`
	Report quality.Report `json:"report"`
}

// HandlePostRun handles POST /runs.
func (h *RunsHandler) HandlePostRun(w http.ResponseWriter, r *http.Request) {
	data, format, err := h.upload.read(w, r)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	sub, err := h.deps.Submit(r.Context(), data, format)
	if err != nil {
		fail(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

// HandleListRuns handles GET /runs?limit=N.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_runs"
	n := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	runs, err := h.deps.List(r.Context(), n)
	if err != nil {
		fail(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun handles GET /runs/{id}.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	rec, err := h.deps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, runDetail{RunInfo: rec.Info(), Result: rec.Run})
}

// HandleGetRunPart handles GET /runs/{id}/{summary|report|actions|narrative}.
func (h *RunsHandler) HandleGetRunPart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run_part"
	part := r.PathValue("part")
	switch part {
	case "summary", "report", "actions", "narrative":
	default:
		http.NotFound(w, r)
		return
	}

	rec, err := h.deps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	if rec.Run == nil {
		err := NewKind(op, ErrRunNotReady)
		if rec.Failure != nil {
			err = WrapKind(op, ErrRunNotReady, fmt.Errorf("run failed at %s: %s", rec.Failure.Stage, rec.Failure.Message))
		}
		fail(r.Context(), h.logger, w, err)
		return
	}

	run := rec.Run
	switch part {
	case "summary":
		writeJSON(w, http.StatusOK, run.Summary)
	case "report":
		writeJSON(w, http.StatusOK, reportBody{Score: run.Score, Report: run.Report})
	case "actions":
		writeJSON(w, http.StatusOK, run.Log)
	case "narrative":
		if run.Narrative == nil {
			fail(r.Context(), h.logger, w, NewKind(op, ErrNoNarrative))
			return
		}
		writeJSON(w, http.StatusOK, run.Narrative)
	}
}
