// Package pipeline chains the load, assess, clean, analyze and narrate
// stages over an explicit run value. Nothing is shared between runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/datalens/internal/domain/cleaning"
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/narrative"
	"github.com/okian/datalens/internal/domain/quality"
	"github.com/okian/datalens/internal/domain/stats"
	"github.com/okian/datalens/internal/domain/table"
	"github.com/okian/datalens/pkg/logger"
	"github.com/okian/datalens/pkg/metrics"
)

// Stage names a pipeline step.
type Stage string

// Stages in execution order.
const (
	StageLoad    Stage = "load"
	StageAssess  Stage = "assess"
	StageClean   Stage = "clean"
	StageAnalyze Stage = "analyze"
	StageNarrate Stage = "narrate"
)

// StageTiming records how long a stage ran.
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Run is the context object owned by one execution. Source and Cleaned are
// kept for callers such as exporters but are not serialized.
type Run struct {
	ID         string               `json:"id"`
	Format     loader.Format        `json:"format"`
	Source     *table.Table         `json:"-"`
	Report     quality.Report       `json:"report"`
	Score      float64              `json:"score"`
	Cleaned    *table.Table         `json:"-"`
	Log        cleaning.Log         `json:"actions"`
	Summary    stats.Summary        `json:"summary"`
	Narrative  *narrative.Narrative `json:"narrative,omitempty"`
	Stages     []StageTiming        `json:"stages"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoaderOptions passes options to every load.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(p *Pipeline) { p.loadOpts = append(p.loadOpts, opts...) }
}

// WithAssessOptions passes options to every assessment.
func WithAssessOptions(opts ...quality.Option) Option {
	return func(p *Pipeline) { p.assessOpts = append(p.assessOpts, opts...) }
}

// WithCleaningOptions passes options to every cleaning run.
func WithCleaningOptions(opts ...cleaning.Option) Option {
	return func(p *Pipeline) { p.cleanOpts = append(p.cleanOpts, opts...) }
}

// WithStatsOptions passes options to every analysis.
func WithStatsOptions(opts ...stats.Option) Option {
	return func(p *Pipeline) { p.statsOpts = append(p.statsOpts, opts...) }
}

// WithNarrator enables the narrate stage. A nil generator disables it.
func WithNarrator(g narrative.Generator) Option {
	return func(p *Pipeline) { p.narrator = g }
}

// WithLogger sets the logger used for stage transitions.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

type step struct {
	stage Stage
	fn    func(context.Context, *Run) error
}

// Pipeline holds stage configuration. It is safe for concurrent use since
// every Execute call works on its own Run.
type Pipeline struct {
	loadOpts   []loader.Option
	assessOpts []quality.Option
	cleanOpts  []cleaning.Option
	statsOpts  []stats.Option
	narrator   narrative.Generator
	log        logger.Logger
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{log: logger.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs every stage on data. On failure the partial run is
// discarded and a *StageError is returned.
func (p *Pipeline) Execute(ctx context.Context, id string, data []byte, format loader.Format) (*Run, error) {
	run := &Run{ID: id, Format: format, StartedAt: time.Now().UTC()}
	log := p.log.With(logger.RunID(id))
	log.Info(ctx, "run started", logger.String("format", string(format)), logger.Int("bytes", len(data)))

	steps := []step{
		{StageLoad, func(_ context.Context, r *Run) error {
			t, err := loader.Load(data, format, p.loadOpts...)
			if err != nil {
				return err
			}
			r.Source = t
			metrics.RecordRowsIngested(t.Rows())
			return nil
		}},
		{StageAssess, func(_ context.Context, r *Run) error {
			r.Report, r.Score = quality.Assess(r.Source, p.assessOpts...)
			return nil
		}},
		{StageClean, func(_ context.Context, r *Run) error {
			cleaned, actions, err := cleaning.Clean(r.Source, r.Report, p.cleanOpts...)
			if err != nil {
				return err
			}
			r.Cleaned, r.Log = cleaned, actions
			return nil
		}},
		{StageAnalyze, func(_ context.Context, r *Run) error {
			r.Summary = stats.Analyze(r.Cleaned, p.statsOpts...)
			return nil
		}},
	}
	if p.narrator != nil {
		steps = append(steps, step{StageNarrate, func(ctx context.Context, r *Run) error {
			n, err := p.narrator.Generate(ctx, narrative.Input{Summary: r.Summary, Report: r.Report, Score: r.Score})
			if err != nil {
				return err
			}
			r.Narrative = &n
			return nil
		}})
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, p.fail(ctx, log, step.stage, fmt.Errorf("%w: %w", ErrCancelled, err))
		}
		start := time.Now()
		err := step.fn(ctx, run)
		elapsed := time.Since(start)
		metrics.RecordStageDuration(string(step.stage), float64(elapsed.Milliseconds()))
		if err != nil {
			return nil, p.fail(ctx, log, step.stage, err)
		}
		run.Stages = append(run.Stages, StageTiming{Stage: step.stage, Duration: elapsed})
		log.Debug(ctx, "stage finished", logger.String("stage", string(step.stage)), logger.Duration("elapsed", elapsed))
	}

	run.FinishedAt = time.Now().UTC()
	p.record(run)
	log.Info(ctx, "run finished",
		logger.Float64("score", run.Score),
		logger.Int("findings", len(run.Report.Findings)),
		logger.Int("actions", run.Log.Len()),
	)
	return run, nil
}

func (p *Pipeline) fail(ctx context.Context, log logger.Logger, stage Stage, err error) error {
	kind := Kind(err)
	metrics.RecordRunFailed(string(stage), kind)
	metrics.RecordErrorByComponent("pipeline", kind)
	log.Warn(ctx, "run failed", logger.String("stage", string(stage)), logger.String("kind", kind), logger.Error(err))
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) record(run *Run) {
	metrics.RecordRunCompleted()
	metrics.RecordQualityScore(run.Score)
	for kind, n := range run.Report.CountByKind() {
		if n > 0 {
			metrics.RecordFindings(string(kind), n)
		}
	}
	for kind, n := range run.Log.CountByKind() {
		if n > 0 {
			metrics.RecordCleaningActions(string(kind), n)
		}
	}
}

// Kind maps an error to a short snake_case label used in metrics and API
// error codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, loader.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, loader.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, loader.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, cleaning.ErrCleaningInfeasible):
		return "cleaning_infeasible"
	case errors.Is(err, cleaning.ErrInconsistentReport):
		return "inconsistent_report"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "internal"
}
