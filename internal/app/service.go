// Package service wires the pipeline, the run store, the dedupe index and
// the worker pool into the operations the HTTP API and CLI need.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/datalens/internal/adapters/mq/queue"
	workerpool "github.com/okian/datalens/internal/adapters/mq/worker"
	repository "github.com/okian/datalens/internal/adapters/repository"
	"github.com/okian/datalens/internal/domain/dedupe"
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/model"
	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/types"
	"github.com/okian/datalens/pkg/logger"
	"github.com/okian/datalens/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service implements the API dependencies for the analysis service.
type Service struct {
	mu sync.RWMutex

	// Core components
	runs     *repository.MemoryStore
	index    dedupe.Index
	queue    *jobqueue.InMemoryQueue
	pool     *workerpool.Pool
	pipeline *pipeline.Pipeline

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	maxRuns      int
	runTimeout   time.Duration
	pipelineOpts []pipeline.Option
	newID        func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many content digests are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRuns bounds how many runs the store keeps; zero keeps every run.
func WithMaxRuns(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRuns = n
		}
	}
}

// WithRunTimeout bounds a single run. Zero disables the bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.runTimeout = d
		}
	}
}

// WithPipelineOptions configures the stages every run executes.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(s *Service) {
		s.pipelineOpts = append(s.pipelineOpts, opts...)
	}
}

// WithIDGenerator replaces the run id generator (uuid v4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service. Analyze works right away; Submit needs Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  10000,
		maxRuns:     1000,
		runTimeout:  time.Minute,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	popts := append([]pipeline.Option{pipeline.WithLogger(s.logger.Named("pipeline"))}, s.pipelineOpts...)
	s.pipeline = pipeline.New(popts...)
	return s
}

// Start creates the store, index and queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting analysis service...")

	s.index = dedupe.NewInMemoryIndex(dedupe.WithMaxSize(s.dedupeSize))
	index := s.index
	s.runs = repository.NewMemoryStore(ctx,
		repository.WithMaxRuns(s.maxRuns),
		repository.WithEvictHook(func(r repository.Record) {
			if id, ok := index.Lookup(context.Background(), r.Digest); ok && id == r.ID {
				index.Forget(context.Background(), r.Digest)
			}
		}),
	)
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	runs := s.runs
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.HandlerFunc(func(ctx context.Context, job model.Job) error {
		return s.handle(ctx, runs, index, job)
	}), workerpool.WithLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "analysis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxRuns", s.maxRuns),
	)
	return nil
}

// Stop stops accepting runs, drains the queue and shuts the workers down.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, runs := s.pool, s.runs
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping analysis service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	_ = runs.Close()
	s.logger.Info(ctx, "analysis service stopped")
}

// components returns the live components or ErrNotStarted.
func (s *Service) components() (*repository.MemoryStore, dedupe.Index, *jobqueue.InMemoryQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.runs, s.index, s.queue, nil
}

// Submit accepts an upload for asynchronous analysis. Identical content
// with the same format returns the existing run with Duplicate set.
func (s *Service) Submit(ctx context.Context, data []byte, format loader.Format) (types.Submission, error) {
	const op = "submit"

	runs, index, queue, err := s.components()
	if err != nil {
		return types.Submission{}, fmt.Errorf("%s: %w", op, err)
	}
	if !format.Valid() {
		return types.Submission{}, fmt.Errorf("%s: %q: %w", op, format, loader.ErrUnsupportedFormat)
	}

	digest := dedupe.Digest(string(format), data)
	id := s.newID()

	existing, seen := index.SeenAndRecord(ctx, digest, id)
	if seen {
		if rec, err := runs.Get(ctx, existing); err == nil {
			metrics.RecordRunDuplicate()
			s.logger.Debug(ctx, "duplicate upload", logger.RunID(existing))
			return types.Submission{ID: existing, Status: rec.Status, Duplicate: true}, nil
		}
		// The earlier run is gone; take over the digest.
		index.Forget(ctx, digest)
		if existing, seen = index.SeenAndRecord(ctx, digest, id); seen {
			return types.Submission{ID: existing, Status: types.StatusPending, Duplicate: true}, nil
		}
	}

	now := time.Now().UTC()
	rec := repository.Record{
		ID:          id,
		Digest:      digest,
		Format:      string(format),
		Bytes:       len(data),
		Status:      types.StatusPending,
		SubmittedAt: now,
	}
	if err := runs.Create(ctx, rec); err != nil {
		index.Forget(ctx, digest)
		return types.Submission{}, fmt.Errorf("%s: %w", op, err)
	}

	job := model.Job{RunID: id, Digest: digest, Format: format, Data: data, SubmittedAt: now}
	if err := queue.Enqueue(ctx, job); err != nil {
		index.Forget(ctx, digest)
		_ = runs.Delete(ctx, id)
		if errors.Is(err, jobqueue.ErrFull) {
			return types.Submission{}, fmt.Errorf("%s: %w", op, ErrBackpressure)
		}
		if errors.Is(err, jobqueue.ErrClosed) {
			return types.Submission{}, fmt.Errorf("%s: %w", op, ErrNotStarted)
		}
		return types.Submission{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordRunSubmitted(string(format))
	s.logger.Info(ctx, "run submitted", logger.RunID(id), logger.String("format", string(format)), logger.Int("bytes", len(data)))
	return types.Submission{ID: id, Status: types.StatusPending}, nil
}

// handle runs one queued job against the store and index it was queued
// with. Pipeline failures are recorded on the run; only store errors are
// returned to the worker.
func (s *Service) handle(ctx context.Context, runs repository.Store, index dedupe.Index, job model.Job) error { //nolint:gocritic // hugeParam
	if err := runs.Start(ctx, job.RunID, time.Now().UTC()); err != nil {
		return err
	}

	run, err := s.execute(ctx, job.RunID, job.Data, job.Format)
	if err != nil {
		failure := failureOf(err)
		if transient(failure.Code) {
			index.Forget(ctx, job.Digest)
		}
		return runs.Fail(ctx, job.RunID, time.Now().UTC(), failure)
	}
	return runs.Complete(ctx, job.RunID, run)
}

func (s *Service) execute(ctx context.Context, id string, data []byte, format loader.Format) (*pipeline.Run, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}
	return s.pipeline.Execute(ctx, id, data, format)
}

// Analyze runs the pipeline synchronously without storing the result.
func (s *Service) Analyze(ctx context.Context, data []byte, format loader.Format) (*pipeline.Run, error) {
	return s.execute(ctx, s.newID(), data, format)
}

// Get returns a run by id.
func (s *Service) Get(ctx context.Context, id string) (repository.Record, error) {
	runs, _, _, err := s.components()
	if err != nil {
		return repository.Record{}, err
	}
	return runs.Get(ctx, id)
}

// List returns up to limit runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]types.RunInfo, error) {
	runs, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	recs, err := runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.RunInfo, len(recs))
	for i, r := range recs {
		out[i] = r.Info()
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"maxRuns":     s.maxRuns,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		runCount := s.runs.Count(ctx)

		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["runs"] = runCount
		stats["dedupeEntries"] = s.index.Size()

		metrics.UpdateRunStoreSize(runCount)
	}
	return stats
}

func failureOf(err error) types.Failure {
	f := types.Failure{Code: pipeline.Kind(err), Message: err.Error()}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		f.Stage = string(se.Stage)
		f.Message = se.Err.Error()
	}
	return f
}

// transient reports failure codes that may succeed on resubmission.
func transient(code string) bool {
	switch code {
	case "timeout", "cancelled", "internal":
		return true
	}
	return false
}
