package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/types"
	"github.com/okian/datalens/pkg/metrics"
)

// MemoryStore is an in-memory Store. Runs are kept in submission order;
// completed results are immutable once stored.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Record
	order   []string // oldest first
	maxRuns int
	onEvict func(Record)

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a store and starts its metrics updater, which
// stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[string]*Record),
		maxRuns:               1000,
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidID
	}
	if rec.Status == "" {
		rec.Status = types.StatusPending
	}

	s.mu.Lock()
	if _, exists := s.byID[rec.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("create %s: %w", rec.ID, ErrDuplicateID)
	}
	r := rec
	s.byID[rec.ID] = &r
	s.order = append(s.order, rec.ID)
	evicted := s.evictLocked()
	s.mu.Unlock()

	s.notifyEvicted(evicted)
	return nil
}

func (s *MemoryStore) Start(ctx context.Context, id string, at time.Time) error {
	return s.update(id, func(r *Record) error {
		if r.Status.Terminal() {
			return ErrFinished
		}
		r.Status = types.StatusRunning
		r.StartedAt = at
		return nil
	})
}

func (s *MemoryStore) Complete(ctx context.Context, id string, run *pipeline.Run) error {
	return s.update(id, func(r *Record) error {
		if r.Status.Terminal() {
			return ErrFinished
		}
		r.Status = types.StatusSucceeded
		r.Run = run
		if run != nil {
			if r.StartedAt.IsZero() {
				r.StartedAt = run.StartedAt
			}
			r.FinishedAt = run.FinishedAt
		}
		return nil
	})
}

func (s *MemoryStore) Fail(ctx context.Context, id string, at time.Time, failure types.Failure) error {
	return s.update(id, func(r *Record) error {
		if r.Status.Terminal() {
			return ErrFinished
		}
		f := failure
		r.Status = types.StatusFailed
		r.Failure = &f
		r.FinishedAt = at
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) update(id string, fn func(*Record) error) error {
	s.mu.Lock()
	r, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	err := fn(r)
	var evicted []Record
	if err == nil && r.Status.Terminal() {
		evicted = s.evictLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	s.notifyEvicted(evicted)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Record{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return *r, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("limit %d: %w", limit, ErrInvalidLimit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.order))
	out := make([]Record, 0, n)
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *s.byID[s.order[i]])
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// evictLocked drops the oldest finished runs while the store is over
// capacity. Pending and running runs are never evicted. Must be called
// with s.mu held.
func (s *MemoryStore) evictLocked() []Record {
	if s.maxRuns <= 0 || len(s.order) <= s.maxRuns {
		return nil
	}
	var evicted []Record
	excess := len(s.order) - s.maxRuns
	kept := s.order[:0]
	for _, id := range s.order {
		r := s.byID[id]
		if excess > 0 && r.Status.Terminal() {
			evicted = append(evicted, *r)
			delete(s.byID, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return evicted
}

func (s *MemoryStore) notifyEvicted(evicted []Record) {
	if s.onEvict == nil {
		return
	}
	for _, r := range evicted {
		s.onEvict(r)
	}
}

// startMetricsUpdater publishes the store size on an interval.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRunStoreSize(s.Count(ctx))
			}
		}
	}()
}
