package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/types"
)

func newTestStore(t *testing.T, opts ...Option) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(context.Background(), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	now := time.Now()
	if err := store.Create(ctx, Record{ID: "run-1", Format: "delimited-text", Bytes: 10, SubmittedAt: now}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != types.StatusPending {
		t.Errorf("expected pending, got %s", rec.Status)
	}

	if err := store.Start(ctx, "run-1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ = store.Get(ctx, "run-1")
	if rec.Status != types.StatusRunning || !rec.StartedAt.Equal(now) {
		t.Errorf("expected running since %v, got %s since %v", now, rec.Status, rec.StartedAt)
	}

	run := &pipeline.Run{ID: "run-1", Score: 87.5, StartedAt: now, FinishedAt: now.Add(time.Second)}
	if err := store.Complete(ctx, "run-1", run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, _ = store.Get(ctx, "run-1")
	if rec.Status != types.StatusSucceeded || rec.Run != run {
		t.Errorf("expected succeeded with run, got %s", rec.Status)
	}

	info := rec.Info()
	if info.Score == nil || *info.Score != 87.5 {
		t.Errorf("expected score 87.5 in info, got %v", info.Score)
	}
	if info.FinishedAt == nil || !info.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("expected finished_at %v, got %v", run.FinishedAt, info.FinishedAt)
	}

	// Finished runs are immutable.
	if err := store.Fail(ctx, "run-1", now, types.Failure{Code: "internal"}); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
	if err := store.Start(ctx, "run-1", now); !errors.Is(err, ErrFinished) {
		t.Errorf("expected ErrFinished, got %v", err)
	}
}

func TestMemoryStore_Fail(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_ = store.Create(ctx, Record{ID: "run-1"})
	at := time.Now()
	failure := types.Failure{Stage: "load", Code: "malformed_input", Message: "row 2"}
	if err := store.Fail(ctx, "run-1", at, failure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, _ := store.Get(ctx, "run-1")
	if rec.Status != types.StatusFailed {
		t.Errorf("expected failed, got %s", rec.Status)
	}
	if rec.Failure == nil || rec.Failure.Code != "malformed_input" {
		t.Errorf("unexpected failure: %+v", rec.Failure)
	}
	if info := rec.Info(); info.Score != nil || info.Failure == nil {
		t.Errorf("failed run info should carry the error and no score: %+v", info)
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Start(ctx, "missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Create(ctx, Record{}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
	_ = store.Create(ctx, Record{ID: "run-1"})
	if err := store.Create(ctx, Record{ID: "run-1"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := store.List(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_ = store.Create(ctx, Record{ID: "run-1"})
	_ = store.Create(ctx, Record{ID: "run-2"})
	if err := store.Delete(ctx, "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	recs, _ := store.List(ctx, 10)
	if len(recs) != 1 || recs[0].ID != "run-2" {
		t.Errorf("expected only run-2 left, got %v", recs)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 1; i <= 5; i++ {
		_ = store.Create(ctx, Record{ID: fmt.Sprintf("run-%d", i)})
	}

	recs, err := store.List(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"run-5", "run-4", "run-3"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d runs, got %d", len(want), len(recs))
	}
	for i, id := range want {
		if recs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, recs[i].ID)
		}
	}

	all, _ := store.List(ctx, 100)
	if len(all) != 5 {
		t.Errorf("expected 5 runs, got %d", len(all))
	}
}

func TestMemoryStore_EvictsOldestFinished(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	store := newTestStore(t, WithMaxRuns(2), WithEvictHook(func(r Record) {
		evicted = append(evicted, r.ID)
	}))

	_ = store.Create(ctx, Record{ID: "run-1"})
	_ = store.Create(ctx, Record{ID: "run-2"})
	_ = store.Fail(ctx, "run-2", time.Now(), types.Failure{Code: "internal"})

	// run-1 is still pending, so run-2 is the only candidate.
	_ = store.Create(ctx, Record{ID: "run-3"})
	if len(evicted) != 1 || evicted[0] != "run-2" {
		t.Fatalf("expected run-2 evicted, got %v", evicted)
	}
	if _, err := store.Get(ctx, "run-1"); err != nil {
		t.Errorf("pending run must survive eviction: %v", err)
	}

	// Over capacity with nothing finished: keep everything until a run ends.
	_ = store.Create(ctx, Record{ID: "run-4"})
	if store.Count(ctx) != 3 {
		t.Errorf("expected 3 runs while none are finished, got %d", store.Count(ctx))
	}
	_ = store.Complete(ctx, "run-1", &pipeline.Run{ID: "run-1"})
	if store.Count(ctx) != 2 {
		t.Errorf("expected 2 runs after completion, got %d", store.Count(ctx))
	}
	if _, err := store.Get(ctx, "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected run-1 evicted, got %v", err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithMaxRuns(0))

	const goroutines = 10
	const perGoroutine = 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				id := fmt.Sprintf("run-%d-%d", g, i)
				if err := store.Create(ctx, Record{ID: id}); err != nil {
					t.Errorf("create %s: %v", id, err)
					return
				}
				_ = store.Start(ctx, id, time.Now())
				_ = store.Complete(ctx, id, &pipeline.Run{ID: id})
				_, _ = store.List(ctx, 10)
			}
		}(g)
	}
	wg.Wait()

	if got := store.Count(ctx); got != goroutines*perGoroutine {
		t.Errorf("expected %d runs, got %d", goroutines*perGoroutine, got)
	}
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore(context.Background(), WithMetricsUpdateInterval(time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Closing twice is safe.
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}
