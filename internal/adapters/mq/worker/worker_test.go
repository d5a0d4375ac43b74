package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/datalens/internal/adapters/mq/queue"
	worker "github.com/okian/datalens/internal/adapters/mq/worker"
	model "github.com/okian/datalens/internal/domain/model"
	logging "github.com/okian/datalens/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs      chan model.Job
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan model.Job, 16)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan model.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.jobs) })
	return nil
}

type recordingHandler struct {
	mu     sync.Mutex
	seen   []string
	fail   map[string]error
	delay  time.Duration
	called chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{fail: make(map[string]error), called: make(chan string, 64)}
}

func (h *recordingHandler) Handle(ctx context.Context, job model.Job) error { //nolint:gocritic // hugeParam
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.seen = append(h.seen, job.RunID)
	err := h.fail[job.RunID]
	h.mu.Unlock()
	h.called <- job.RunID
	return err
}

func (h *recordingHandler) handled() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func waitFor(ch <-chan string, n int) bool {
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-timeout:
			return false
		}
	}
	return true
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		h := newRecordingHandler()
		w := worker.NewInMemoryWorker(q, h, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive", func() {
			q.jobs <- model.Job{RunID: "run-1"}
			q.jobs <- model.Job{RunID: "run-2"}

			convey.Convey("Then they are handled in order", func() {
				convey.So(waitFor(h.called, 2), convey.ShouldBeTrue)
				convey.So(h.handled(), convey.ShouldResemble, []string{"run-1", "run-2"})
			})
		})

		convey.Convey("When a handler fails", func() {
			h.fail["run-bad"] = errors.New("boom")
			q.jobs <- model.Job{RunID: "run-bad"}
			q.jobs <- model.Job{RunID: "run-good"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(h.called, 2), convey.ShouldBeTrue)
				convey.So(h.handled(), convey.ShouldResemble, []string{"run-bad", "run-good"})
			})
		})

		convey.Convey("When the worker is shut down", func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()

			convey.Convey("Then it stops without error", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		h := newRecordingHandler()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, h)

			convey.Convey("Then it falls back to one worker per CPU", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When jobs are queued and the pool is shut down", func() {
			pool := worker.NewPool(3, q, h)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for i := 0; i < 10; i++ {
				q.jobs <- model.Job{RunID: fmt.Sprintf("run-%d", i)}
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued job is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(h.handled(), convey.ShouldHaveLength, 10)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a job outlives the shutdown deadline", func() {
			h.delay = 200 * time.Millisecond
			pool := worker.NewPool(1, q, h)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			q.jobs <- model.Job{RunID: "slow"}
			time.Sleep(20 * time.Millisecond)
			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer done()

			convey.Convey("Then shutdown reports the timeout", func() {
				err := pool.Shutdown(shutdownCtx)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerWithRealQueue(t *testing.T) {
	convey.Convey("Given a pool over the in-memory queue", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		h := newRecordingHandler()
		pool := worker.NewPool(4, q, worker.HandlerFunc(h.Handle))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, model.Job{RunID: fmt.Sprintf("run-%d", i), SubmittedAt: time.Now()}), convey.ShouldBeNil)
		}

		convey.Convey("Then all jobs are handled once", func() {
			convey.So(waitFor(h.called, 20), convey.ShouldBeTrue)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)

			seen := make(map[string]int)
			for _, id := range h.handled() {
				seen[id]++
			}
			convey.So(seen, convey.ShouldHaveLength, 20)
		})
	})
}
