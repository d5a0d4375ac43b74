package uploader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/datalens/internal/domain/types"
	"github.com/okian/datalens/pkg/logger"
)

// File is a named payload to upload.
type File struct {
	Name string
	Data []byte
}

// ReadFiles loads the given paths. The base name is kept so the server can
// derive the format from its extension.
func ReadFiles(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

// Result is the outcome of one upload.
type Result struct {
	Name       string
	Submission types.Submission
	Info       types.RunInfo
	Err        error
}

// Stats summarizes a batch.
type Stats struct {
	Submitted int
	Duplicate int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// UploadAll submits every file with at most workers requests in flight and,
// when wait is set, polls each run to completion. Per-file failures are
// reported in the results; the returned error is only set when ctx ends.
func UploadAll(ctx context.Context, c *Client, files []File, workers int, wait bool) ([]Result, Stats, error) {
	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	log := logger.Get().Named("uploader")
	results := make([]Result, len(files))

	var submitted, duplicate, succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			res := Result{Name: f.Name}
			defer func() { results[i] = res }()

			res.Submission, res.Err = c.Submit(gctx, f.Name, f.Data)
			if res.Err != nil {
				failed.Add(1)
				log.Warn(gctx, "upload rejected", logger.String("file", f.Name), logger.Error(res.Err))
				return ctxErr(gctx, res.Err)
			}
			submitted.Add(1)
			if res.Submission.Duplicate {
				duplicate.Add(1)
			}
			if !wait {
				return nil
			}

			res.Info, res.Err = c.Wait(gctx, res.Submission.ID)
			switch {
			case res.Err == nil:
				succeeded.Add(1)
				log.Info(gctx, "run finished", logger.String("file", f.Name), logger.RunID(res.Submission.ID))
			default:
				failed.Add(1)
				log.Warn(gctx, "run did not succeed", logger.String("file", f.Name), logger.RunID(res.Submission.ID), logger.Error(res.Err))
			}
			return ctxErr(gctx, res.Err)
		})
	}
	err := g.Wait()

	stats := Stats{
		Submitted: int(submitted.Load()),
		Duplicate: int(duplicate.Load()),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}
	return results, stats, err
}

// ctxErr only propagates cancellation so one bad file does not stop the batch.
func ctxErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}
	return nil
}
