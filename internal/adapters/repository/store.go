// Package repository holds pipeline runs and their results in memory.
package repository

import (
	"context"
	"time"

	"github.com/okian/datalens/internal/domain/pipeline"
	"github.com/okian/datalens/internal/domain/types"
)

// Record is the stored state of one run. Run is set once the run succeeds;
// Failure once it fails.
type Record struct {
	ID          string
	Digest      string
	Format      string
	Bytes       int
	Status      types.Status
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Run         *pipeline.Run
	Failure     *types.Failure
}

// Info returns the listing view of the record.
func (r Record) Info() types.RunInfo {
	info := types.RunInfo{
		ID:          r.ID,
		Status:      r.Status,
		Format:      r.Format,
		Bytes:       r.Bytes,
		SubmittedAt: r.SubmittedAt,
		Failure:     r.Failure,
	}
	if !r.StartedAt.IsZero() {
		t := r.StartedAt
		info.StartedAt = &t
	}
	if !r.FinishedAt.IsZero() {
		t := r.FinishedAt
		info.FinishedAt = &t
	}
	if r.Run != nil {
		score := r.Run.Score
		info.Score = &score
		info.Rows = r.Run.Summary.Metadata.Rows
		info.Columns = r.Run.Summary.Metadata.Columns
	}
	return info
}

// Store provides read/write access to run state.
type Store interface {
	// Create adds a pending run. Returns ErrDuplicateID if the id exists.
	Create(ctx context.Context, rec Record) error
	// Start marks a pending run as running.
	Start(ctx context.Context, id string, at time.Time) error
	// Complete stores the result of a successful run.
	Complete(ctx context.Context, id string, run *pipeline.Run) error
	// Fail marks the run as failed.
	Fail(ctx context.Context, id string, at time.Time, failure types.Failure) error
	// Delete removes a run that never started, e.g. when it could not be queued.
	Delete(ctx context.Context, id string) error

	// Get returns the run or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	// Count returns the number of runs held.
	Count(ctx context.Context) int
}
