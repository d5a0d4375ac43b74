// Package types contains the run views shared by the store, the service and
// the HTTP layer.
package types

import "time"

// Status is the lifecycle state of a run.
type Status string

// Run states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the run has finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Failure describes why a run failed.
type Failure struct {
	Stage   string `json:"stage,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunInfo is the listing view of a run.
type RunInfo struct {
	ID          string     `json:"run_id"`
	Status      Status     `json:"status"`
	Format      string     `json:"format"`
	Bytes       int        `json:"bytes"`
	Score       *float64   `json:"score,omitempty"`
	Rows        int        `json:"rows,omitempty"`
	Columns     int        `json:"columns,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Failure     *Failure   `json:"error,omitempty"`
}

// Submission is returned when an upload is accepted.
type Submission struct {
	ID        string `json:"run_id"`
	Status    Status `json:"status"`
	Duplicate bool   `json:"duplicate"`
}
