// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/datalens/internal/domain/loader"
)

// Job is an accepted upload waiting for a worker.
type Job struct {
	RunID       string        // run identifier returned to the client
	Digest      string        // content digest used for deduplication
	Format      loader.Format // resolved input format
	Data        []byte        // raw upload bytes
	SubmittedAt time.Time
}

// Size returns the payload length in bytes.
func (j Job) Size() int { return len(j.Data) }
