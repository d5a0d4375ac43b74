package service

import (
	"errors"

	repository "github.com/okian/datalens/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("run queue is full")
	ErrRunNotFound  = repository.ErrNotFound
	ErrInvalidLimit = repository.ErrInvalidLimit
)
