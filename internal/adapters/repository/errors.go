package repository

import "errors"

// Sentinel kinds for run store errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrDuplicateID  = errors.New("run id already exists")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrFinished     = errors.New("run already finished")
	ErrInvalidID    = errors.New("run id must not be empty")
)
