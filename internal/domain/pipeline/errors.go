package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled is the kind of a run aborted between stages.
var ErrCancelled = errors.New("run cancelled")

// StageError reports which stage failed a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
