package cleaning

import (
	"errors"
	"fmt"
)

// Sentinel kinds; match with errors.Is.
var (
	ErrCleaningInfeasible = errors.New("cleaning infeasible: no columns remain")
	ErrInconsistentReport = errors.New("defect report does not match table")
	ErrInconsistentLog    = errors.New("action log does not match table")
)

// Error carries the kind plus the column or row that caused it.
type Error struct {
	Kind   error
	Column string
	Row    int
	Detail string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Column != "" {
		msg += fmt.Sprintf(": column %q", e.Column)
	}
	if e.Row >= 0 {
		msg += fmt.Sprintf(": row %d", e.Row)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }
