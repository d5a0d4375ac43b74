package loader

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds; match with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedInput    = errors.New("malformed input")
	ErrEmptyInput        = errors.New("empty input")
)

// Error describes a load failure. Row is the zero-based data row when
// known and -1 otherwise.
type Error struct {
	Kind   error
	Format Format
	Row    int
	Column string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Format != "" {
		fmt.Fprintf(&b, " (%s)", e.Format)
	}
	if e.Row >= 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(f Format, row int, detail string, cause error) *Error {
	return &Error{Kind: ErrMalformedInput, Format: f, Row: row, Detail: detail, Err: cause}
}

func empty(f Format, detail string) *Error {
	return &Error{Kind: ErrEmptyInput, Format: f, Row: -1, Detail: detail}
}
