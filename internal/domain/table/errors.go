package table

import "errors"

// Sentinel kinds for table construction and mutation errors.
var (
	ErrRaggedColumns   = errors.New("columns have different row counts")
	ErrEmptyColumnName = errors.New("column name must not be empty")
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrColumnNotFound  = errors.New("column not found")
	ErrOutOfRange      = errors.New("index out of range")
)
