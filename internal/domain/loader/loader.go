// Package loader turns raw bytes in one of the supported tabular formats
// into a canonical table with inferred column kinds.
package loader

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/okian/datalens/internal/domain/table"
)

// Format names an input encoding.
type Format string

// Supported formats.
const (
	DelimitedText    Format = "delimited-text"
	Spreadsheet      Format = "spreadsheet"
	StructuredRecord Format = "structured-record"
	ColumnarBinary   Format = "columnar-binary"
)

// Formats lists the supported formats in a stable order.
func Formats() []Format {
	return []Format{DelimitedText, Spreadsheet, StructuredRecord, ColumnarBinary}
}

// Valid reports whether f is one of the supported format tokens.
func (f Format) Valid() bool {
	switch f {
	case DelimitedText, Spreadsheet, StructuredRecord, ColumnarBinary:
		return true
	}
	return false
}

// ParseFormat accepts a format token or a common alias (csv, xlsx, json,
// parquet, ...).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(DelimitedText), "csv", "tsv", "txt", "text":
		return DelimitedText, nil
	case string(Spreadsheet), "xlsx", "xlsm", "excel":
		return Spreadsheet, nil
	case string(StructuredRecord), "json", "ndjson", "jsonl":
		return StructuredRecord, nil
	case string(ColumnarBinary), "parquet", "arrow", "feather":
		return ColumnarBinary, nil
	}
	return "", &Error{Kind: ErrUnsupportedFormat, Format: Format(s), Row: -1}
}

// FormatFromFilename maps a file extension to a format.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "", &Error{Kind: ErrUnsupportedFormat, Row: -1, Detail: "no file extension in " + name}
	}
	return ParseFormat(ext)
}

// Option tunes a load.
type Option func(*options)

type options struct {
	delimiter rune
	sheet     string
}

// WithDelimiter forces the field separator for delimited text instead of
// detecting it from the header line.
func WithDelimiter(r rune) Option {
	return func(o *options) { o.delimiter = r }
}

// WithSheet selects a worksheet by name. The first sheet is used otherwise.
func WithSheet(name string) Option {
	return func(o *options) { o.sheet = name }
}

// rawColumn is a column before header normalization and kind inference.
type rawColumn struct {
	name  string
	cells []table.Cell
}

// Load parses data in the declared format.
func Load(data []byte, format Format, opts ...Option) (*table.Table, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if !format.Valid() {
		return nil, &Error{Kind: ErrUnsupportedFormat, Format: format, Row: -1}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, empty(format, "no data")
	}

	var (
		cols []rawColumn
		err  error
	)
	switch format {
	case DelimitedText:
		cols, err = readDelimited(data, o)
	case Spreadsheet:
		cols, err = readSpreadsheet(data, o)
	case StructuredRecord:
		cols, err = readRecords(data)
	case ColumnarBinary:
		cols, err = readColumnar(data)
	}
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, empty(format, "no columns")
	}
	if len(cols[0].cells) == 0 {
		return nil, empty(format, "no rows")
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	names = normalizeHeader(names)

	out := make([]table.Column, len(cols))
	for i, c := range cols {
		out[i] = inferColumn(names[i], c.cells)
	}
	t, err := table.New(out...)
	if err != nil {
		return nil, malformed(format, -1, "inconsistent columns", err)
	}
	return t, nil
}
