// Package table defines the canonical in-memory table every pipeline stage
// reads and writes: ordered, uniquely named columns of tagged cells.
package table

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind tags the variant held by a Cell and the inferred type of a Column.
type Kind uint8

// Cell and column kinds.
const (
	KindNull Kind = iota
	KindNumeric
	KindText
	KindBoolean
	KindTemporal
)

// String returns the lower-case kind name used in JSON and logs.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Cell is a single value: Numeric, Text, Boolean, Temporal or Null.
// The zero value is Null.
type Cell struct {
	kind Kind
	num  float64
	text string
	flag bool
	ts   time.Time
}

// Null returns an empty cell.
func Null() Cell { return Cell{} }

// Numeric returns a numeric cell. Negative zero is normalized to zero.
func Numeric(v float64) Cell {
	if v == 0 {
		v = 0
	}
	return Cell{kind: KindNumeric, num: v}
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Boolean returns a boolean cell.
func Boolean(b bool) Cell { return Cell{kind: KindBoolean, flag: b} }

// Temporal returns a timestamp cell, normalized to UTC.
func Temporal(t time.Time) Cell { return Cell{kind: KindTemporal, ts: t.UTC()} }

// Kind reports the variant held by the cell.
func (c Cell) Kind() Kind { return c.kind }

// IsNull reports whether the cell is empty.
func (c Cell) IsNull() bool { return c.kind == KindNull }

// Float returns the numeric value.
func (c Cell) Float() (float64, bool) { return c.num, c.kind == KindNumeric }

// Str returns the text value.
func (c Cell) Str() (string, bool) { return c.text, c.kind == KindText }

// Bool returns the boolean value.
func (c Cell) Bool() (bool, bool) { return c.flag, c.kind == KindBoolean }

// Time returns the timestamp value.
func (c Cell) Time() (time.Time, bool) { return c.ts, c.kind == KindTemporal }

// Equal reports whether two cells hold the same variant and value.
// Null equals Null.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindNull:
		return true
	case KindNumeric:
		return c.num == o.num
	case KindText:
		return c.text == o.text
	case KindBoolean:
		return c.flag == o.flag
	case KindTemporal:
		return c.ts.Equal(o.ts)
	}
	return false
}

// Key returns a canonical string that is equal for equal cells and
// distinct across kinds. Used for hashing rows and counting frequencies.
func (c Cell) Key() string {
	switch c.kind {
	case KindNumeric:
		return "n:" + strconv.FormatFloat(c.num, 'g', -1, 64)
	case KindText:
		return "s:" + c.text
	case KindBoolean:
		if c.flag {
			return "b:1"
		}
		return "b:0"
	case KindTemporal:
		return "t:" + strconv.FormatInt(c.ts.Unix(), 10) + "." + strconv.Itoa(c.ts.Nanosecond())
	default:
		return "0"
	}
}

// String renders the cell for display. Null renders as an empty string.
func (c Cell) String() string {
	switch c.kind {
	case KindNumeric:
		return strconv.FormatFloat(c.num, 'g', -1, 64)
	case KindText:
		return c.text
	case KindBoolean:
		return strconv.FormatBool(c.flag)
	case KindTemporal:
		return c.ts.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// MarshalJSON encodes the cell as a JSON scalar; timestamps use RFC 3339.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindNumeric:
		if math.IsNaN(c.num) || math.IsInf(c.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(c.num)
	case KindText:
		return json.Marshal(c.text)
	case KindBoolean:
		return json.Marshal(c.flag)
	case KindTemporal:
		return json.Marshal(c.ts.Format(time.RFC3339Nano))
	default:
		return []byte("null"), nil
	}
}
