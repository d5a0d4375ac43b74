package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/okian/datalens/internal/domain/table"
)

// orderedObject is a JSON object with keys in document order.
type orderedObject struct {
	keys   []string
	values map[string]json.RawMessage
}

// recordSet accumulates rows keyed by column name, remembering the order
// in which columns first appear.
type recordSet struct {
	order []string
	cols  map[string][]table.Cell
	rows  int
}

func newRecordSet() *recordSet {
	return &recordSet{cols: make(map[string][]table.Cell)}
}

func (s *recordSet) add(obj orderedObject) error {
	for _, k := range obj.keys {
		if _, ok := s.cols[k]; !ok {
			s.order = append(s.order, k)
			s.cols[k] = make([]table.Cell, s.rows)
		}
		c, err := jsonCell(obj.values[k])
		if err != nil {
			return err
		}
		s.cols[k] = append(s.cols[k], c)
	}
	s.rows++
	for _, k := range s.order {
		if len(s.cols[k]) < s.rows {
			s.cols[k] = append(s.cols[k], table.Null())
		}
	}
	return nil
}

func (s *recordSet) columns() []rawColumn {
	out := make([]rawColumn, len(s.order))
	for i, k := range s.order {
		out[i] = rawColumn{name: k, cells: s.cols[k]}
	}
	return out
}

func readRecords(data []byte) ([]rawColumn, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	switch data[0] {
	case '[':
		return readRecordArray(data)
	case '{':
		return readObjects(data)
	}
	return nil, malformed(StructuredRecord, -1, "expected a JSON array or object", nil)
}

// readRecordArray handles [{"a":1}, {"a":2}].
func readRecordArray(data []byte) ([]rawColumn, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, malformed(StructuredRecord, -1, "invalid JSON", err)
	}
	set := newRecordSet()
	for i, item := range items {
		obj, err := decodeObject(item)
		if err != nil {
			return nil, malformed(StructuredRecord, i, "record is not an object", err)
		}
		if err := set.add(obj); err != nil {
			return nil, malformed(StructuredRecord, i, "", err)
		}
	}
	return set.columns(), nil
}

// readObjects handles a single object (column orientations) or
// newline-delimited records.
func readObjects(data []byte) ([]rawColumn, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var objects []json.RawMessage
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(StructuredRecord, len(objects), "invalid JSON", err)
		}
		objects = append(objects, raw)
	}

	if len(objects) > 1 {
		set := newRecordSet()
		for i, raw := range objects {
			obj, err := decodeObject(raw)
			if err != nil {
				return nil, malformed(StructuredRecord, i, "line is not an object", err)
			}
			if err := set.add(obj); err != nil {
				return nil, malformed(StructuredRecord, i, "", err)
			}
		}
		return set.columns(), nil
	}

	obj, err := decodeObject(objects[0])
	if err != nil {
		return nil, malformed(StructuredRecord, -1, "invalid JSON", err)
	}
	switch shapeOf(obj) {
	case '[':
		return readColumnArrays(obj)
	case '{':
		return readColumnObjects(obj)
	}
	set := newRecordSet()
	if err := set.add(obj); err != nil {
		return nil, malformed(StructuredRecord, 0, "", err)
	}
	return set.columns(), nil
}

// shapeOf returns '[' or '{' when every value of obj is an array or every
// value is an object, and 0 otherwise.
func shapeOf(obj orderedObject) byte {
	var shape byte
	for i, k := range obj.keys {
		v := bytes.TrimSpace(obj.values[k])
		if len(v) == 0 || (v[0] != '[' && v[0] != '{') {
			return 0
		}
		if i == 0 {
			shape = v[0]
		} else if v[0] != shape {
			return 0
		}
	}
	return shape
}

// readColumnArrays handles {"a":[1,2],"b":[3,4]}.
func readColumnArrays(obj orderedObject) ([]rawColumn, error) {
	cols := make([]rawColumn, len(obj.keys))
	for i, k := range obj.keys {
		var items []json.RawMessage
		if err := json.Unmarshal(obj.values[k], &items); err != nil {
			return nil, &Error{Kind: ErrMalformedInput, Format: StructuredRecord, Row: -1, Column: k, Err: err}
		}
		if i > 0 && len(items) != len(cols[0].cells) {
			return nil, &Error{Kind: ErrMalformedInput, Format: StructuredRecord, Row: -1, Column: k,
				Detail: fmt.Sprintf("%d values, expected %d", len(items), len(cols[0].cells))}
		}
		cols[i].name = k
		cols[i].cells = make([]table.Cell, len(items))
		for r, item := range items {
			c, err := jsonCell(item)
			if err != nil {
				return nil, &Error{Kind: ErrMalformedInput, Format: StructuredRecord, Row: r, Column: k, Err: err}
			}
			cols[i].cells[r] = c
		}
	}
	return cols, nil
}

// readColumnObjects handles {"a":{"0":1,"1":2},"b":{"0":3}}; row labels
// are ordered by first appearance and missing labels are null.
func readColumnObjects(obj orderedObject) ([]rawColumn, error) {
	var labels []string
	labelIndex := make(map[string]int)
	inner := make([]orderedObject, len(obj.keys))
	for i, k := range obj.keys {
		o, err := decodeObject(obj.values[k])
		if err != nil {
			return nil, &Error{Kind: ErrMalformedInput, Format: StructuredRecord, Row: -1, Column: k, Err: err}
		}
		inner[i] = o
		for _, label := range o.keys {
			if _, ok := labelIndex[label]; !ok {
				labelIndex[label] = len(labels)
				labels = append(labels, label)
			}
		}
	}
	cols := make([]rawColumn, len(obj.keys))
	for i, k := range obj.keys {
		cells := make([]table.Cell, len(labels))
		for _, label := range inner[i].keys {
			c, err := jsonCell(inner[i].values[label])
			if err != nil {
				return nil, &Error{Kind: ErrMalformedInput, Format: StructuredRecord, Row: labelIndex[label], Column: k, Err: err}
			}
			cells[labelIndex[label]] = c
		}
		cols[i] = rawColumn{name: k, cells: cells}
	}
	return cols, nil
}

// decodeObject reads a JSON object keeping key order. Repeated keys keep
// the last value at the first position.
func decodeObject(raw json.RawMessage) (orderedObject, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return orderedObject{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return orderedObject{}, errors.New("not an object")
	}
	obj := orderedObject{values: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return orderedObject{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return orderedObject{}, errors.New("object key is not a string")
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return orderedObject{}, err
		}
		if _, seen := obj.values[key]; !seen {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return orderedObject{}, err
	}
	return obj, nil
}

// jsonCell converts a scalar. Strings go through null-token handling and
// later inference; nested values are kept as compact JSON text.
func jsonCell(raw json.RawMessage) (table.Cell, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return table.Null(), nil
	}
	switch raw[0] {
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return table.Cell{}, err
		}
		return table.Text(buf.String()), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return table.Cell{}, err
	}
	switch x := v.(type) {
	case nil:
		return table.Null(), nil
	case string:
		return textCell(x), nil
	case bool:
		return table.Boolean(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return table.Text(x.String()), nil
		}
		return table.Numeric(f), nil
	}
	return table.Text(string(raw)), nil
}
