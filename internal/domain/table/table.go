package table

import (
	"fmt"
	"strings"
)

// Column is a named, typed sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// NonNull returns the number of non-null cells.
func (c *Column) NonNull() int {
	n := 0
	for _, cell := range c.Cells {
		if !cell.IsNull() {
			n++
		}
	}
	return n
}

// Nulls returns the number of null cells.
func (c *Column) Nulls() int { return len(c.Cells) - c.NonNull() }

// Floats returns the non-null numeric values in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if v, ok := cell.Float(); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *Column) clone() *Column {
	cells := make([]Cell, len(c.Cells))
	copy(cells, c.Cells)
	return &Column{Name: c.Name, Kind: c.Kind, Cells: cells}
}

// Table is an ordered set of uniquely named columns with a uniform row count.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a table and validates the invariants: non-empty unique names
// and equal row counts. The cell slices are copied.
func New(cols ...Column) (*Table, error) {
	t := &Table{
		columns: make([]*Column, 0, len(cols)),
		index:   make(map[string]int, len(cols)),
	}
	for i := range cols {
		col := cols[i]
		if strings.TrimSpace(col.Name) == "" {
			return nil, fmt.Errorf("column %d: %w", i, ErrEmptyColumnName)
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("%q: %w", col.Name, ErrDuplicateColumn)
		}
		if i == 0 {
			t.rows = len(col.Cells)
		} else if len(col.Cells) != t.rows {
			return nil, fmt.Errorf("%q has %d rows, expected %d: %w", col.Name, len(col.Cells), t.rows, ErrRaggedColumns)
		}
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col.clone())
	}
	return t, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Rows returns the row count.
func (t *Table) Rows() int { return t.rows }

// Width returns the column count.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the columns in order. Callers must not mutate them;
// use Clone and the mutation methods instead.
func (t *Table) Columns() []*Column { return t.columns }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Cell returns the cell at row r of column c.
func (t *Table) Cell(r, c int) Cell { return t.columns[c].Cells[r] }

// Row returns a copy of row r.
func (t *Table) Row(r int) []Cell {
	row := make([]Cell, len(t.columns))
	for i, c := range t.columns {
		row[i] = c.Cells[r]
	}
	return row
}

// RowKey returns a key equal for rows whose cells are all equal.
func (t *Table) RowKey(r int) string {
	var b strings.Builder
	for i, c := range t.columns {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(c.Cells[r].Key())
	}
	return b.String()
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		rows:    t.rows,
	}
	for i, c := range t.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// Equal reports whether both tables have the same columns (name, kind,
// order) and equal cells.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for i, c := range t.columns {
		oc := o.columns[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for r := range c.Cells {
			if !c.Cells[r].Equal(oc.Cells[r]) {
				return false
			}
		}
	}
	return true
}

// Set replaces the cell at row r of column c.
func (t *Table) Set(r, c int, cell Cell) error {
	if c < 0 || c >= len(t.columns) || r < 0 || r >= t.rows {
		return fmt.Errorf("cell (%d,%d): %w", r, c, ErrOutOfRange)
	}
	t.columns[c].Cells[r] = cell
	return nil
}

// DropColumn removes the named column and returns it with its former position.
func (t *Table) DropColumn(name string) (Column, int, error) {
	pos, ok := t.index[name]
	if !ok {
		return Column{}, -1, fmt.Errorf("%q: %w", name, ErrColumnNotFound)
	}
	col := t.columns[pos]
	t.columns = append(t.columns[:pos], t.columns[pos+1:]...)
	t.reindex()
	if len(t.columns) == 0 {
		t.rows = 0
	}
	return *col, pos, nil
}

// InsertColumn inserts col at position pos. The column must match the
// table's row count unless the table has no columns.
func (t *Table) InsertColumn(pos int, col Column) error {
	if pos < 0 || pos > len(t.columns) {
		return fmt.Errorf("column position %d: %w", pos, ErrOutOfRange)
	}
	if strings.TrimSpace(col.Name) == "" {
		return ErrEmptyColumnName
	}
	if _, dup := t.index[col.Name]; dup {
		return fmt.Errorf("%q: %w", col.Name, ErrDuplicateColumn)
	}
	if len(t.columns) > 0 && len(col.Cells) != t.rows {
		return fmt.Errorf("%q has %d rows, expected %d: %w", col.Name, len(col.Cells), t.rows, ErrRaggedColumns)
	}
	t.columns = append(t.columns, nil)
	copy(t.columns[pos+1:], t.columns[pos:])
	t.columns[pos] = col.clone()
	t.rows = len(col.Cells)
	t.reindex()
	return nil
}

// DeleteRows removes the given row indices. Indices may be in any order;
// duplicates are ignored.
func (t *Table) DeleteRows(rows []int) error {
	drop := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if r < 0 || r >= t.rows {
			return fmt.Errorf("row %d: %w", r, ErrOutOfRange)
		}
		drop[r] = struct{}{}
	}
	if len(drop) == 0 {
		return nil
	}
	for _, c := range t.columns {
		kept := c.Cells[:0]
		for r, cell := range c.Cells {
			if _, ok := drop[r]; !ok {
				kept = append(kept, cell)
			}
		}
		c.Cells = kept
	}
	t.rows -= len(drop)
	return nil
}

// InsertRow inserts a row at position pos.
func (t *Table) InsertRow(pos int, cells []Cell) error {
	if pos < 0 || pos > t.rows {
		return fmt.Errorf("row position %d: %w", pos, ErrOutOfRange)
	}
	if len(cells) != len(t.columns) {
		return fmt.Errorf("row has %d cells, expected %d: %w", len(cells), len(t.columns), ErrRaggedColumns)
	}
	for i, c := range t.columns {
		c.Cells = append(c.Cells, Cell{})
		copy(c.Cells[pos+1:], c.Cells[pos:])
		c.Cells[pos] = cells[i]
	}
	t.rows++
	return nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, c := range t.columns {
		t.index[c.Name] = i
	}
}
