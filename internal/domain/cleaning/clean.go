// Package cleaning repairs the defects found by the quality assessor and
// records every change so it can be undone.
package cleaning

import (
	"fmt"
	"sort"

	"github.com/okian/datalens/internal/domain/quality"
	"github.com/okian/datalens/internal/domain/stats"
	"github.com/okian/datalens/internal/domain/table"
)

// Option configures a cleaning run.
type Option func(*cleaner)

// WithOutlierClipping opts into clipping flagged outlier cells to the Tukey
// fences they were flagged against. Outliers are only flagged otherwise.
func WithOutlierClipping(enabled bool) Option {
	return func(c *cleaner) { c.clip = enabled }
}

type cleaner struct {
	clip bool
}

// Clean applies, in order: drop empty columns, remove duplicate rows
// keeping the first occurrence, impute missing values, and optionally clip
// outliers. The input is never modified; on error nothing is returned.
func Clean(t *table.Table, report quality.Report, opts ...Option) (*table.Table, Log, error) {
	c := cleaner{}
	for _, opt := range opts {
		opt(&c)
	}
	if err := validate(t, report); err != nil {
		return nil, Log{}, err
	}

	out := t.Clone()
	log := Log{RowsBefore: t.Rows(), ColumnsBefore: t.Width()}

	for _, f := range report.ByKind(quality.EmptyColumn) {
		col, pos, err := out.DropColumn(f.Column)
		if err != nil {
			return nil, Log{}, &Error{Kind: ErrInconsistentReport, Column: f.Column, Row: -1, Detail: err.Error()}
		}
		log.Actions = append(log.Actions, Action{
			Kind: Drop, Column: col.Name, ColumnKind: col.Kind, Position: pos, Row: -1, Cells: col.Cells,
		})
	}
	if out.Width() == 0 {
		return nil, Log{}, &Error{Kind: ErrCleaningInfeasible, Row: -1}
	}

	removed, err := dedupe(out, report, &log)
	if err != nil {
		return nil, Log{}, err
	}
	impute(out, report, &log)
	if c.clip {
		clip(t, out, report, removed, &log)
	}

	log.RowsAfter, log.ColumnsAfter = out.Rows(), out.Width()
	return out, log, nil
}

func validate(t *table.Table, report quality.Report) error {
	for _, f := range report.Findings {
		if f.Column != "" {
			if _, ok := t.ColumnIndex(f.Column); !ok {
				return &Error{Kind: ErrInconsistentReport, Column: f.Column, Row: -1, Detail: string(f.Kind)}
			}
		}
		for _, r := range f.Rows {
			if r < 0 || r >= t.Rows() {
				return &Error{Kind: ErrInconsistentReport, Column: f.Column, Row: r, Detail: string(f.Kind)}
			}
		}
		if f.Kind == quality.DuplicateRow && len(f.Rows) != 1 {
			return &Error{Kind: ErrInconsistentReport, Row: -1, Detail: "duplicate finding must name one row"}
		}
	}
	return nil
}

// dedupe removes the reported duplicate rows and returns their original
// indices in ascending order.
func dedupe(out *table.Table, report quality.Report, log *Log) ([]int, error) {
	findings := report.ByKind(quality.DuplicateRow)
	if len(findings) == 0 {
		return nil, nil
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Rows[0] < findings[j].Rows[0] })

	rows := make([]int, 0, len(findings))
	for _, f := range findings {
		r := f.Rows[0]
		rows = append(rows, r)
		log.Actions = append(log.Actions, Action{
			Kind: Dedupe, Position: -1, Row: r, DuplicateOf: f.DuplicateOf, Cells: out.Row(r),
		})
	}
	if err := out.DeleteRows(rows); err != nil {
		return nil, &Error{Kind: ErrInconsistentReport, Row: -1, Detail: err.Error()}
	}
	return rows, nil
}

// impute fills the nulls of every column reported as MissingValue. Numeric
// columns take the median and other kinds the mode; both are computed on
// the deduplicated column.
func impute(out *table.Table, report quality.Report, log *Log) {
	for _, f := range report.ByKind(quality.MissingValue) {
		idx, _ := out.ColumnIndex(f.Column)
		col := out.Columns()[idx]
		fill, ok := fillValue(col)
		if !ok {
			continue
		}
		for r, cell := range col.Cells {
			if !cell.IsNull() {
				continue
			}
			_ = out.Set(r, idx, fill)
			log.Actions = append(log.Actions, Action{
				Kind: Impute, Column: col.Name, Position: idx, Row: r, Before: cell, After: fill,
			})
		}
	}
}

func fillValue(col *table.Column) (table.Cell, bool) {
	if col.Kind == table.KindNumeric {
		values := col.Floats()
		if len(values) == 0 {
			return table.Cell{}, false
		}
		sort.Float64s(values)
		return table.Numeric(stats.Quantile(values, 0.5)), true
	}
	return mode(col)
}

// mode returns the most frequent non-null cell; the first encountered
// wins ties.
func mode(col *table.Column) (table.Cell, bool) {
	counts := make(map[string]int)
	var order []table.Cell
	for _, c := range col.Cells {
		if c.IsNull() {
			continue
		}
		k := c.Key()
		if counts[k] == 0 {
			order = append(order, c)
		}
		counts[k]++
	}
	var (
		best      table.Cell
		bestCount int
	)
	for _, c := range order {
		if n := counts[c.Key()]; n > bestCount {
			best, bestCount = c, n
		}
	}
	return best, bestCount > 0
}

// clip moves every cell named by an Outlier finding onto the fences it was
// flagged against. Fences come from the finding, or from the column of the
// assessed table t when the finding does not carry them. Rows removed as
// duplicates are skipped; the others are shifted past the removals.
func clip(t, out *table.Table, report quality.Report, removed []int, log *Log) {
	computed := make(map[string]stats.Fences)
	for _, f := range report.ByKind(quality.Outlier) {
		if len(f.Rows) != 1 {
			continue
		}
		r := f.Rows[0]
		if i := sort.SearchInts(removed, r); i < len(removed) && removed[i] == r {
			continue
		}
		row := r - sort.SearchInts(removed, r)

		fences, ok := findingFences(f)
		if !ok {
			if fences, ok = computed[f.Column]; !ok {
				src, found := t.Column(f.Column)
				if !found {
					continue
				}
				values := src.Floats()
				if len(values) < quality.MinOutlierSample {
					continue
				}
				fences = stats.TukeyFences(values)
				computed[f.Column] = fences
			}
		}

		idx, ok := out.ColumnIndex(f.Column)
		if !ok {
			continue
		}
		cell := out.Cell(row, idx)
		v, ok := cell.Float()
		if !ok || !fences.Outside(v) {
			continue
		}
		after := table.Numeric(fences.Clip(v))
		_ = out.Set(row, idx, after)
		log.Actions = append(log.Actions, Action{
			Kind: Clip, Column: f.Column, Position: idx, Row: row, Before: cell, After: after,
		})
	}
}

func findingFences(f quality.Finding) (stats.Fences, bool) {
	if f.Lower == nil || f.Upper == nil {
		return stats.Fences{}, false
	}
	return stats.Fences{Lower: *f.Lower, Upper: *f.Upper}, true
}

// Undo reverses a log produced by Clean and returns the original table.
// cleaned is not modified.
func Undo(cleaned *table.Table, log Log) (*table.Table, error) {
	out := cleaned.Clone()

	// Cell edits first, newest first.
	for i := len(log.Actions) - 1; i >= 0; i-- {
		a := log.Actions[i]
		if a.Kind != Impute && a.Kind != Clip {
			continue
		}
		idx, ok := out.ColumnIndex(a.Column)
		if !ok {
			return nil, &Error{Kind: ErrInconsistentLog, Column: a.Column, Row: a.Row}
		}
		if err := out.Set(a.Row, idx, a.Before); err != nil {
			return nil, &Error{Kind: ErrInconsistentLog, Column: a.Column, Row: a.Row, Detail: err.Error()}
		}
	}

	// Removed rows go back in ascending order of their original index.
	var restored []Action
	for _, a := range log.Actions {
		if a.Kind == Dedupe {
			restored = append(restored, a)
		}
	}
	sort.SliceStable(restored, func(i, j int) bool { return restored[i].Row < restored[j].Row })
	for _, a := range restored {
		if err := out.InsertRow(a.Row, a.Cells); err != nil {
			return nil, &Error{Kind: ErrInconsistentLog, Row: a.Row, Detail: err.Error()}
		}
	}

	for i := len(log.Actions) - 1; i >= 0; i-- {
		a := log.Actions[i]
		if a.Kind != Drop {
			continue
		}
		err := out.InsertColumn(a.Position, table.Column{Name: a.Column, Kind: a.ColumnKind, Cells: a.Cells})
		if err != nil {
			return nil, &Error{Kind: ErrInconsistentLog, Column: a.Column, Row: -1, Detail: fmt.Sprintf("position %d: %v", a.Position, err)}
		}
	}
	return out, nil
}
