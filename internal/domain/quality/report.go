// Package quality inspects a canonical table for defects and scores it.
package quality

import "github.com/okian/datalens/internal/domain/scoring"

// DefectKind classifies a finding.
type DefectKind string

// Defect kinds, in the order findings are reported.
const (
	EmptyColumn       DefectKind = "empty_column"
	DuplicateRow      DefectKind = "duplicate_row"
	MissingValue      DefectKind = "missing_value"
	Outlier           DefectKind = "outlier"
	TypeInconsistency DefectKind = "type_inconsistency"
)

// Kinds lists every defect kind.
func Kinds() []DefectKind {
	return []DefectKind{EmptyColumn, DuplicateRow, MissingValue, Outlier, TypeInconsistency}
}

// Finding is a single detected defect.
//
// Column is empty for DuplicateRow findings. Rows holds the affected row
// indices: the null rows of a MissingValue column, the repeated row of a
// DuplicateRow (whose first occurrence is DuplicateOf) or the row of an
// Outlier cell. Outlier findings also carry the fences the cell fell
// outside of. Severity is the finding's share of the score deduction.
type Finding struct {
	Kind        DefectKind `json:"kind"`
	Column      string     `json:"column,omitempty"`
	Rows        []int      `json:"rows,omitempty"`
	DuplicateOf *int       `json:"duplicate_of,omitempty"`
	Value       *float64   `json:"value,omitempty"`
	Lower       *float64   `json:"lower_fence,omitempty"`
	Upper       *float64   `json:"upper_fence,omitempty"`
	Fraction    float64    `json:"fraction,omitempty"`
	Severity    float64    `json:"severity"`
}

// Report is the outcome of an assessment.
//
// QuasiEmptyColumns and EmptyRows are informational and do not enter the
// score. A quasi-empty column still holds at least one value but is at
// least QuasiEmptyFraction null; EmptyRows lists the rows with no value.
type Report struct {
	Findings          []Finding         `json:"findings"`
	Shape             scoring.Counters  `json:"counters"`
	Penalties         scoring.Breakdown `json:"penalties"`
	QuasiEmptyColumns []string          `json:"quasi_empty_columns,omitempty"`
	EmptyRows         []int             `json:"empty_rows,omitempty"`
}

// Counters implements scoring.Source.
func (r Report) Counters() scoring.Counters { return r.Shape }

// ByKind returns the findings of one kind in report order.
func (r Report) ByKind(kind DefectKind) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// CountByKind tallies findings per kind; every kind is present.
func (r Report) CountByKind() map[DefectKind]int {
	out := make(map[DefectKind]int, len(Kinds()))
	for _, k := range Kinds() {
		out[k] = 0
	}
	for _, f := range r.Findings {
		out[f.Kind]++
	}
	return out
}

// ExcludeFromCharts names the empty and quasi-empty columns, which carry
// too little data to plot.
func (r Report) ExcludeFromCharts() []string {
	var out []string
	for _, f := range r.ByKind(EmptyColumn) {
		out = append(out, f.Column)
	}
	return append(out, r.QuasiEmptyColumns...)
}

// TotalSeverity sums the finding severities.
func (r Report) TotalSeverity() float64 {
	var sum float64
	for _, f := range r.Findings {
		sum += f.Severity
	}
	return sum
}
