package quality

import (
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/scoring"
	"github.com/okian/datalens/internal/domain/stats"
	"github.com/okian/datalens/internal/domain/table"
)

const (
	defaultTypeInconsistencyThreshold = 0.30
	// MinOutlierSample is the smallest non-null count a numeric column
	// needs before outliers are looked for.
	MinOutlierSample = 4
	// QuasiEmptyFraction is the null share from which a column that still
	// holds a value is reported as quasi-empty.
	QuasiEmptyFraction = 0.9
)

// Option configures an assessment.
type Option func(*assessor)

// WithTypeInconsistencyThreshold sets the share of numeric-looking cells
// above which a text column is flagged. Values outside (0,1) are ignored.
func WithTypeInconsistencyThreshold(f float64) Option {
	return func(a *assessor) {
		if f > 0 && f < 1 {
			a.threshold = f
		}
	}
}

// WithScorer overrides the scorer used for the score and severities.
func WithScorer(s *scoring.Scorer) Option {
	return func(a *assessor) {
		if s != nil {
			a.scorer = s
		}
	}
}

type assessor struct {
	threshold float64
	scorer    *scoring.Scorer
}

// Assess runs every rule over t and returns the report and its score.
// It never fails; an empty table yields an empty report scoring 100.
func Assess(t *table.Table, opts ...Option) (Report, float64) {
	a := assessor{threshold: defaultTypeInconsistencyThreshold, scorer: scoring.NewScorer()}
	for _, opt := range opts {
		opt(&a)
	}

	rows, cols := t.Rows(), t.Width()
	w := a.scorer.Weights()
	shape := scoring.Counters{Rows: rows, Columns: cols, TotalCells: rows * cols}
	var (
		empty, missing, outliers, inconsistent, duplicates []Finding
		outlierRows                                        = map[int][]int{}
		quasiEmpty                                         []string
	)

	for _, col := range t.Columns() {
		nulls := col.Nulls()
		shape.NullCells += nulls
		if rows == 0 {
			continue
		}

		switch {
		case nulls == rows:
			shape.EmptyColumns++
			empty = append(empty, Finding{
				Kind:     EmptyColumn,
				Column:   col.Name,
				Fraction: 1,
				Severity: w.EmptyColumn/float64(cols) + w.MissingValue/float64(cols),
			})
		case nulls > 0:
			missing = append(missing, Finding{
				Kind:     MissingValue,
				Column:   col.Name,
				Rows:     nullRows(col),
				Fraction: float64(nulls) / float64(rows),
				Severity: w.MissingValue * float64(nulls) / float64(shape.TotalCells),
			})
			if float64(nulls)/float64(rows) >= QuasiEmptyFraction {
				quasiEmpty = append(quasiEmpty, col.Name)
			}
		}

		if col.Kind == table.KindNumeric && rows-nulls >= MinOutlierSample {
			fences := stats.TukeyFences(col.Floats())
			for r, cell := range col.Cells {
				v, ok := cell.Float()
				if !ok || !fences.Outside(v) {
					continue
				}
				lower, upper := fences.Lower, fences.Upper
				outliers = append(outliers, Finding{
					Kind: Outlier, Column: col.Name, Rows: []int{r}, Value: &v, Lower: &lower, Upper: &upper,
				})
				outlierRows[r] = append(outlierRows[r], len(outliers)-1)
			}
		}

		if col.Kind == table.KindText && rows-nulls > 0 {
			frac := numericShare(col)
			if frac > a.threshold {
				shape.InconsistentColumns++
				inconsistent = append(inconsistent, Finding{
					Kind:     TypeInconsistency,
					Column:   col.Name,
					Fraction: frac,
					Severity: w.TypeInconsistency / float64(cols),
				})
			}
		}
	}

	if rows > 0 && cols > 0 {
		first := make(map[string]int, rows)
		for r := 0; r < rows; r++ {
			key := t.RowKey(r)
			orig, seen := first[key]
			if !seen {
				first[key] = r
				continue
			}
			duplicates = append(duplicates, Finding{
				Kind:        DuplicateRow,
				Rows:        []int{r},
				DuplicateOf: &orig,
				Severity:    w.DuplicateRow / float64(rows),
			})
		}
		shape.DuplicateRows = len(duplicates)
	}

	shape.OutlierRows = len(outlierRows)
	for _, idx := range outlierRows {
		share := w.Outlier / float64(rows) / float64(len(idx))
		for _, i := range idx {
			outliers[i].Severity = share
		}
	}

	report := Report{
		Shape:             shape,
		Penalties:         a.scorer.Penalties(shape),
		QuasiEmptyColumns: quasiEmpty,
		EmptyRows:         emptyRows(t),
	}
	report.Findings = make([]Finding, 0, len(empty)+len(duplicates)+len(missing)+len(outliers)+len(inconsistent))
	report.Findings = append(report.Findings, empty...)
	report.Findings = append(report.Findings, duplicates...)
	report.Findings = append(report.Findings, missing...)
	report.Findings = append(report.Findings, outliers...)
	report.Findings = append(report.Findings, inconsistent...)
	return report, a.scorer.Score(report)
}

// emptyRows returns the rows in which every cell is null.
func emptyRows(t *table.Table) []int {
	if t.Width() == 0 {
		return nil
	}
	var out []int
	for r := 0; r < t.Rows(); r++ {
		empty := true
		for _, col := range t.Columns() {
			if !col.Cells[r].IsNull() {
				empty = false
				break
			}
		}
		if empty {
			out = append(out, r)
		}
	}
	return out
}

func nullRows(col *table.Column) []int {
	var out []int
	for r, c := range col.Cells {
		if c.IsNull() {
			out = append(out, r)
		}
	}
	return out
}

// numericShare is the fraction of non-null text cells that parse as numbers.
func numericShare(col *table.Column) float64 {
	var total, numeric int
	for _, c := range col.Cells {
		s, ok := c.Str()
		if !ok {
			if !c.IsNull() {
				total++
			}
			continue
		}
		total++
		if loader.IsNumericText(s) {
			numeric++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(numeric) / float64(total)
}
