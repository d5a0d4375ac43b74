package stats

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/datalens/internal/domain/table"
)

const (
	defaultTopK             = 10
	maxTopCorrelations      = 10
	minRelationshipGroups   = 2
	maxRelationshipGroups   = 20
	minOutlierSample        = 4
	percentScale            = 100
	minCorrelationSampleLen = 2
)

// Option configures Analyze.
type Option func(*analyzer)

// WithTopK sets how many frequent values are kept per column.
func WithTopK(k int) Option {
	return func(a *analyzer) {
		if k > 0 {
			a.topK = k
		}
	}
}

type analyzer struct {
	topK int
}

// Analyze summarizes t. It never fails: degenerate columns produce zero
// dispersion and undefined correlations instead of NaN.
func Analyze(t *table.Table, opts ...Option) Summary {
	a := analyzer{topK: defaultTopK}
	for _, opt := range opts {
		opt(&a)
	}

	rows := t.Rows()
	s := Summary{
		Metadata:        Metadata{Rows: rows, Columns: t.Width()},
		Columns:         make([]ColumnSummary, 0, t.Width()),
		TopCorrelations: []CorrelationPair{},
		Relationships:   []Relationship{},
	}

	for _, col := range t.Columns() {
		cs := ColumnSummary{
			Name:       col.Name,
			Kind:       col.Kind.String(),
			Count:      col.NonNull(),
			Missing:    col.Nulls(),
			Uniqueness: uniqueness(col, rows),
		}
		cs.MissingPercent = percent(cs.Missing, rows)
		s.Metadata.MissingCells += cs.Missing

		switch col.Kind {
		case table.KindNumeric:
			s.Metadata.NumericColumns++
			cs.Numeric = numericStats(col.Floats())
		case table.KindTemporal:
			s.Metadata.TemporalColumns++
			cs.Temporal = a.temporalStats(col)
		case table.KindBoolean:
			s.Metadata.BooleanColumns++
			cs.Categorical = a.categoricalStats(col)
		default:
			s.Metadata.CategoricalColumns++
			cs.Categorical = a.categoricalStats(col)
		}
		s.Columns = append(s.Columns, cs)
	}
	s.Metadata.MissingPercent = percent(s.Metadata.MissingCells, rows*t.Width())

	s.Correlation = correlation(t)
	s.TopCorrelations = topCorrelations(s.Correlation)
	s.Relationships = relationships(t)
	return s
}

func numericStats(values []float64) *NumericStats {
	ns := &NumericStats{}
	if len(values) == 0 {
		return ns
	}
	sorted := sortedCopy(values)
	ns.Min, ns.Max = sorted[0], sorted[len(sorted)-1]
	ns.Median = Quantile(sorted, 0.5)
	ns.Q1 = Quantile(sorted, 0.25)
	ns.Q3 = Quantile(sorted, 0.75)

	if ns.Min == ns.Max {
		ns.Mean = ns.Min
	} else {
		mean, variance := stat.PopMeanVariance(values, nil)
		ns.Mean = finite(mean)
		ns.StdDev = finite(math.Sqrt(variance))
		ns.Skewness = finite(stat.Skew(values, nil))
		ns.Kurtosis = finite(stat.ExKurtosis(values, nil))
	}

	if len(values) >= minOutlierSample {
		f := TukeyFences(values)
		ns.LowerFence, ns.UpperFence = f.Lower, f.Upper
		for _, v := range values {
			if f.Outside(v) {
				ns.Outliers++
			}
		}
	}
	return ns
}

// frequencies counts non-null values by key, remembering first-seen order.
func frequencies(col *table.Column) (order []string, display map[string]string, counts map[string]int) {
	display = make(map[string]string)
	counts = make(map[string]int)
	for _, c := range col.Cells {
		if c.IsNull() {
			continue
		}
		k := c.Key()
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			display[k] = c.String()
		}
		counts[k]++
	}
	return order, display, counts
}

func (a analyzer) topValues(col *table.Column) (int, []Frequency) {
	order, display, counts := frequencies(col)
	total := 0
	for _, n := range counts {
		total += n
	}
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
	if len(ranked) > a.topK {
		ranked = ranked[:a.topK]
	}
	top := make([]Frequency, len(ranked))
	for i, k := range ranked {
		top[i] = Frequency{Value: display[k], Count: counts[k], Percent: percent(counts[k], total)}
	}
	return len(order), top
}

func (a analyzer) categoricalStats(col *table.Column) *CategoricalStats {
	distinct, top := a.topValues(col)
	return &CategoricalStats{Distinct: distinct, Top: top}
}

func (a analyzer) temporalStats(col *table.Column) *TemporalStats {
	distinct, top := a.topValues(col)
	ts := &TemporalStats{Distinct: distinct, Top: top}
	for _, c := range col.Cells {
		v, ok := c.Time()
		if !ok {
			continue
		}
		if ts.Earliest == nil || v.Before(*ts.Earliest) {
			ts.Earliest = timePtr(v)
		}
		if ts.Latest == nil || v.After(*ts.Latest) {
			ts.Latest = timePtr(v)
		}
	}
	return ts
}

func uniqueness(col *table.Column, rows int) Uniqueness {
	order, _, _ := frequencies(col)
	u := Uniqueness{Unique: len(order)}
	u.Ratio = ratio(u.Unique, rows)
	u.IsUnique = rows > 0 && u.Unique == rows
	u.IsConstant = u.Unique == 1
	return u
}

// correlation builds the Pearson matrix over pairwise-complete rows.
func correlation(t *table.Table) Correlation {
	var cols []*table.Column
	for _, c := range t.Columns() {
		if c.Kind == table.KindNumeric {
			cols = append(cols, c)
		}
	}
	m := Correlation{Columns: make([]string, len(cols)), Matrix: make([][]*float64, len(cols))}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Matrix[i] = make([]*float64, len(cols))
	}
	for i := range cols {
		if cols[i].NonNull() >= minCorrelationSampleLen {
			m.Matrix[i][i] = floatPtr(1)
		}
		for j := i + 1; j < len(cols); j++ {
			if r, ok := pearson(cols[i], cols[j]); ok {
				m.Matrix[i][j] = floatPtr(r)
				m.Matrix[j][i] = floatPtr(r)
			}
		}
	}
	return m
}

func pearson(a, b *table.Column) (float64, bool) {
	if a.NonNull() < minCorrelationSampleLen || b.NonNull() < minCorrelationSampleLen {
		return 0, false
	}
	var xs, ys []float64
	for r := range a.Cells {
		x, okx := a.Cells[r].Float()
		y, oky := b.Cells[r].Float()
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < minCorrelationSampleLen || constant(xs) || constant(ys) {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func topCorrelations(c Correlation) []CorrelationPair {
	pairs := []CorrelationPair{}
	for i := range c.Columns {
		for j := i + 1; j < len(c.Columns); j++ {
			if v := c.Matrix[i][j]; v != nil {
				pairs = append(pairs, CorrelationPair{A: c.Columns[i], B: c.Columns[j], Coefficient: *v})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].Coefficient) > math.Abs(pairs[j].Coefficient)
	})
	if len(pairs) > maxTopCorrelations {
		pairs = pairs[:maxTopCorrelations]
	}
	return pairs
}

// relationships pairs every low-cardinality categorical column with every
// numeric column and reports group means and eta squared.
func relationships(t *table.Table) []Relationship {
	var cats, nums []*table.Column
	for _, c := range t.Columns() {
		switch c.Kind {
		case table.KindNumeric:
			nums = append(nums, c)
		case table.KindText, table.KindBoolean:
			order, _, _ := frequencies(c)
			if len(order) >= minRelationshipGroups && len(order) <= maxRelationshipGroups {
				cats = append(cats, c)
			}
		}
	}

	out := []Relationship{}
	for _, cat := range cats {
		for _, num := range nums {
			if rel, ok := relate(cat, num); ok {
				out = append(out, rel)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EtaSquared > out[j].EtaSquared })
	return out
}

func relate(cat, num *table.Column) (Relationship, bool) {
	type group struct {
		label string
		sum   float64
		n     int
	}
	var (
		order  []string
		groups = map[string]*group{}
		all    []float64
	)
	for r := range cat.Cells {
		c := cat.Cells[r]
		v, ok := num.Cells[r].Float()
		if c.IsNull() || !ok {
			continue
		}
		k := c.Key()
		g, seen := groups[k]
		if !seen {
			g = &group{label: c.String()}
			groups[k] = g
			order = append(order, k)
		}
		g.sum += v
		g.n++
		all = append(all, v)
	}
	if len(order) < minRelationshipGroups {
		return Relationship{}, false
	}

	grand := stat.Mean(all, nil)
	var between, total float64
	for _, v := range all {
		total += (v - grand) * (v - grand)
	}
	rel := Relationship{Categorical: cat.Name, Numeric: num.Name, Groups: make([]GroupMean, len(order))}
	for i, k := range order {
		g := groups[k]
		mean := g.sum / float64(g.n)
		between += float64(g.n) * (mean - grand) * (mean - grand)
		rel.Groups[i] = GroupMean{Value: g.label, Count: g.n, Mean: finite(mean)}
	}
	if total > 0 {
		rel.EtaSquared = finite(math.Min(1, between/total))
	}
	return rel, true
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func percent(part, whole int) float64 { return ratio(part, whole) * percentScale }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }
