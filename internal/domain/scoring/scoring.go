// Package scoring derives the 0-100 quality score from the counters of a
// defect report. The score depends on the counters alone, so scoring the
// same report twice yields the same value.
package scoring

import "math"

// Default penalty caps; they sum to MaxScore.
const (
	MaxScore = 100

	defaultEmptyColumnCap       = 15
	defaultDuplicateRowCap      = 20
	defaultMissingValueCap      = 25
	defaultOutlierCap           = 20
	defaultTypeInconsistencyCap = 20
)

// Counters are the shape and defect totals a score is computed from.
type Counters struct {
	Rows                int `json:"rows"`
	Columns             int `json:"columns"`
	TotalCells          int `json:"total_cells"`
	NullCells           int `json:"null_cells"`
	EmptyColumns        int `json:"empty_columns"`
	DuplicateRows       int `json:"duplicate_rows"`
	OutlierRows         int `json:"outlier_rows"`
	InconsistentColumns int `json:"inconsistent_columns"`
}

// Source is anything that can report its counters, typically a defect report.
type Source interface {
	Counters() Counters
}

// Weights are the maximum penalty per defect kind.
type Weights struct {
	EmptyColumn       float64 `json:"empty_column"`
	DuplicateRow      float64 `json:"duplicate_row"`
	MissingValue      float64 `json:"missing_value"`
	Outlier           float64 `json:"outlier"`
	TypeInconsistency float64 `json:"type_inconsistency"`
}

// DefaultWeights returns the fixed caps 15/20/25/20/20.
func DefaultWeights() Weights {
	return Weights{
		EmptyColumn:       defaultEmptyColumnCap,
		DuplicateRow:      defaultDuplicateRowCap,
		MissingValue:      defaultMissingValueCap,
		Outlier:           defaultOutlierCap,
		TypeInconsistency: defaultTypeInconsistencyCap,
	}
}

// Breakdown is the penalty charged per defect kind.
type Breakdown struct {
	EmptyColumn       float64 `json:"empty_column"`
	DuplicateRow      float64 `json:"duplicate_row"`
	MissingValue      float64 `json:"missing_value"`
	Outlier           float64 `json:"outlier"`
	TypeInconsistency float64 `json:"type_inconsistency"`
}

// Total sums the penalties.
func (b Breakdown) Total() float64 {
	return b.EmptyColumn + b.DuplicateRow + b.MissingValue + b.Outlier + b.TypeInconsistency
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the penalty caps. Negative caps are ignored.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if w.EmptyColumn >= 0 && w.DuplicateRow >= 0 && w.MissingValue >= 0 &&
			w.Outlier >= 0 && w.TypeInconsistency >= 0 {
			s.weights = w
		}
	}
}

// Scorer computes scores with a fixed set of weights.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the default caps unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the caps in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Penalties splits the deduction across defect kinds.
func (s *Scorer) Penalties(c Counters) Breakdown {
	return Breakdown{
		EmptyColumn:       s.weights.EmptyColumn * ratio(c.EmptyColumns, c.Columns),
		DuplicateRow:      s.weights.DuplicateRow * ratio(c.DuplicateRows, c.Rows),
		MissingValue:      s.weights.MissingValue * ratio(c.NullCells, c.TotalCells),
		Outlier:           s.weights.Outlier * ratio(c.OutlierRows, c.Rows),
		TypeInconsistency: s.weights.TypeInconsistency * ratio(c.InconsistentColumns, c.Columns),
	}
}

// Score returns MaxScore minus the penalties, clamped to [0, MaxScore].
func (s *Scorer) Score(src Source) float64 {
	return clamp(MaxScore - s.Penalties(src.Counters()).Total())
}

var defaultScorer = NewScorer()

// Score scores src with the default caps.
func Score(src Source) float64 { return defaultScorer.Score(src) }

// Counters implements Source so raw counters can be scored directly.
func (c Counters) Counters() Counters { return c }

func ratio(part, whole int) float64 {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part > whole {
		return 1
	}
	return float64(part) / float64(whole)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(MaxScore, v))
}
