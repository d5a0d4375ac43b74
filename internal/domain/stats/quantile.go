package stats

import (
	"math"
	"sort"
)

// tukeyK is the IQR multiplier for the outlier fences.
const tukeyK = 1.5

// Quantile returns the p-quantile of sorted values using linear
// interpolation between closest ranks at position p*(n-1). It returns 0
// for an empty slice.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Fences are the Tukey outlier bounds of a sample.
type Fences struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Outside reports whether v lies strictly outside the fences.
func (f Fences) Outside(v float64) bool { return v < f.Lower || v > f.Upper }

// Clip moves v onto the nearest fence when it lies outside.
func (f Fences) Clip(v float64) float64 { return math.Max(f.Lower, math.Min(f.Upper, v)) }

// TukeyFences computes Q1 - 1.5*IQR and Q3 + 1.5*IQR over values, which
// need not be sorted.
func TukeyFences(values []float64) Fences {
	sorted := sortedCopy(values)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	return Fences{Q1: q1, Q3: q3, Lower: q1 - tukeyK*iqr, Upper: q3 + tukeyK*iqr}
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
