// Package stats computes the analysis summary of a cleaned table:
// per-column statistics, correlations and categorical/numeric relationships.
package stats

import "time"

// Summary is the analysis of one table.
type Summary struct {
	Metadata        Metadata          `json:"metadata"`
	Columns         []ColumnSummary   `json:"columns"`
	Correlation     Correlation       `json:"correlation"`
	TopCorrelations []CorrelationPair `json:"top_correlations"`
	Relationships   []Relationship    `json:"relationships"`
}

// Column returns the summary of the named column.
func (s Summary) Column(name string) (ColumnSummary, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

// Metadata describes the analyzed table as a whole.
type Metadata struct {
	Rows               int     `json:"rows"`
	Columns            int     `json:"columns"`
	NumericColumns     int     `json:"numeric_columns"`
	CategoricalColumns int     `json:"categorical_columns"`
	BooleanColumns     int     `json:"boolean_columns"`
	TemporalColumns    int     `json:"temporal_columns"`
	MissingCells       int     `json:"missing_cells"`
	MissingPercent     float64 `json:"missing_percent"`
}

// ColumnSummary holds the statistics of one column. Exactly one of
// Numeric, Categorical and Temporal is set, according to Kind.
type ColumnSummary struct {
	Name           string            `json:"name"`
	Kind           string            `json:"kind"`
	Count          int               `json:"count"`
	Missing        int               `json:"missing"`
	MissingPercent float64           `json:"missing_percent"`
	Numeric        *NumericStats     `json:"numeric,omitempty"`
	Categorical    *CategoricalStats `json:"categorical,omitempty"`
	Temporal       *TemporalStats    `json:"temporal,omitempty"`
	Uniqueness     Uniqueness        `json:"uniqueness"`
}

// NumericStats describe a numeric column. StdDev is the population
// standard deviation. Outliers counts values outside the Tukey fences and
// is only computed for columns with enough values.
type NumericStats struct {
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	StdDev     float64 `json:"stddev"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Q1         float64 `json:"q1"`
	Q3         float64 `json:"q3"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"`
	Outliers   int     `json:"outliers"`
	LowerFence float64 `json:"lower_fence"`
	UpperFence float64 `json:"upper_fence"`
}

// Frequency is one value and how often it occurs.
type Frequency struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CategoricalStats describe a text or boolean column.
type CategoricalStats struct {
	Distinct int         `json:"distinct"`
	Top      []Frequency `json:"top"`
}

// TemporalStats describe a timestamp column.
type TemporalStats struct {
	Distinct int         `json:"distinct"`
	Earliest *time.Time  `json:"earliest,omitempty"`
	Latest   *time.Time  `json:"latest,omitempty"`
	Top      []Frequency `json:"top"`
}

// Uniqueness counts distinct non-null values relative to the row count.
type Uniqueness struct {
	Unique     int     `json:"unique"`
	Ratio      float64 `json:"ratio"`
	IsUnique   bool    `json:"is_unique"`
	IsConstant bool    `json:"is_constant"`
}

// Correlation is a symmetric Pearson matrix over the numeric columns.
// Undefined entries are nil and encode as JSON null.
type Correlation struct {
	Columns []string     `json:"columns"`
	Matrix  [][]*float64 `json:"matrix"`
}

// At returns the coefficient for the named pair.
func (c Correlation) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, name := range c.Columns {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 || c.Matrix[i][j] == nil {
		return 0, false
	}
	return *c.Matrix[i][j], true
}

// CorrelationPair is one defined off-diagonal coefficient.
type CorrelationPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Coefficient float64 `json:"coefficient"`
}

// GroupMean is the mean of a numeric column within one category.
type GroupMean struct {
	Value string  `json:"value"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// Relationship measures how much a categorical column explains a numeric
// one. EtaSquared is the between-group share of the total sum of squares.
type Relationship struct {
	Categorical string      `json:"categorical"`
	Numeric     string      `json:"numeric"`
	Groups      []GroupMean `json:"groups"`
	EtaSquared  float64     `json:"eta_squared"`
}
