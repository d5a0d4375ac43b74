package narrative

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/okian/datalens/internal/domain/quality"
	"github.com/okian/datalens/internal/domain/stats"
)

// Thresholds for the built-in rules.
const (
	highMissingPercent   = 50
	highOutlierPercent   = 5
	strongCorrelation    = 0.9
	highCardinalityRatio = 0.9
	strongEtaSquared     = 0.5
	maxNamesInMessage    = 3
	goodScore            = 90
	acceptableScore      = 70
)

// RuleBased derives a narrative from fixed rules. It is deterministic and
// never calls out.
type RuleBased struct{}

// NewRuleBased returns the rule-based generator.
func NewRuleBased() *RuleBased { return &RuleBased{} }

// Generate implements Generator.
func (g *RuleBased) Generate(ctx context.Context, in Input) (Narrative, error) {
	if err := ctx.Err(); err != nil {
		return Narrative{}, fmt.Errorf("narrative cancelled: %w", err)
	}
	md := in.Summary.Metadata
	n := Narrative{
		Backend: RuleBasedBackend,
		ExecutiveSummary: fmt.Sprintf(
			"Analysis of %d observations across %d variables: %d numeric, %d categorical, %d boolean and %d temporal. Quality score %.1f/100.",
			md.Rows, md.Columns, md.NumericColumns, md.CategoricalColumns, md.BooleanColumns, md.TemporalColumns, in.Score),
		KeyTrends: []string{
			fmt.Sprintf("Dataset with %d observations", md.Rows),
			fmt.Sprintf("%d numeric variable(s) identified", md.NumericColumns),
			fmt.Sprintf("%d categorical variable(s) present", md.CategoricalColumns),
		},
		Insights:        insights(in),
		Anomalies:       anomalies(in.Report),
		Recommendations: recommendations(in),
	}
	n.Conclusion = conclusion(in.Score)
	return n, nil
}

func insights(in Input) []Insight {
	md := in.Summary.Metadata
	out := []Insight{{
		Title: "Dataset composition",
		Description: fmt.Sprintf("The dataset contains %d variables, with %d numeric and %d categorical columns; %.1f%% of cells are missing.",
			md.Columns, md.NumericColumns, md.CategoricalColumns, md.MissingPercent),
	}}
	if len(in.Summary.TopCorrelations) > 0 {
		p := in.Summary.TopCorrelations[0]
		out = append(out, Insight{
			Title:       "Strongest correlation",
			Description: fmt.Sprintf("%s and %s have a Pearson coefficient of %.2f.", p.A, p.B, p.Coefficient),
		})
	}
	if len(in.Summary.Relationships) > 0 {
		r := in.Summary.Relationships[0]
		if r.EtaSquared >= strongEtaSquared {
			out = append(out, Insight{
				Title:       "Group effect",
				Description: fmt.Sprintf("%s explains %.0f%% of the variance of %s.", r.Categorical, r.EtaSquared*100, r.Numeric),
			})
		}
	}
	return out
}

func anomalies(r quality.Report) []string {
	counts := r.CountByKind()
	var out []string
	if n := counts[quality.EmptyColumn]; n > 0 {
		out = append(out, fmt.Sprintf("%d empty column(s)", n))
	}
	if n := counts[quality.DuplicateRow]; n > 0 {
		out = append(out, fmt.Sprintf("%d duplicate row(s)", n))
	}
	if n := counts[quality.MissingValue]; n > 0 {
		out = append(out, fmt.Sprintf("%d column(s) with missing values", n))
	}
	if n := counts[quality.Outlier]; n > 0 {
		out = append(out, fmt.Sprintf("%d outlier value(s)", n))
	}
	if n := counts[quality.TypeInconsistency]; n > 0 {
		out = append(out, fmt.Sprintf("%d text column(s) holding mostly numbers", n))
	}
	if n := len(r.QuasiEmptyColumns); n > 0 {
		out = append(out, fmt.Sprintf("%d quasi-empty column(s) (>=%.0f%% missing): %s",
			n, quality.QuasiEmptyFraction*100, names(r.QuasiEmptyColumns)))
	}
	if n := len(r.EmptyRows); n > 0 {
		out = append(out, fmt.Sprintf("%d completely empty row(s)", n))
	}
	if len(out) == 0 {
		out = append(out, "No major anomalies detected")
	}
	return out
}

func recommendations(in Input) []Recommendation {
	var (
		constant, missing, outliers, cardinal []string
		strong                                int
		out                                   []Recommendation
		rows                                  = in.Summary.Metadata.Rows
	)
	for _, c := range in.Summary.Columns {
		if c.Uniqueness.IsConstant {
			constant = append(constant, c.Name)
		}
		if c.MissingPercent > highMissingPercent {
			missing = append(missing, c.Name)
		}
		if c.Numeric != nil && rows > 0 && float64(c.Numeric.Outliers)/float64(rows)*100 > highOutlierPercent {
			outliers = append(outliers, c.Name)
		}
		if c.Categorical != nil && c.Kind == "text" && float64(c.Categorical.Distinct) > float64(rows)*highCardinalityRatio {
			cardinal = append(cardinal, c.Name)
		}
	}
	for _, p := range in.Summary.TopCorrelations {
		if math.Abs(p.Coefficient) > strongCorrelation {
			strong++
		}
	}

	if len(constant) > 0 {
		out = append(out, Recommendation{
			Action:        "Remove constant columns: " + names(constant),
			Justification: fmt.Sprintf("%d column(s) hold a single value and carry no information", len(constant)),
		})
	}
	if len(missing) > 0 {
		out = append(out, Recommendation{
			Action:        "Review sparse columns: " + names(missing),
			Justification: fmt.Sprintf("%d column(s) are more than %d%% missing", len(missing), highMissingPercent),
		})
	}
	if len(outliers) > 0 {
		out = append(out, Recommendation{
			Action:        "Inspect outliers in: " + names(outliers),
			Justification: fmt.Sprintf("%d column(s) have more than %d%% outliers", len(outliers), highOutlierPercent),
		})
	}
	if excluded := in.Report.ExcludeFromCharts(); len(excluded) > 0 {
		out = append(out, Recommendation{
			Action:        "Leave out of visualisations: " + names(excluded),
			Justification: fmt.Sprintf("%d column(s) are empty or quasi-empty", len(excluded)),
		})
	}
	if strong > 0 {
		out = append(out, Recommendation{
			Action:        "Check for redundant variables",
			Justification: fmt.Sprintf("%d pair(s) of columns correlate above %.1f", strong, strongCorrelation),
		})
	}
	if len(cardinal) > 0 {
		out = append(out, Recommendation{
			Action:        "Treat high-cardinality columns as identifiers: " + names(cardinal),
			Justification: "nearly every row has a distinct value",
		})
	}
	if len(out) == 0 {
		out = append(out, Recommendation{Action: "No action needed", Justification: "no major anomalies detected"})
	}
	return out
}

func conclusion(score float64) string {
	switch {
	case score >= goodScore:
		return fmt.Sprintf("Data quality is good (%.1f/100); the statistics can be used as is.", score)
	case score >= acceptableScore:
		return fmt.Sprintf("Data quality is acceptable (%.1f/100); review the listed anomalies before drawing conclusions.", score)
	default:
		return fmt.Sprintf("Data quality is poor (%.1f/100); clean the source before relying on these results.", score)
	}
}

func names(list []string) string {
	if len(list) > maxNamesInMessage {
		list = list[:maxNamesInMessage]
	}
	return strings.Join(list, ", ")
}
