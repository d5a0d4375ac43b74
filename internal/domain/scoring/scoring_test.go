package scoring_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	scoring "github.com/okian/datalens/internal/domain/scoring"
)

func TestScore(t *testing.T) {
	Convey("Given defect counters", t, func() {
		Convey("A clean table scores 100", func() {
			c := scoring.Counters{Rows: 10, Columns: 3, TotalCells: 30}
			So(scoring.Score(c), ShouldEqual, 100)
		})

		Convey("Each kind is capped by its weight", func() {
			c := scoring.Counters{
				Rows: 4, Columns: 2, TotalCells: 8,
				NullCells: 8, EmptyColumns: 2, DuplicateRows: 4,
				OutlierRows: 4, InconsistentColumns: 2,
			}
			p := scoring.NewScorer().Penalties(c)
			So(p.EmptyColumn, ShouldEqual, 15)
			So(p.DuplicateRow, ShouldEqual, 20)
			So(p.MissingValue, ShouldEqual, 25)
			So(p.Outlier, ShouldEqual, 20)
			So(p.TypeInconsistency, ShouldEqual, 20)
			So(scoring.Score(c), ShouldEqual, 0)
		})

		Convey("Missing values deduct proportionally", func() {
			c := scoring.Counters{Rows: 2, Columns: 3, TotalCells: 6, NullCells: 1}
			So(scoring.Score(c), ShouldAlmostEqual, 100-25.0/6, 1e-9)
		})

		Convey("More nulls never raise the score", func() {
			prev := 101.0
			for nulls := 0; nulls <= 12; nulls++ {
				s := scoring.Score(scoring.Counters{Rows: 4, Columns: 3, TotalCells: 12, NullCells: nulls})
				So(s, ShouldBeLessThanOrEqualTo, prev)
				prev = s
			}
		})

		Convey("Empty shapes do not divide by zero", func() {
			So(scoring.Score(scoring.Counters{}), ShouldEqual, 100)
		})

		Convey("Custom weights are honored", func() {
			s := scoring.NewScorer(scoring.WithWeights(scoring.Weights{MissingValue: 50}))
			c := scoring.Counters{Rows: 1, Columns: 2, TotalCells: 2, NullCells: 1}
			So(s.Score(c), ShouldEqual, 75)
		})
	})
}
