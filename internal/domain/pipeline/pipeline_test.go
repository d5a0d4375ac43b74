package pipeline_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/datalens/internal/domain/cleaning"
	"github.com/okian/datalens/internal/domain/loader"
	"github.com/okian/datalens/internal/domain/narrative"
	"github.com/okian/datalens/internal/domain/pipeline"
)

const people = "name,age,city\nAlice,25,Paris\nBob,30,Lyon\nBob,30,Lyon"

func TestExecute(t *testing.T) {
	Convey("Given a pipeline with the rule-based narrator", t, func() {
		p := pipeline.New(pipeline.WithNarrator(narrative.NewRuleBased()))

		Convey("When the people example runs", func() {
			run, err := p.Execute(context.Background(), "run-1", []byte(people), loader.DelimitedText)
			So(err, ShouldBeNil)

			Convey("Then every stage ran in order", func() {
				var stages []pipeline.Stage
				for _, s := range run.Stages {
					stages = append(stages, s.Stage)
				}
				So(stages, ShouldResemble, []pipeline.Stage{
					pipeline.StageLoad, pipeline.StageAssess, pipeline.StageClean, pipeline.StageAnalyze, pipeline.StageNarrate,
				})
			})

			Convey("Then the cleaned summary matches the expected figures", func() {
				So(run.Cleaned.Rows(), ShouldEqual, 2)
				age, ok := run.Summary.Column("age")
				So(ok, ShouldBeTrue)
				So(age.Numeric.Mean, ShouldEqual, 27.5)
				So(age.Numeric.Median, ShouldEqual, 27.5)
				So(run.Score, ShouldBeLessThan, 100)
				So(run.Score, ShouldBeGreaterThanOrEqualTo, 80)
				So(run.Narrative, ShouldNotBeNil)
				So(run.Source.Rows(), ShouldEqual, 3)
			})
		})

		Convey("When the input is malformed", func() {
			run, err := p.Execute(context.Background(), "run-2", []byte("a,b\n1\n"), loader.DelimitedText)

			Convey("Then the load stage fails with the loader kind", func() {
				So(run, ShouldBeNil)
				var se *pipeline.StageError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Stage, ShouldEqual, pipeline.StageLoad)
				So(errors.Is(err, loader.ErrMalformedInput), ShouldBeTrue)
				So(pipeline.Kind(err), ShouldEqual, "malformed_input")
			})
		})

		Convey("When every column is empty", func() {
			_, err := p.Execute(context.Background(), "run-3", []byte("a,b\n,\nNA,\n"), loader.DelimitedText)

			Convey("Then the clean stage reports infeasibility", func() {
				var se *pipeline.StageError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Stage, ShouldEqual, pipeline.StageClean)
				So(errors.Is(err, cleaning.ErrCleaningInfeasible), ShouldBeTrue)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			run, err := p.Execute(ctx, "run-4", []byte(people), loader.DelimitedText)

			Convey("Then nothing runs and no partial result escapes", func() {
				So(run, ShouldBeNil)
				So(errors.Is(err, pipeline.ErrCancelled), ShouldBeTrue)
				So(pipeline.Kind(err), ShouldEqual, "cancelled")
			})
		})
	})

	Convey("Given a narrator that fails", t, func() {
		boom := errors.New("model offline")
		p := pipeline.New(pipeline.WithNarrator(narrative.GeneratorFunc(
			func(context.Context, narrative.Input) (narrative.Narrative, error) {
				return narrative.Narrative{}, boom
			},
		)))

		Convey("The run fails at the narrate stage", func() {
			_, err := p.Execute(context.Background(), "run-5", []byte(people), loader.DelimitedText)
			var se *pipeline.StageError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Stage, ShouldEqual, pipeline.StageNarrate)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(pipeline.Kind(err), ShouldEqual, "internal")
		})
	})

	Convey("Without a narrator the narrate stage is skipped", t, func() {
		run, err := pipeline.New().Execute(context.Background(), "run-6", []byte(people), loader.DelimitedText)
		So(err, ShouldBeNil)
		So(run.Narrative, ShouldBeNil)
		So(run.Stages, ShouldHaveLength, 4)
	})
}
