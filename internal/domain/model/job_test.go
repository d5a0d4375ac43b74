package model_test

import (
	"testing"
	"time"

	"github.com/okian/datalens/internal/domain/loader"
	model "github.com/okian/datalens/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestJob(t *testing.T) {
	convey.Convey("Given a Job struct", t, func() {
		convey.Convey("When creating a new job", func() {
			now := time.Now()
			job := model.Job{
				RunID:       "run-1",
				Digest:      "abc",
				Format:      loader.DelimitedText,
				Data:        []byte("a,b\n1,2\n"),
				SubmittedAt: now,
			}

			convey.Convey("Then it should carry the upload", func() {
				convey.So(job.RunID, convey.ShouldEqual, "run-1")
				convey.So(job.Format, convey.ShouldEqual, loader.DelimitedText)
				convey.So(job.Size(), convey.ShouldEqual, 8)
				convey.So(job.SubmittedAt, convey.ShouldEqual, now)
			})
		})

		convey.Convey("When creating a job with zero values", func() {
			job := model.Job{}

			convey.Convey("Then it should have an empty payload", func() {
				convey.So(job.Size(), convey.ShouldEqual, 0)
				convey.So(job.RunID, convey.ShouldBeEmpty)
			})
		})
	})
}
