package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/datalens/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStatus(t *testing.T) {
	Convey("Given the run states", t, func() {
		Convey("Then only succeeded and failed are terminal", func() {
			So(types.StatusPending.Terminal(), ShouldBeFalse)
			So(types.StatusRunning.Terminal(), ShouldBeFalse)
			So(types.StatusSucceeded.Terminal(), ShouldBeTrue)
			So(types.StatusFailed.Terminal(), ShouldBeTrue)
		})
	})
}

func TestRunInfoJSON(t *testing.T) {
	Convey("Given a pending run", t, func() {
		info := types.RunInfo{ID: "run-1", Status: types.StatusPending, Format: "delimited-text"}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(info)
			So(err, ShouldBeNil)

			var m map[string]any
			So(json.Unmarshal(raw, &m), ShouldBeNil)

			Convey("Then optional fields are omitted", func() {
				So(m["run_id"], ShouldEqual, "run-1")
				So(m["status"], ShouldEqual, "pending")
				So(m, ShouldNotContainKey, "score")
				So(m, ShouldNotContainKey, "error")
				So(m, ShouldNotContainKey, "finished_at")
			})
		})
	})
}
