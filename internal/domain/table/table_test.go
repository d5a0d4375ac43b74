package table

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func fixture() *Table {
	return MustNew(
		Column{Name: "name", Kind: KindText, Cells: []Cell{Text("Alice"), Text("Bob"), Null()}},
		Column{Name: "age", Kind: KindNumeric, Cells: []Cell{Numeric(30), Numeric(25), Numeric(41)}},
	)
}

func TestNew(t *testing.T) {
	Convey("Given column definitions", t, func() {
		Convey("When row counts differ", func() {
			_, err := New(
				Column{Name: "a", Cells: []Cell{Null()}},
				Column{Name: "b", Cells: []Cell{Null(), Null()}},
			)
			Convey("Then ErrRaggedColumns is returned", func() {
				So(errors.Is(err, ErrRaggedColumns), ShouldBeTrue)
			})
		})

		Convey("When a name is blank", func() {
			_, err := New(Column{Name: "  "})
			So(errors.Is(err, ErrEmptyColumnName), ShouldBeTrue)
		})

		Convey("When names repeat", func() {
			_, err := New(Column{Name: "a"}, Column{Name: "a"})
			So(errors.Is(err, ErrDuplicateColumn), ShouldBeTrue)
		})

		Convey("When the input is valid", func() {
			tbl := fixture()
			So(tbl.Rows(), ShouldEqual, 3)
			So(tbl.Width(), ShouldEqual, 2)
			So(tbl.Names(), ShouldResemble, []string{"name", "age"})
			col, ok := tbl.Column("age")
			So(ok, ShouldBeTrue)
			So(col.Floats(), ShouldResemble, []float64{30, 25, 41})
			name, _ := tbl.Column("name")
			So(name.Nulls(), ShouldEqual, 1)
		})
	})
}

func TestCell(t *testing.T) {
	Convey("Cells compare by variant and value", t, func() {
		So(Null().Equal(Null()), ShouldBeTrue)
		So(Numeric(1).Equal(Text("1")), ShouldBeFalse)
		So(Numeric(0).Key(), ShouldEqual, Numeric(-0.0).Key())
		ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
		So(Temporal(ts).Equal(Temporal(ts.UTC())), ShouldBeTrue)
		So(Boolean(true).String(), ShouldEqual, "true")
		So(Null().String(), ShouldEqual, "")
	})

	Convey("Temporal keys stay distinct far from the epoch", t, func() {
		base := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
		far := base
		for i := 0; i < 4; i++ {
			far = far.Add(1 << 62)
		}
		So(Temporal(base).Key(), ShouldNotEqual, Temporal(far).Key())
		So(Temporal(time.Date(1500, 6, 1, 0, 0, 0, 0, time.UTC)).Key(),
			ShouldNotEqual, Temporal(time.Date(2500, 6, 1, 0, 0, 0, 0, time.UTC)).Key())

		ts := time.Date(2600, 3, 4, 5, 6, 7, 8, time.FixedZone("x", 7200))
		So(Temporal(ts).Key(), ShouldEqual, Temporal(ts.UTC()).Key())
	})

	Convey("Cells marshal to JSON scalars", t, func() {
		b, err := Text("x").MarshalJSON()
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `"x"`)
		b, _ = Null().MarshalJSON()
		So(string(b), ShouldEqual, "null")
		b, _ = Numeric(2.5).MarshalJSON()
		So(string(b), ShouldEqual, "2.5")
	})
}

func TestMutation(t *testing.T) {
	Convey("Given a table and its clone", t, func() {
		orig := fixture()
		tbl := orig.Clone()
		So(tbl.Equal(orig), ShouldBeTrue)

		Convey("Set does not leak into the original", func() {
			So(tbl.Set(2, 0, Text("Carol")), ShouldBeNil)
			So(tbl.Equal(orig), ShouldBeFalse)
			So(orig.Cell(2, 0).IsNull(), ShouldBeTrue)
			So(errors.Is(tbl.Set(9, 0, Null()), ErrOutOfRange), ShouldBeTrue)
		})

		Convey("DropColumn and InsertColumn round-trip", func() {
			col, pos, err := tbl.DropColumn("name")
			So(err, ShouldBeNil)
			So(pos, ShouldEqual, 0)
			So(tbl.Names(), ShouldResemble, []string{"age"})
			So(tbl.InsertColumn(pos, col), ShouldBeNil)
			So(tbl.Equal(orig), ShouldBeTrue)

			_, _, err = tbl.DropColumn("missing")
			So(errors.Is(err, ErrColumnNotFound), ShouldBeTrue)
		})

		Convey("DeleteRows and InsertRow round-trip", func() {
			row := tbl.Row(1)
			So(tbl.DeleteRows([]int{1, 1}), ShouldBeNil)
			So(tbl.Rows(), ShouldEqual, 2)
			So(tbl.InsertRow(1, row), ShouldBeNil)
			So(tbl.Equal(orig), ShouldBeTrue)
			So(errors.Is(tbl.InsertRow(0, []Cell{Null()}), ErrRaggedColumns), ShouldBeTrue)
		})

		Convey("RowKey matches equal rows only", func() {
			So(tbl.InsertRow(3, tbl.Row(0)), ShouldBeNil)
			So(tbl.RowKey(0), ShouldEqual, tbl.RowKey(3))
			So(tbl.RowKey(0), ShouldNotEqual, tbl.RowKey(1))
		})
	})
}
