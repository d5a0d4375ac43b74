package loader

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/okian/datalens/internal/domain/table"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"delimited-text", DelimitedText, false},
		{"CSV", DelimitedText, false},
		{"xlsx", Spreadsheet, false},
		{"structured-record", StructuredRecord, false},
		{"parquet", ColumnarBinary, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	f, err := FormatFromFilename("data/Sales.JSONL")
	require.NoError(t, err)
	assert.Equal(t, StructuredRecord, f)
	_, err = FormatFromFilename("README")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		kind   error
	}{
		{"unknown format", "a\n1", Format("pdf"), ErrUnsupportedFormat},
		{"empty bytes", "", DelimitedText, ErrEmptyInput},
		{"header only", "a,b\n", DelimitedText, ErrEmptyInput},
		{"ragged csv", "a,b\n1,2\n3\n", DelimitedText, ErrMalformedInput},
		{"invalid json", `[{"a":1}`, StructuredRecord, ErrMalformedInput},
		{"json scalar", `42`, StructuredRecord, ErrMalformedInput},
		{"empty json array", `[]`, StructuredRecord, ErrEmptyInput},
		{"garbage workbook", "not a zip", Spreadsheet, ErrMalformedInput},
		{"garbage columnar", "not parquet", ColumnarBinary, ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			var le *Error
			assert.True(t, errors.As(err, &le))
		})
	}
}

func TestLoadRaggedRowIndex(t *testing.T) {
	_, err := Load([]byte("a,b\n1,2\n3,4\n5\n"), DelimitedText)
	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Row)
}

func TestLoadRaggedRowIndexAfterMultiLineField(t *testing.T) {
	_, err := Load([]byte("a,b\n1,\"first\nsecond\nthird\"\n3,4\n5\n"), DelimitedText)
	var le *Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Row)
	assert.Contains(t, le.Detail, "line 6")
}

func TestLoadDelimited(t *testing.T) {
	tbl, err := Load([]byte("name,age,city\nAlice,30,Paris\nBob,25,NA\n"), DelimitedText)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "city"}, tbl.Names())
	assert.Equal(t, 2, tbl.Rows())

	age, _ := tbl.Column("age")
	assert.Equal(t, table.KindNumeric, age.Kind)
	assert.Equal(t, []float64{30, 25}, age.Floats())

	city, _ := tbl.Column("city")
	assert.Equal(t, table.KindText, city.Kind)
	assert.True(t, city.Cells[1].IsNull())
}

func TestLoadDelimitedDetection(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a;b\n1;x\n2;y\n")...)
	tbl, err := Load(data, DelimitedText)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Names())

	tbl, err = Load([]byte("a|b\n1|2\n"), DelimitedText, WithDelimiter('|'))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Width())

	// "café" in Windows-1252.
	tbl, err = Load([]byte("name\ncaf\xe9\n"), DelimitedText)
	require.NoError(t, err)
	s, _ := tbl.Cell(0, 0).Str()
	assert.Equal(t, "café", s)
}

func TestInference(t *testing.T) {
	csv := "n,mixed,when,flag,inf\n1,1,2024-01-02,yes,1\n2.5,x,2024/01/03,No,Inf\n,3,,TRUE,2\n"
	tbl, err := Load([]byte(csv), DelimitedText)
	require.NoError(t, err)

	kinds := map[string]table.Kind{
		"n":     table.KindNumeric,
		"mixed": table.KindText,
		"when":  table.KindTemporal,
		"flag":  table.KindBoolean,
		"inf":   table.KindText,
	}
	for name, want := range kinds {
		col, ok := tbl.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, want, col.Kind, name)
	}

	when, _ := tbl.Column("when")
	ts, ok := when.Cells[0].Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), ts)
}

func TestNormalizeHeader(t *testing.T) {
	got := normalizeHeader([]string{" a ", "", "a", "a", "a.1", "b"})
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.2", "a.3", "a.1", "b"}, got)
	assert.Equal(t, []string{"x", "x.1", "x.2"}, normalizeHeader([]string{"x", "x", "x"}))
}

func TestLoadRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"records", `[{"b":1,"a":"x"},{"a":"y","c":true}]`},
		{"ndjson", "{\"b\":1,\"a\":\"x\"}\n{\"a\":\"y\",\"c\":true}\n"},
		{"columns as arrays", `{"b":[1,null],"a":["x","y"],"c":[null,true]}`},
		{"columns as objects", `{"b":{"0":1},"a":{"0":"x","1":"y"},"c":{"1":true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Load([]byte(tt.data), StructuredRecord)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a", "c"}, tbl.Names())
			assert.Equal(t, 2, tbl.Rows())

			b, _ := tbl.Column("b")
			assert.Equal(t, table.KindNumeric, b.Kind)
			assert.True(t, b.Cells[1].IsNull())

			c, _ := tbl.Column("c")
			assert.Equal(t, table.KindBoolean, c.Kind)
			assert.True(t, c.Cells[0].IsNull())
		})
	}

	tbl, err := Load([]byte(`[{"tags":["a","b"],"n":"7"}]`), StructuredRecord)
	require.NoError(t, err)
	tags, _ := tbl.Column("tags")
	s, _ := tags.Cells[0].Str()
	assert.Equal(t, `["a","b"]`, s)
	n, _ := tbl.Column("n")
	assert.Equal(t, table.KindNumeric, n.Kind)
}

func TestLoadSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"name", "age"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Alice", 30}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Bob"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := Load(buf.Bytes(), Spreadsheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, tbl.Names())
	age, _ := tbl.Column("age")
	assert.Equal(t, table.KindNumeric, age.Kind)
	assert.True(t, age.Cells[1].IsNull())

	_, err = Load(buf.Bytes(), Spreadsheet, WithSheet("Missing"))
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestLoadSpreadsheetFormattedCells(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"price", "stamp", "created", "ok"}))
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{1234.5, 45321.5, created, true}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{2500, 45322.25, created.AddDate(0, 0, 1), false}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{99.25, nil, created.AddDate(0, 0, 2), true}))

	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A2", "A4", thousands))
	layout := "yyyy-mm-dd h:mm"
	stamp, err := f.NewStyle(&excelize.Style{CustomNumFmt: &layout})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B4", stamp))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	tbl, err := Load(buf.Bytes(), Spreadsheet)
	require.NoError(t, err)

	price, _ := tbl.Column("price")
	assert.Equal(t, table.KindNumeric, price.Kind)
	assert.Equal(t, []float64{1234.5, 2500, 99.25}, price.Floats())

	stamps, _ := tbl.Column("stamp")
	assert.Equal(t, table.KindTemporal, stamps.Kind)
	ts, ok := stamps.Cells[0].Time()
	require.True(t, ok)
	assert.WithinDuration(t, time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC), ts, time.Second)
	ts, _ = stamps.Cells[1].Time()
	assert.WithinDuration(t, time.Date(2024, 1, 31, 6, 0, 0, 0, time.UTC), ts, time.Second)
	assert.True(t, stamps.Cells[2].IsNull())

	dates, _ := tbl.Column("created")
	assert.Equal(t, table.KindTemporal, dates.Kind)
	ts, _ = dates.Cells[2].Time()
	assert.True(t, ts.Equal(created.AddDate(0, 0, 2)))

	flags, _ := tbl.Column("ok")
	assert.Equal(t, table.KindBoolean, flags.Kind)
}

func TestIsDateFormatCode(t *testing.T) {
	for code, want := range map[string]bool{
		"yyyy-mm-dd h:mm":      true,
		"d-mmm-yy":             true,
		"[h]:mm:ss":            true,
		"#,##0.00":             false,
		`0.00" days"`:          false,
		"[Red]#,##0;[Blue]0.0": false,
		"0.00E+00":             false,
		`\d0`:                  false,
	} {
		assert.Equal(t, want, isDateFormatCode(code), code)
	}
}

func arrowFixture(t *testing.T) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "label", Type: arrow.BinaryTypes.String},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{0.5, 0, 1.5}, []bool{true, false, true})
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"a", "b", "N/A"}, nil)
	b.Field(3).(*array.BooleanBuilder).AppendValues([]bool{true, false, true}, nil)
	return b.NewRecord()
}

func assertArrowFixture(t *testing.T, tbl *table.Table) {
	t.Helper()
	assert.Equal(t, []string{"id", "score", "label", "ok"}, tbl.Names())
	assert.Equal(t, 3, tbl.Rows())
	score, _ := tbl.Column("score")
	assert.Equal(t, table.KindNumeric, score.Kind)
	assert.True(t, score.Cells[1].IsNull())
	label, _ := tbl.Column("label")
	assert.True(t, label.Cells[2].IsNull())
	ok, _ := tbl.Column("ok")
	assert.Equal(t, table.KindBoolean, ok.Kind)
}

func TestLoadParquet(t *testing.T) {
	rec := arrowFixture(t)
	defer rec.Release()
	at := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer at.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(at, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))

	tbl, err := Load(buf.Bytes(), ColumnarBinary)
	require.NoError(t, err)
	assertArrowFixture(t, tbl)
}

func TestLoadArrowIPC(t *testing.T) {
	rec := arrowFixture(t)
	defer rec.Release()

	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(rec.Schema()))
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	tbl, err := Load(buf.Bytes(), ColumnarBinary)
	require.NoError(t, err)
	assertArrowFixture(t, tbl)
}
