package loader

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/okian/datalens/internal/domain/table"
)

var (
	parquetMagic = []byte("PAR1")
	arrowMagic   = []byte("ARROW1")
)

func readColumnar(data []byte) ([]rawColumn, error) {
	switch {
	case bytes.HasPrefix(data, parquetMagic):
		return readParquet(data)
	case bytes.HasPrefix(data, arrowMagic):
		return readArrowFile(data)
	}
	return nil, malformed(ColumnarBinary, -1, "neither parquet nor arrow file magic", nil)
}

func readParquet(data []byte) ([]rawColumn, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(ColumnarBinary, -1, "unreadable parquet", err)
	}
	defer func() { _ = pf.Close() }()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, malformed(ColumnarBinary, -1, "unreadable parquet schema", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, malformed(ColumnarBinary, -1, "unreadable parquet data", err)
	}
	defer tbl.Release()

	cols := make([]rawColumn, tbl.NumCols())
	for i := range cols {
		col := tbl.Column(i)
		cols[i].name = col.Name()
		for _, chunk := range col.Data().Chunks() {
			cells, err := arrowCells(chunk)
			if err != nil {
				return nil, &Error{Kind: ErrMalformedInput, Format: ColumnarBinary, Row: -1, Column: col.Name(), Err: err}
			}
			cols[i].cells = append(cols[i].cells, cells...)
		}
	}
	return cols, nil
}

func readArrowFile(data []byte) ([]rawColumn, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(ColumnarBinary, -1, "unreadable arrow file", err)
	}
	defer func() { _ = r.Close() }()

	schema := r.Schema()
	cols := make([]rawColumn, schema.NumFields())
	for i := range cols {
		cols[i].name = schema.Field(i).Name
	}
	for n := 0; n < r.NumRecords(); n++ {
		rec, err := r.Record(n)
		if err != nil {
			return nil, malformed(ColumnarBinary, -1, fmt.Sprintf("record batch %d", n), err)
		}
		for i := range cols {
			cells, err := arrowCells(rec.Column(i))
			if err != nil {
				return nil, &Error{Kind: ErrMalformedInput, Format: ColumnarBinary, Row: -1, Column: cols[i].name, Err: err}
			}
			cols[i].cells = append(cols[i].cells, cells...)
		}
	}
	return cols, nil
}

// arrowCells converts one array. Numeric, boolean and time types keep
// their kind; strings become text for inference; anything else is
// rendered with ValueStr.
func arrowCells(arr arrow.Array) ([]table.Cell, error) {
	n := arr.Len()
	out := make([]table.Cell, n)
	var conv func(i int) table.Cell

	switch a := arr.(type) {
	case *array.Int8:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Int16:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Int32:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Int64:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Uint8:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Uint16:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Uint32:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Uint64:
		conv = func(i int) table.Cell { return table.Numeric(float64(a.Value(i))) }
	case *array.Float32:
		conv = func(i int) table.Cell { return floatCell(float64(a.Value(i))) }
	case *array.Float64:
		conv = func(i int) table.Cell { return floatCell(a.Value(i)) }
	case *array.Boolean:
		conv = func(i int) table.Cell { return table.Boolean(a.Value(i)) }
	case *array.String:
		conv = func(i int) table.Cell { return textCell(a.Value(i)) }
	case *array.LargeString:
		conv = func(i int) table.Cell { return textCell(a.Value(i)) }
	case *array.Date32:
		conv = func(i int) table.Cell { return table.Temporal(a.Value(i).ToTime()) }
	case *array.Date64:
		conv = func(i int) table.Cell { return table.Temporal(a.Value(i).ToTime()) }
	case *array.Timestamp:
		tsType, ok := a.DataType().(*arrow.TimestampType)
		if !ok {
			return nil, fmt.Errorf("unexpected timestamp type %s", a.DataType())
		}
		toTime, err := tsType.GetToTimeFunc()
		if err != nil {
			return nil, err
		}
		conv = func(i int) table.Cell { return table.Temporal(toTime(a.Value(i))) }
	default:
		conv = func(i int) table.Cell { return table.Text(arr.ValueStr(i)) }
	}

	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			out[i] = table.Null()
			continue
		}
		out[i] = conv(i)
	}
	return out, nil
}

// floatCell maps NaN and infinities to null, matching how textual input
// treats them.
func floatCell(v float64) table.Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return table.Null()
	}
	return table.Numeric(v)
}
