package loader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/datalens/internal/domain/table"
)

func readSpreadsheet(data []byte, o options) ([]rawColumn, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(Spreadsheet, -1, "unreadable workbook", err)
	}
	defer func() { _ = f.Close() }()

	sheet := o.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, empty(Spreadsheet, "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	// Raw values keep stored numbers and date serials free of display
	// formatting; sheetCells restores the cell types from the workbook.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, malformed(Spreadsheet, -1, fmt.Sprintf("sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return nil, empty(Spreadsheet, fmt.Sprintf("sheet %q is empty", sheet))
	}
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, malformed(Spreadsheet, -1, "workbook properties", err)
	}
	sc := &sheetCells{
		f:          f,
		sheet:      sheet,
		date1904:   props.Date1904 != nil && *props.Date1904,
		dateStyles: make(map[int]bool),
	}

	header := rows[0]
	cols := make([]rawColumn, len(header))
	for i, name := range header {
		cols[i].name = name
	}
	for r, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, malformed(Spreadsheet, r, fmt.Sprintf("%d cells, header has %d", len(row), len(header)), nil)
		}
		for i := range cols {
			c := table.Null()
			if i < len(row) {
				// rows[1:] starts at sheet row 2.
				if c, err = sc.cell(i+1, r+2, row[i]); err != nil {
					return nil, malformed(Spreadsheet, r, fmt.Sprintf("column %q", cols[i].name), err)
				}
			}
			cols[i].cells = append(cols[i].cells, c)
		}
	}
	return cols, nil
}

// sheetCells converts raw sheet values into cells using the stored cell
// type and number format.
type sheetCells struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

// cell converts the raw value at the 1-based coordinates. Booleans and
// date-formatted serials become native cells; everything else stays text
// for inference.
func (s *sheetCells) cell(col, row int, raw string) (table.Cell, error) {
	if strings.TrimSpace(raw) == "" {
		return table.Null(), nil
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return table.Cell{}, err
	}
	typ, err := s.f.GetCellType(s.sheet, name)
	if err != nil {
		return table.Cell{}, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return table.Boolean(raw == "1"), nil
	case excelize.CellTypeDate:
		if ts, ok := parseTemporal(raw); ok {
			return table.Temporal(ts), nil
		}
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			break
		}
		dated, err := s.dateStyled(name)
		if err != nil {
			return table.Cell{}, err
		}
		if !dated {
			break
		}
		if ts, err := excelize.ExcelDateToTime(serial, s.date1904); err == nil {
			return table.Temporal(ts), nil
		}
	}
	return textCell(raw), nil
}

func (s *sheetCells) dateStyled(cell string) (bool, error) {
	id, err := s.f.GetCellStyle(s.sheet, cell)
	if err != nil {
		return false, err
	}
	if dated, ok := s.dateStyles[id]; ok {
		return dated, nil
	}
	style, err := s.f.GetStyle(id)
	if err != nil {
		return false, err
	}
	dated := isDateNumFmt(style.NumFmt)
	if style.CustomNumFmt != nil {
		dated = isDateFormatCode(*style.CustomNumFmt)
	}
	s.dateStyles[id] = dated
	return dated, nil
}

// isDateNumFmt reports whether a built-in number format id renders a date
// or time, including the East Asian locale date ids.
func isDateNumFmt(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 27 && id <= 36) || (id >= 45 && id <= 47) || (id >= 50 && id <= 58)
}

// isDateFormatCode reports whether a custom format code uses date or time
// tokens outside quoted literals, escapes and bracketed sections.
func isDateFormatCode(code string) bool {
	var quoted, bracket, escaped bool
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case quoted:
			quoted = r != '"'
		case bracket:
			bracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = true
		case r == '[':
			bracket = true
		case strings.ContainsRune("ymdhs", r):
			return true
		}
	}
	return false
}
