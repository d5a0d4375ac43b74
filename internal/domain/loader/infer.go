package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/datalens/internal/domain/table"
)

var nullTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
}

// temporalLayouts are tried in order for every textual cell.
var temporalLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04",
	"01/02/2006",
	"02-Jan-2006",
}

// textCell turns a raw textual field into a Text cell or Null when it is
// one of the null tokens.
func textCell(s string) table.Cell {
	if _, ok := nullTokens[strings.TrimSpace(s)]; ok {
		return table.Null()
	}
	return table.Text(s)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseTemporal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range temporalLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseBoolean(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

// IsNumericText reports whether s parses as a finite number. The quality
// assessor uses it to spot numbers stored in text columns.
func IsNumericText(s string) bool {
	_, ok := parseNumber(s)
	return ok
}

// inferColumn assigns the column kind. Natively typed cells keep their
// kind; all-text columns are tried as Numeric, Temporal, Boolean in that
// order and converted only when every non-null cell parses. Anything
// mixed becomes Text.
func inferColumn(name string, cells []table.Cell) table.Column {
	var (
		textCount int
		native    = table.KindNull
		mixed     bool
	)
	for _, c := range cells {
		switch k := c.Kind(); k {
		case table.KindNull:
		case table.KindText:
			textCount++
		default:
			if native != table.KindNull && native != k {
				mixed = true
			}
			native = k
		}
	}

	switch {
	case textCount == 0 && native == table.KindNull:
		return table.Column{Name: name, Kind: table.KindText, Cells: cells}
	case textCount == 0 && !mixed:
		return table.Column{Name: name, Kind: native, Cells: cells}
	case textCount > 0 && native == table.KindNull:
		return inferText(name, cells)
	}
	return table.Column{Name: name, Kind: table.KindText, Cells: asText(cells)}
}

func inferText(name string, cells []table.Cell) table.Column {
	if out, ok := convertAll(cells, func(s string) (table.Cell, bool) {
		v, ok := parseNumber(s)
		return table.Numeric(v), ok
	}); ok {
		return table.Column{Name: name, Kind: table.KindNumeric, Cells: out}
	}
	if out, ok := convertAll(cells, func(s string) (table.Cell, bool) {
		ts, ok := parseTemporal(s)
		return table.Temporal(ts), ok
	}); ok {
		return table.Column{Name: name, Kind: table.KindTemporal, Cells: out}
	}
	if out, ok := convertAll(cells, func(s string) (table.Cell, bool) {
		b, ok := parseBoolean(s)
		return table.Boolean(b), ok
	}); ok {
		return table.Column{Name: name, Kind: table.KindBoolean, Cells: out}
	}
	return table.Column{Name: name, Kind: table.KindText, Cells: cells}
}

func convertAll(cells []table.Cell, parse func(string) (table.Cell, bool)) ([]table.Cell, bool) {
	out := make([]table.Cell, len(cells))
	for i, c := range cells {
		s, ok := c.Str()
		if !ok {
			out[i] = c
			continue
		}
		v, ok := parse(s)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func asText(cells []table.Cell) []table.Cell {
	out := make([]table.Cell, len(cells))
	for i, c := range cells {
		if c.IsNull() || c.Kind() == table.KindText {
			out[i] = c
			continue
		}
		out[i] = table.Text(c.String())
	}
	return out
}

// normalizeHeader trims names, fills blanks with "Unnamed: <i>" and
// suffixes repeats with ".1", ".2", ...
func normalizeHeader(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]struct{}, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			n = "Unnamed: " + strconv.Itoa(i)
		}
		out[i] = n
		used[n] = struct{}{}
	}
	first := make(map[string]struct{}, len(out))
	suffix := make(map[string]int)
	for i, n := range out {
		if _, repeat := first[n]; !repeat {
			first[n] = struct{}{}
			continue
		}
		for k := suffix[n] + 1; ; k++ {
			candidate := n + "." + strconv.Itoa(k)
			if _, taken := used[candidate]; !taken {
				out[i] = candidate
				used[candidate] = struct{}{}
				suffix[n] = k
				break
			}
		}
	}
	return out
}
