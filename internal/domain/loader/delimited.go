package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// delimiterCandidates in order of preference when counts tie.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

func readDelimited(data []byte, o options) ([]rawColumn, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, malformed(DelimitedText, -1, "undecodable text", err)
		}
		data = decoded
	}

	delim := o.delimiter
	if delim == 0 {
		delim = detectDelimiter(data)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, empty(DelimitedText, "no header")
	}
	if err != nil {
		return nil, csvError(err, -1)
	}

	cols := make([]rawColumn, len(header))
	for i, name := range header {
		cols[i].name = name
	}
	for row := 0; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err, row)
		}
		for i, field := range rec {
			cols[i].cells = append(cols[i].cells, textCell(field))
		}
	}
	return cols, nil
}

// csvError converts a reader failure at data row row, -1 for the header.
// Quoted fields may span lines, so the row is counted in records rather
// than taken from the parser's line number.
func csvError(err error, row int) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return malformed(DelimitedText, row, fmt.Sprintf("line %d", pe.StartLine), pe.Err)
	}
	return malformed(DelimitedText, row, "", err)
}

// detectDelimiter picks the candidate occurring most often in the first
// line outside quotes. Comma wins when nothing else is present.
func detectDelimiter(data []byte) rune {
	counts := make(map[rune]int, len(delimiterCandidates))
	inQuotes := false
	for _, r := range string(firstLine(data)) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestCount := ',', 0
	for _, c := range delimiterCandidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

func firstLine(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i]
	}
	return data
}
