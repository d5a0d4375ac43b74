package uploader

import (
	"bytes"
	"encoding/csv"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Defect rates used by GenerateCSV, as fractions of rows.
const (
	missingRate      = 0.08
	duplicateRate    = 0.05
	outlierRate      = 0.03
	inconsistentRate = 0.04
)

var regions = []string{"north", "south", "east", "west"}

// GenerateCSV returns a synthetic delimited-text table of n rows seeded by
// seed. It carries every defect kind the assessor reports: missing values,
// duplicate rows, numeric outliers, mistyped cells and an all-empty column.
func GenerateCSV(n int, seed uint64) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "region", "amount", "quantity", "active", "ordered_at", "notes"})

	var prev []string
	for i := range n {
		if prev != nil && rng.Float64() < duplicateRate {
			_ = w.Write(prev)
			continue
		}
		// Name-based so a seed always yields the same ids.
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.FormatUint(seed, 10)+"/"+strconv.Itoa(i))).String()
		amount := strconv.FormatFloat(50+rng.NormFloat64()*10, 'f', 2, 64)
		if rng.Float64() < outlierRate {
			amount = strconv.FormatFloat(5000+rng.Float64()*1000, 'f', 2, 64)
		}
		quantity := strconv.Itoa(1 + rng.IntN(20))
		if rng.Float64() < inconsistentRate {
			quantity = "several"
		}
		row := []string{
			id,
			regions[rng.IntN(len(regions))],
			amount,
			quantity,
			strconv.FormatBool(rng.IntN(2) == 0),
			base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
			"",
		}
		for c := 1; c < len(row)-1; c++ {
			if rng.Float64() < missingRate {
				row[c] = ""
			}
		}
		_ = w.Write(row)
		prev = row
	}
	w.Flush()
	return buf.Bytes()
}
