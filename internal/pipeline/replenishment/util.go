package replenishment

import (
	"math"
	"strconv"

	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
)

// ParseQuantity coerces a cell to a non-negative quantity. Blank, non-numeric,
// NaN, infinite and negative values all become 0. Separators are read by
// normalize.Number.
func ParseQuantity(s string) float64 {
	v := normalize.Number(s)
	if v == "" {
		return 0
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// roundFloat rounds v to the given number of decimal places.
func roundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// formatQuantity renders a quantity for CSV output without exponent notation.
func formatQuantity(v float64) string {
	return strconv.FormatFloat(roundFloat(v, 4), 'f', -1, 64)
}
