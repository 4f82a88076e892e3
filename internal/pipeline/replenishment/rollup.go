package replenishment

import (
	"cmp"
	"slices"
	"strings"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
)

// ProductOrder selects how SummarizeByProduct sorts its output.
type ProductOrder int

const (
	// OrderByProduct sorts by product key.
	OrderByProduct ProductOrder = iota
	// OrderByQuantityDesc sorts by TotalToPurchase, largest first.
	OrderByQuantityDesc
)

// byProductThenLocation returns a copy of detail in (product, location) key
// order so reductions do not depend on the caller's ordering.
func byProductThenLocation(detail []domain.ReplenishmentRecord) []domain.ReplenishmentRecord {
	sorted := slices.Clone(detail)
	slices.SortFunc(sorted, func(a, b domain.ReplenishmentRecord) int {
		return comparePairs(a.ProductKey, a.LocationKey, b.ProductKey, b.LocationKey)
	})
	return sorted
}

// displayName keeps the lexicographically smallest spelling seen for a key.
func displayName(current, candidate string) string {
	if current == "" || candidate < current {
		return candidate
	}
	return current
}

// SummarizeByProduct sums PurchaseToMax per product across locations.
func SummarizeByProduct(detail []domain.ReplenishmentRecord, order ProductOrder) []domain.ProductSummary {
	var out []domain.ProductSummary
	index := make(map[string]int)
	for _, r := range byProductThenLocation(detail) {
		i, ok := index[r.ProductKey]
		if !ok {
			i = len(out)
			index[r.ProductKey] = i
			out = append(out, domain.ProductSummary{ProductKey: r.ProductKey})
		}
		out[i].Product = displayName(out[i].Product, r.Product)
		out[i].TotalToPurchase += r.PurchaseToMax
	}

	if order == OrderByQuantityDesc {
		slices.SortStableFunc(out, func(a, b domain.ProductSummary) int {
			if c := cmp.Compare(b.TotalToPurchase, a.TotalToPurchase); c != 0 {
				return c
			}
			return cmp.Compare(a.ProductKey, b.ProductKey)
		})
	}
	return out
}

// Actionable keeps products with something to buy.
func Actionable(summaries []domain.ProductSummary) []domain.ProductSummary {
	var out []domain.ProductSummary
	for _, s := range summaries {
		if s.TotalToPurchase > 0 {
			out = append(out, s)
		}
	}
	return out
}

// LowStock aggregates BelowMin records per product, deficit largest first.
func LowStock(detail []domain.ReplenishmentRecord) []domain.LowStockRow {
	type acc struct {
		key string
		row domain.LowStockRow
	}
	var rows []acc
	index := make(map[string]int)
	for _, r := range byProductThenLocation(detail) {
		if r.Status != domain.StatusBelowMin {
			continue
		}
		i, ok := index[r.ProductKey]
		if !ok {
			i = len(rows)
			index[r.ProductKey] = i
			rows = append(rows, acc{key: r.ProductKey})
		}
		row := &rows[i].row
		row.Product = displayName(row.Product, r.Product)
		row.Locations++
		row.Stock += r.Stock
		row.Min += r.Min
		row.Deficit += r.Min - r.Stock
	}

	slices.SortStableFunc(rows, func(a, b acc) int {
		if c := cmp.Compare(b.row.Deficit, a.row.Deficit); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	out := make([]domain.LowStockRow, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.row)
	}
	return out
}

// SummarizeByLocation rolls the detail table up per location.
func SummarizeByLocation(detail []domain.ReplenishmentRecord) []domain.LocationSummary {
	type acc struct {
		key string
		row domain.LocationSummary
	}
	sorted := slices.Clone(detail)
	slices.SortFunc(sorted, func(a, b domain.ReplenishmentRecord) int {
		return comparePairs(a.LocationKey, a.ProductKey, b.LocationKey, b.ProductKey)
	})

	var rows []acc
	index := make(map[string]int)
	for _, r := range sorted {
		i, ok := index[r.LocationKey]
		if !ok {
			i = len(rows)
			index[r.LocationKey] = i
			rows = append(rows, acc{key: r.LocationKey})
		}
		row := &rows[i].row
		row.Location = displayName(row.Location, r.Location)
		row.Products++
		row.TotalToPurchase += r.PurchaseToMax
		switch r.Status {
		case domain.StatusBelowMin:
			row.BelowMin++
		case domain.StatusAboveMax:
			row.AboveMax++
		}
	}

	out := make([]domain.LocationSummary, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.row)
	}
	return out
}

// StockVsMin sums stock and minimum per product, optionally for a single
// location, and returns the topN lowest-stock products (all when topN <= 0).
func StockVsMin(detail []domain.ReplenishmentRecord, location string, topN int) []domain.StockVsMinRow {
	var locationKey string
	if location != "" {
		locationKey = matchLocation(detail, location)
		if locationKey == "" {
			return nil
		}
	}

	type acc struct {
		key string
		row domain.StockVsMinRow
	}
	var rows []acc
	index := make(map[string]int)
	for _, r := range byProductThenLocation(detail) {
		if locationKey != "" && r.LocationKey != locationKey {
			continue
		}
		i, ok := index[r.ProductKey]
		if !ok {
			i = len(rows)
			index[r.ProductKey] = i
			rows = append(rows, acc{key: r.ProductKey})
		}
		row := &rows[i].row
		row.Product = displayName(row.Product, r.Product)
		row.Stock += r.Stock
		row.Min += r.Min
	}

	slices.SortStableFunc(rows, func(a, b acc) int {
		if c := cmp.Compare(a.row.Stock, b.row.Stock); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}

	out := make([]domain.StockVsMinRow, 0, len(rows))
	for _, a := range rows {
		a.row.BelowMin = a.row.Stock < a.row.Min
		out = append(out, a.row)
	}
	return out
}

// matchLocation resolves a location filter to a detail key. A display name
// taken from a report matches its own location exactly; anything else is
// normalized like input data.
func matchLocation(detail []domain.ReplenishmentRecord, location string) string {
	display := strings.ToUpper(strings.Join(strings.Fields(location), " "))
	for _, r := range detail {
		if r.LocationKey == display {
			return display
		}
	}
	key, _ := normalize.Key(location)
	return key
}
