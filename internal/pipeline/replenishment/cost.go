package replenishment

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
)

// UnassignedSupplier is reported for products missing from the cost lookup.
const UnassignedSupplier = "UNASSIGNED"

// CostLookup resolves a normalized product key to its supplier and unit cost.
type CostLookup interface {
	LookupKey(productKey string) (domain.SupplierCostEntry, bool)
}

// CostTable is an in-memory CostLookup keyed by normalized product.
type CostTable struct {
	entries map[string]domain.SupplierCostEntry
}

// NewCostTable indexes entries by product key. A later entry for the same
// product replaces an earlier one; entries with a blank product are skipped.
func NewCostTable(entries []domain.SupplierCostEntry) *CostTable {
	t := &CostTable{entries: make(map[string]domain.SupplierCostEntry, len(entries))}
	for _, e := range entries {
		key, ok := normalize.Key(e.Product)
		if !ok {
			continue
		}
		t.entries[key] = e
	}
	return t
}

// Lookup normalizes a raw product name and looks it up.
func (t *CostTable) Lookup(product string) (domain.SupplierCostEntry, bool) {
	key, ok := normalize.Key(product)
	if !ok {
		return domain.SupplierCostEntry{}, false
	}
	return t.LookupKey(key)
}

// LookupKey looks up a key produced by normalize.Key. The key is used as is.
func (t *CostTable) LookupKey(productKey string) (domain.SupplierCostEntry, bool) {
	if t == nil || productKey == "" {
		return domain.SupplierCostEntry{}, false
	}
	e, ok := t.entries[productKey]
	return e, ok
}

// Len is the number of distinct products in the table.
func (t *CostTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// JoinCosts attaches supplier and unit cost to each product summary. A miss
// never fails: the product is assigned to UnassignedSupplier at zero cost.
func JoinCosts(products []domain.ProductSummary, lookup CostLookup) []domain.ProductCostLine {
	out := make([]domain.ProductCostLine, 0, len(products))
	for _, p := range products {
		supplier := UnassignedSupplier
		unitCost := decimal.Zero
		key := productKey(p.ProductKey, p.Product)

		if lookup != nil {
			if e, ok := lookup.LookupKey(key); ok {
				if s := strings.TrimSpace(e.Supplier); s != "" {
					supplier = s
				}
				if e.UnitCost.IsPositive() {
					unitCost = e.UnitCost
				}
			}
		}

		out = append(out, domain.ProductCostLine{
			Product:         p.Product,
			ProductKey:      key,
			Supplier:        supplier,
			TotalToPurchase: p.TotalToPurchase,
			UnitCost:        unitCost,
			LineCost:        decimal.NewFromFloat(p.TotalToPurchase).Mul(unitCost),
		})
	}
	return out
}

// SummarizeBySupplier groups cost lines per supplier, most expensive first.
func SummarizeBySupplier(lines []domain.ProductCostLine) []domain.SupplierSummary {
	type acc struct {
		key      string
		row      domain.SupplierSummary
		products map[string]struct{}
	}
	var rows []*acc
	index := make(map[string]*acc)
	for _, l := range lines {
		key, ok := normalize.Key(l.Supplier)
		if !ok {
			key = UnassignedSupplier
		}
		a, seen := index[key]
		if !seen {
			a = &acc{key: key, products: make(map[string]struct{})}
			a.row.TotalCost = decimal.Zero
			index[key] = a
			rows = append(rows, a)
		}
		a.row.Supplier = displayName(a.row.Supplier, strings.TrimSpace(l.Supplier))
		if a.row.Supplier == "" {
			a.row.Supplier = UnassignedSupplier
		}
		a.row.TotalUnits += l.TotalToPurchase
		a.row.TotalCost = a.row.TotalCost.Add(l.LineCost)
		if k := productKey(l.ProductKey, l.Product); k != "" {
			a.products[k] = struct{}{}
		}
	}

	slices.SortFunc(rows, func(a, b *acc) int {
		if c := b.row.TotalCost.Cmp(a.row.TotalCost); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	out := make([]domain.SupplierSummary, 0, len(rows))
	for _, a := range rows {
		a.row.SkuCount = len(a.products)
		out = append(out, a.row)
	}
	return out
}

// productKey returns key, or derives it from a display name that is already
// normalize.Text output. Running normalize.Key again would strip a second
// trailing parenthetical.
func productKey(key, display string) string {
	if key != "" {
		return key
	}
	return strings.ToUpper(display)
}
