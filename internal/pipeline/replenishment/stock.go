package replenishment

import (
	"errors"
	"slices"
	"strings"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

// ParseStock selects the location, product and quantity columns of a stock
// extract and sums duplicate (location, product) rows.
func ParseStock(t table.Table, resolver ColumnResolver) (*StockTable, error) {
	if resolver == nil {
		resolver = HeuristicResolver{}
	}

	cols, err := resolver.Resolve(t.Header, StockRoles)
	if err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) && schemaErr.Source == "" {
			schemaErr.Source = "stock"
		}
		return nil, err
	}

	out := &StockTable{index: make(map[pairKey]int)}
	for row := range t.Rows {
		location, okLoc := normalize.Text(t.Cell(row, cols[RoleLocation]))
		product, okProd := normalize.Text(t.Cell(row, cols[RoleProduct]))
		if !okLoc || !okProd {
			out.DroppedRows++
			continue
		}
		qty := ParseQuantity(t.Cell(row, cols[RoleQuantity]))

		key := pairKey{Location: strings.ToUpper(location), Product: strings.ToUpper(product)}
		if i, seen := out.index[key]; seen {
			out.records[i].Stock += qty
			continue
		}
		out.index[key] = len(out.records)
		out.records = append(out.records, domain.StockRecord{
			Location:    location,
			Product:     product,
			Stock:       qty,
			LocationKey: key.Location,
			ProductKey:  key.Product,
		})
	}

	slices.SortFunc(out.records, func(a, b domain.StockRecord) int {
		return comparePairs(a.LocationKey, a.ProductKey, b.LocationKey, b.ProductKey)
	})
	for i, r := range out.records {
		out.index[pairKey{Location: r.LocationKey, Product: r.ProductKey}] = i
	}

	return out, nil
}
