package repository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/normalize"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

// CostRepository supplies the supplier cost catalogue.
type CostRepository interface {
	ListCosts(ctx context.Context) ([]domain.SupplierCostEntry, error)
}

// CostWriter is implemented by repositories that can be seeded.
type CostWriter interface {
	UpsertCosts(ctx context.Context, entries []domain.SupplierCostEntry) (int, error)
}

var costColumns = map[string][]string{
	"Product":  {"product", "producto", "articulo", "item", "sku"},
	"Supplier": {"supplier", "proveedor", "vendor"},
	"UnitCost": {"unitcost", "cost", "costounitario", "costo", "price", "precio"},
}

var costColumnOrder = []string{"Product", "Supplier", "UnitCost"}

// FileCostRepository reads the catalogue from a CSV or XLSX file.
type FileCostRepository struct {
	path string
}

func NewFileCostRepository(path string) *FileCostRepository {
	return &FileCostRepository{path: path}
}

func (r *FileCostRepository) ListCosts(ctx context.Context) ([]domain.SupplierCostEntry, error) {
	t, err := table.ReadFile("supplier costs", r.path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseCostTable(t)
}

// ParseCostTable maps a (Product, Supplier, UnitCost) sheet to entries.
// Headers are matched after folding, so "Unit Cost", "unit_cost" and
// "Costo" are all accepted. Rows without a product are skipped.
func ParseCostTable(t table.Table) ([]domain.SupplierCostEntry, error) {
	cols := make(map[string]int, len(costColumnOrder))
	for i, h := range t.Header {
		name := normalize.ColumnName(h)
		for _, role := range costColumnOrder {
			if _, taken := cols[role]; taken {
				continue
			}
			for _, candidate := range costColumns[role] {
				if name == candidate {
					cols[role] = i
					break
				}
			}
		}
	}

	var missing []string
	for _, role := range costColumnOrder {
		if _, ok := cols[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Source: "costs", Reason: "required columns not found", Columns: missing}
	}

	entries := make([]domain.SupplierCostEntry, 0, len(t.Rows))
	for i := range t.Rows {
		product := t.Cell(i, cols["Product"])
		if _, ok := normalize.Key(product); !ok {
			continue
		}
		entries = append(entries, domain.SupplierCostEntry{
			Product:  product,
			Supplier: t.Cell(i, cols["Supplier"]),
			UnitCost: ParseCost(t.Cell(i, cols["UnitCost"])),
		})
	}
	return entries, nil
}

// ParseCost reads a money cell. Currency symbols and spaces are ignored;
// unreadable or negative values become zero.
func ParseCost(s string) decimal.Decimal {
	v := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '$', '€', '£':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	v = normalize.Number(v)
	if v == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
