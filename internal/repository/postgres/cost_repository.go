package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/repository"
)

const costSchema = `
	CREATE TABLE IF NOT EXISTS supplier_costs (
		product    TEXT PRIMARY KEY,
		supplier   TEXT NOT NULL DEFAULT '',
		unit_cost  NUMERIC(14, 4) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type CostRepository struct {
	db *DB
}

func NewCostRepository(db *DB) *CostRepository {
	return &CostRepository{db: db}
}

// EnsureSchema creates the supplier_costs table when missing.
func (r *CostRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, costSchema); err != nil {
		return fmt.Errorf("failed to create supplier_costs: %w", err)
	}
	return nil
}

func (r *CostRepository) ListCosts(ctx context.Context) ([]domain.SupplierCostEntry, error) {
	release, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []domain.SupplierCostEntry
	query := `SELECT product, supplier, unit_cost FROM supplier_costs ORDER BY product`
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list supplier costs: %w", err)
	}
	return entries, nil
}

// UpsertCosts inserts or replaces entries by product in one transaction.
func (r *CostRepository) UpsertCosts(ctx context.Context, entries []domain.SupplierCostEntry) (int, error) {
	query := `
		INSERT INTO supplier_costs (product, supplier, unit_cost, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product)
		DO UPDATE SET
			supplier = EXCLUDED.supplier,
			unit_cost = EXCLUDED.unit_cost,
			updated_at = NOW()
	`

	var written int
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.Product, e.Supplier, e.UnitCost); err != nil {
				return fmt.Errorf("failed to upsert cost for %s: %w", e.Product, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

var (
	_ repository.CostRepository = (*CostRepository)(nil)
	_ repository.CostWriter     = (*CostRepository)(nil)
)
