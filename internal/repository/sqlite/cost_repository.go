// Package sqlite keeps the supplier cost catalogue in a local SQLite file,
// for deployments without PostgreSQL.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/repository"
)

const schema = `
	CREATE TABLE IF NOT EXISTS supplier_costs (
		product    TEXT PRIMARY KEY,
		supplier   TEXT NOT NULL DEFAULT '',
		unit_cost  TEXT NOT NULL DEFAULT '0',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

type CostRepository struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and migrates it. ":memory:"
// gives a private in-memory database.
func Open(ctx context.Context, path string) (*CostRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer, and every connection to ":memory:" would be a new database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &CostRepository{db: db}, nil
}

func (r *CostRepository) Close() error {
	return r.db.Close()
}

func (r *CostRepository) ListCosts(ctx context.Context) ([]domain.SupplierCostEntry, error) {
	var entries []domain.SupplierCostEntry
	query := `SELECT product, supplier, unit_cost FROM supplier_costs ORDER BY product`
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list supplier costs: %w", err)
	}
	return entries, nil
}

// UpsertCosts inserts or replaces entries by product in one transaction.
func (r *CostRepository) UpsertCosts(ctx context.Context, entries []domain.SupplierCostEntry) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO supplier_costs (product, supplier, unit_cost, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (product)
		DO UPDATE SET
			supplier = excluded.supplier,
			unit_cost = excluded.unit_cost,
			updated_at = CURRENT_TIMESTAMP
	`
	for _, e := range entries {
		// Stored as text to keep the exact decimal representation.
		if _, err := tx.ExecContext(ctx, query, e.Product, e.Supplier, e.UnitCost.String()); err != nil {
			return 0, fmt.Errorf("failed to upsert cost for %s: %w", e.Product, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("could not commit transaction: %w", err)
	}
	return len(entries), nil
}

var (
	_ repository.CostRepository = (*CostRepository)(nil)
	_ repository.CostWriter     = (*CostRepository)(nil)
)
