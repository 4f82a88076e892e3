package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
)

// openTestDB connects to TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return Wrap(db)
}

func TestCostRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCostRepository(db)

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM supplier_costs`); err != nil {
		t.Fatalf("reset: %v", err)
	}

	n, err := repo.UpsertCosts(ctx, []domain.SupplierCostEntry{
		{Product: "Coffee", Supplier: "Roasters", UnitCost: decimal.RequireFromString("12.5")},
		{Product: "Soap", Supplier: "Clean Co", UnitCost: decimal.NewFromInt(2)},
	})
	if err != nil || n != 2 {
		t.Fatalf("UpsertCosts = %d, %v", n, err)
	}
	if _, err := repo.UpsertCosts(ctx, []domain.SupplierCostEntry{
		{Product: "Coffee", Supplier: "Other", UnitCost: decimal.NewFromInt(9)},
	}); err != nil {
		t.Fatalf("second UpsertCosts: %v", err)
	}

	entries, err := repo.ListCosts(ctx)
	if err != nil {
		t.Fatalf("ListCosts: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Product != "Coffee" || entries[0].Supplier != "Other" || !entries[0].UnitCost.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("coffee = %+v", entries[0])
	}
}
