package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/repository"
	"github.com/andresuchdata/replenish/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/replenish/backend-go/internal/repository/sqlite"
)

// OpenCostRepository opens the configured supplier cost catalogue. A nil
// repository (source "none") means every product is unassigned. The returned
// close func is never nil.
func OpenCostRepository(ctx context.Context, cfg *config.Config) (repository.CostRepository, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Costs.Source {
	case "", "none":
		return nil, noClose, nil

	case "file":
		if cfg.Costs.Path == "" {
			return nil, noClose, fmt.Errorf("COSTS_PATH is required for the file cost source")
		}
		return repository.NewFileCostRepository(cfg.Costs.Path), noClose, nil

	case "postgres":
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, noClose, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := postgres.NewCostRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noClose, err
		}
		return repo, db.Close, nil

	case "sqlite":
		if cfg.Costs.SQLitePath == "" {
			return nil, noClose, fmt.Errorf("COSTS_SQLITE_PATH is required for the sqlite cost source")
		}
		repo, err := sqlite.Open(ctx, cfg.Costs.SQLitePath)
		if err != nil {
			return nil, noClose, err
		}
		return repo, repo.Close, nil

	default:
		return nil, noClose, fmt.Errorf("unknown cost source %q", cfg.Costs.Source)
	}
}
