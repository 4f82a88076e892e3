package main

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenish/backend-go/internal/repository"
	"github.com/andresuchdata/replenish/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/replenish/backend-go/internal/repository/sqlite"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
	"github.com/andresuchdata/replenish/backend-go/pkg/logger"
)

func seedCostsFlags() []cli.Flag {
	return []cli.Flag{
		newDBURLFlag(),
		&cli.StringFlag{
			Name:     "file",
			Usage:    "Cost sheet (CSV or XLSX) with Product, Supplier and UnitCost columns",
			Required: true,
			EnvVars:  []string{"COSTS_PATH"},
		},
		&cli.StringFlag{
			Name:    "sqlite-path",
			Usage:   "Write to this SQLite file instead of PostgreSQL",
			EnvVars: []string{"COSTS_SQLITE_PATH"},
		},
	}
}

func runSeedCosts(c *cli.Context) error {
	ctx := c.Context

	t, err := table.ReadFile("costs", c.String("file"))
	if err != nil {
		return err
	}
	entries, err := repository.ParseCostTable(t)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		logger.Log.Warn().Str("file", c.String("file")).Msg("Cost sheet has no rows; nothing to seed")
		return nil
	}

	writer, closeWriter, err := openCostWriter(c)
	if err != nil {
		return err
	}
	defer closeWriter()

	n, err := writer.UpsertCosts(ctx, entries)
	if err != nil {
		return err
	}
	logger.Log.Info().Int("entries", n).Msg("Supplier costs seeded")
	return nil
}

func openCostWriter(c *cli.Context) (repository.CostWriter, func() error, error) {
	if path := c.String("sqlite-path"); path != "" {
		repo, err := sqlite.Open(c.Context, path)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}

	dbURL := c.String("db-url")
	if dbURL == "" {
		return nil, nil, errors.New("either --db-url (DATABASE_URL) or --sqlite-path is required")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pg := postgres.Wrap(sqlx.NewDb(db, "pgx"))
	repo := postgres.NewCostRepository(pg)
	if err := repo.EnsureSchema(c.Context); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}
