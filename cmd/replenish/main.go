package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func newThresholdsFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "thresholds",
		Usage:   "Min/max sheet (CSV or XLSX); overrides the configured threshold source",
		EnvVars: []string{"THRESHOLDS_PATH"},
	}
}

func setupLogging(c *cli.Context) error {
	cfg := config.Load()
	logger.SetFormat(cfg.Log.Format)
	if c.Bool("verbose") {
		logger.SetLevel("debug")
	} else {
		logger.SetLevel(cfg.Log.Level)
	}
	return nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "replenish",
		Usage: "Reconcile stock snapshots against min/max thresholds",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:      "reconcile",
				Usage:     "Reconcile one stock snapshot and print the report as JSON",
				ArgsUsage: "<snapshot.csv|snapshot.xlsx>",
				Flags:     reconcileFlags(),
				Action:    runReconcile,
			},
			{
				Name:   "batch",
				Usage:  "Reconcile many dated snapshots into per-date CSV reports",
				Flags:  batchFlags(),
				Action: runBatch,
			},
			{
				Name:   "seed-costs",
				Usage:  "Load a product/supplier/unit cost sheet into the cost catalogue",
				Flags:  seedCostsFlags(),
				Action: runSeedCosts,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("replenish failed")
	}
}
