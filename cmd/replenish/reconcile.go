package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenish/backend-go/internal/cache"
	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/drive"
	"github.com/andresuchdata/replenish/backend-go/internal/repository"
	"github.com/andresuchdata/replenish/backend-go/internal/service"
	"github.com/andresuchdata/replenish/backend-go/internal/storage"
	"github.com/andresuchdata/replenish/backend-go/pkg/logger"
)

func reconcileFlags() []cli.Flag {
	return []cli.Flag{
		newThresholdsFlag(),
		&cli.StringFlag{
			Name:  "costs",
			Usage: "Supplier cost sheet (Product, Supplier, UnitCost); overrides COSTS_SOURCE",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the report to this file instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "actionable-only",
			Usage: "Print only the products with something to purchase",
		},
	}
}

// buildService loads thresholds and costs the way the server does, with the
// command line taking precedence over the environment.
func buildService(c *cli.Context, cfg *config.Config) (*service.ReplenishmentService, func() error, error) {
	ctx := c.Context

	source, err := thresholdSource(c, cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		costs     repository.CostRepository
		closeFunc = func() error { return nil }
	)
	if path := c.String("costs"); path != "" {
		costs = repository.NewFileCostRepository(path)
	} else {
		costs, closeFunc, err = service.OpenCostRepository(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	svc := service.NewReplenishmentService(source, costs, cache.NewNoopReportCache(), service.OptionsFromConfig(cfg))
	info, err := svc.ReloadThresholds(ctx)
	if err != nil {
		closeFunc()
		return nil, nil, fmt.Errorf("failed to load thresholds: %w", err)
	}
	logger.Log.Info().
		Str("source", info.Source).
		Int("records", info.Records).
		Int("inverted", info.Inverted).
		Msg("Thresholds ready")
	return svc, closeFunc, nil
}

func thresholdSource(c *cli.Context, cfg *config.Config) (service.ThresholdSource, error) {
	if path := c.String("thresholds"); path != "" {
		return service.FileSource{Path: path}, nil
	}

	var (
		files drive.FileService
		store storage.ObjectStorage
	)
	if cfg.Thresholds.DriveFileID != "" && cfg.Drive.CredentialsJSON != "" {
		svc, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive service: %w", err)
		}
		files = svc
	}
	if cfg.Thresholds.ObjectKey != "" && cfg.Storage.Endpoint != "" {
		s3Client, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			return nil, err
		}
		store = s3Client
	}
	return service.NewThresholdSource(cfg.Thresholds, files, store)
}

func runReconcile(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("reconcile expects exactly one snapshot file")
	}
	snapshotPath := c.Args().First()

	cfg := config.Load()
	svc, closeCosts, err := buildService(c, cfg)
	if err != nil {
		return err
	}
	defer closeCosts()

	f, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	report, err := svc.ReconcileUpload(c.Context, filepath.Base(snapshotPath), f)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if c.Bool("actionable-only") {
		return enc.Encode(report.Actionable)
	}
	return enc.Encode(report)
}
