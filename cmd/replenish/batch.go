package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/drive"
	"github.com/andresuchdata/replenish/backend-go/internal/pipeline"
	"github.com/andresuchdata/replenish/backend-go/internal/storage"
	"github.com/andresuchdata/replenish/backend-go/pkg/logger"
)

func batchFlags() []cli.Flag {
	return []cli.Flag{
		newThresholdsFlag(),
		&cli.StringFlag{
			Name:    "input-dir",
			Usage:   "Local directory with dated snapshot files (YYYYMMDD_*.csv)",
			EnvVars: []string{"APP_SNAPSHOT_DIR"},
		},
		&cli.StringFlag{
			Name:    "s3-prefix",
			Usage:   "Download snapshots under this object prefix before running",
			EnvVars: []string{"SNAPSHOT_S3_PREFIX"},
		},
		&cli.StringFlag{
			Name:  "s3-key",
			Usage: "Download a single snapshot object (relative to --s3-prefix)",
		},
		&cli.StringFlag{
			Name:    "drive-folder-id",
			Usage:   "Google Drive folder ID containing snapshot files",
			EnvVars: []string{"SNAPSHOT_DRIVE_FOLDER_ID"},
		},
		&cli.StringFlag{
			Name:  "drive-folder-path",
			Usage: "Google Drive folder path (e.g. stock/daily), resolved from the root",
		},
		&cli.StringFlag{
			Name:    "download-dir",
			Usage:   "Local directory for downloaded snapshots",
			Value:   "./data/tmp/snapshots",
			EnvVars: []string{"SNAPSHOT_DOWNLOAD_DIR"},
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Usage:   "Directory for the per-date detail CSVs",
			Value:   "./data/output/replenishment",
			EnvVars: []string{"REPLENISHMENT_OUTPUT_DIR"},
		},
		&cli.StringFlag{
			Name:    "upload-prefix",
			Usage:   "Upload each detail CSV to object storage under this prefix",
			EnvVars: []string{"REPLENISHMENT_UPLOAD_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "input-date-format",
			Usage:   "Date format used in filenames to extract snapshot date (Go layout)",
			Value:   "20060102",
			EnvVars: []string{"SNAPSHOT_INPUT_DATE_FORMAT"},
		},
		&cli.IntFlag{
			Name:    "pipeline-workers",
			Usage:   "Number of concurrent workers",
			Value:   runtime.NumCPU(),
			EnvVars: []string{"PIPELINE_WORKERS"},
		},
	}
}

func runBatch(c *cli.Context) error {
	ctx := c.Context
	cfg := config.Load()

	svc, closeCosts, err := buildService(c, cfg)
	if err != nil {
		return err
	}
	defer closeCosts()

	var store storage.ObjectStorage
	if c.String("s3-prefix") != "" || c.String("s3-key") != "" || c.String("upload-prefix") != "" {
		s3Client, err := storage.NewS3Client(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create object storage client: %w", err)
		}
		store = s3Client
	}

	files, err := collectSnapshots(ctx, c, cfg, store)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Log.Info().Msg("No snapshot files found; nothing to process")
		return nil
	}

	pipelineImpl := svc.SnapshotPipeline(c.String("input-date-format"))

	pCfg := pipeline.DefaultPipelineConfig(pipelineImpl.Name())
	pCfg.OutputDir = c.String("output-dir")
	pCfg.WorkerCount = c.Int("pipeline-workers")

	var flush pipeline.FlushFunc
	if prefix := c.String("upload-prefix"); prefix != "" {
		flush = reportUploader(store, prefix)
	}

	orch := pipeline.NewOrchestrator(nil, pCfg, flush)
	runs, runErr := orch.Run(ctx, pipelineImpl, files)
	for _, run := range runs {
		logger.Log.Info().
			Time("date", run.Date).
			Str("status", string(run.Status)).
			Int("files", run.TotalFiles).
			Int("processed", run.ProcessedFiles).
			Int("rows", run.TotalRows).
			Strs("outputs", run.OutputFiles).
			Msg("Batch run finished")
	}
	if runErr != nil {
		return fmt.Errorf("replenishment batch failed: %w", runErr)
	}

	logger.Log.Info().Int("dates", len(runs)).Msg("Replenishment batch completed successfully")
	return nil
}

// collectSnapshots gathers local snapshot paths from the input directory,
// object storage and Drive, in that order.
func collectSnapshots(ctx context.Context, c *cli.Context, cfg *config.Config, store storage.ObjectStorage) ([]string, error) {
	var files []string

	if dir := c.String("input-dir"); dir != "" {
		local, err := listSnapshotDir(dir)
		if err != nil {
			return nil, err
		}
		files = append(files, local...)
	}

	downloadDir := c.String("download-dir")

	if prefix, key := c.String("s3-prefix"), c.String("s3-key"); prefix != "" || key != "" {
		d, err := newSnapshotDownloader(store, filepath.Join(downloadDir, "s3"))
		if err != nil {
			return nil, err
		}
		logger.Log.Info().Str("prefix", prefix).Str("key", key).Msg("Downloading snapshots from object storage")
		downloaded, err := d.download(ctx, prefix, key)
		if err != nil {
			return nil, err
		}
		files = append(files, downloaded...)
	}

	if folderID, folderPath := c.String("drive-folder-id"), c.String("drive-folder-path"); folderID != "" || folderPath != "" {
		if cfg.Drive.CredentialsJSON == "" {
			return nil, errors.New("GOOGLE_DRIVE_CREDENTIALS_JSON is required for Drive downloads")
		}
		driveSvc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to create Drive service: %w", err)
		}
		logger.Log.Info().Str("folder_id", folderID).Str("folder_path", folderPath).Msg("Downloading snapshots from Drive")
		downloaded, err := drive.NewDownloader(driveSvc).DownloadFolder(ctx, drive.DownloadOptions{
			FolderID:    folderID,
			FolderPath:  folderPath,
			DownloadDir: filepath.Join(downloadDir, "drive"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to download files from Drive: %w", err)
		}
		files = append(files, downloaded...)
	}

	return files, nil
}

func listSnapshotDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isSnapshotKey(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
