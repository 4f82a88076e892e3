package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/drive"
	"github.com/andresuchdata/replenish/backend-go/internal/storage"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

// ThresholdSource yields the wide min/max sheet. Only the first sheet of a
// workbook is read.
type ThresholdSource interface {
	// Describe names the source for logs and API responses.
	Describe() string
	Open(ctx context.Context) (table.Table, error)
}

// FileSource reads a local CSV or XLSX file.
type FileSource struct {
	Path string
}

func (s FileSource) Describe() string { return "file:" + s.Path }

func (s FileSource) Open(ctx context.Context) (table.Table, error) {
	return table.ReadFile("thresholds", s.Path)
}

// DriveSource reads a Drive file; Google Sheets are exported as CSV.
type DriveSource struct {
	Files  drive.FileService
	FileID string
}

func (s DriveSource) Describe() string { return "drive:" + s.FileID }

func (s DriveSource) Open(ctx context.Context) (table.Table, error) {
	t, _, err := drive.ReadTable(ctx, s.Files, s.FileID)
	return t, err
}

// ObjectSource reads an object from S3-compatible storage.
type ObjectSource struct {
	Store storage.ObjectStorage
	Key   string
}

func (s ObjectSource) Describe() string { return "s3:" + s.Key }

func (s ObjectSource) Open(ctx context.Context) (table.Table, error) {
	rc, err := s.Store.OpenObject(ctx, s.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return table.Table{}, &domain.NotFoundError{Source: "thresholds", Path: s.Key}
		}
		return table.Table{}, err
	}
	defer rc.Close()
	return table.Read(s.Key, rc)
}

// NewThresholdSource picks the configured source. Exactly one of the path,
// Drive file ID and object key must be set.
func NewThresholdSource(cfg config.ThresholdsConfig, files drive.FileService, store storage.ObjectStorage) (ThresholdSource, error) {
	var configured []string
	if cfg.Path != "" {
		configured = append(configured, "THRESHOLDS_PATH")
	}
	if cfg.DriveFileID != "" {
		configured = append(configured, "THRESHOLDS_DRIVE_FILE_ID")
	}
	if cfg.ObjectKey != "" {
		configured = append(configured, "THRESHOLDS_OBJECT_KEY")
	}

	switch len(configured) {
	case 0:
		return nil, errors.New("no threshold source configured")
	case 1:
	default:
		return nil, fmt.Errorf("multiple threshold sources configured: %s", strings.Join(configured, ", "))
	}

	switch {
	case cfg.Path != "":
		return FileSource{Path: cfg.Path}, nil
	case cfg.DriveFileID != "":
		if files == nil {
			return nil, errors.New("thresholds: drive file configured but drive credentials are missing")
		}
		return DriveSource{Files: files, FileID: cfg.DriveFileID}, nil
	default:
		if store == nil {
			return nil, errors.New("thresholds: object key configured but storage is not configured")
		}
		return ObjectSource{Store: store, Key: cfg.ObjectKey}, nil
	}
}
