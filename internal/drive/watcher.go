package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	FolderPath  string
	DownloadDir string
}

// Downloader pulls stock snapshots out of a Drive folder for batch runs.
type Downloader struct {
	service FileService
}

// NewDownloader creates a new Downloader.
func NewDownloader(s FileService) *Downloader {
	return &Downloader{service: s}
}

func isSnapshotFile(f *File) bool {
	if f.IsSheet() {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// DownloadFolder downloads every CSV, XLSX and Google Sheet in the folder
// into DownloadDir and returns the local paths. Sheets are exported as CSV.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	folderID := opts.FolderID
	if folderID == "" && opts.FolderPath != "" {
		id, err := d.service.FindFolderByPath(ctx, opts.FolderPath)
		if err != nil {
			return nil, err
		}
		folderID = id
	}

	files, err := d.service.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !isSnapshotFile(f) {
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(f.LocalName()))
		if err := d.downloadTo(ctx, f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		log.Debug().Str("file", f.Name).Str("path", localPath).Msg("downloaded snapshot from drive")
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) downloadTo(ctx context.Context, fileID, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if _, err := d.service.Fetch(ctx, fileID, out); err != nil {
		out.Close()
		_ = os.Remove(localPath)
		return err
	}
	return out.Close()
}
