package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/replenish/backend-go/internal/storage"
)

type snapshotDownloader struct {
	client  storage.ObjectStorage
	destDir string
}

func newSnapshotDownloader(client storage.ObjectStorage, destDir string) (*snapshotDownloader, error) {
	if destDir == "" {
		destDir = "./data/tmp/snapshots"
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure download dir %s: %w", destDir, err)
	}
	return &snapshotDownloader{client: client, destDir: destDir}, nil
}

func isSnapshotKey(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv", ".txt", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// download fetches one object (override) or every snapshot under prefix.
func (d *snapshotDownloader) download(ctx context.Context, prefix, override string) ([]string, error) {
	var keys []string

	if override != "" {
		keys = []string{resolveObjectKey(prefix, override)}
	} else {
		listPrefix := strings.TrimSpace(prefix)
		objects, err := d.client.ListObjects(ctx, listPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
		}
		for _, obj := range objects {
			if isSnapshotKey(obj.Key) {
				keys = append(keys, obj.Key)
			}
		}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no snapshot files found for prefix %s", prefix)
	}

	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(d.destDir, objectRelativePath(prefix, key))
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare directory for %s: %w", localPath, err)
		}
		if err := d.client.DownloadObject(ctx, key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

func resolveObjectKey(prefix, override string) string {
	if override == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(override, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	overrideTrimmed := strings.TrimPrefix(strings.TrimSpace(override), "/")

	if strings.HasPrefix(overrideTrimmed, prefixTrimmed) {
		return overrideTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, overrideTrimmed)
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}

// reportUploader returns a flush hook that copies each aggregated CSV to
// prefix/<file name>.
func reportUploader(client storage.ObjectStorage, prefix string) func(ctx context.Context, csvPath string) error {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	return func(ctx context.Context, csvPath string) error {
		data, err := os.ReadFile(csvPath)
		if err != nil {
			return fmt.Errorf("failed to read report %s: %w", csvPath, err)
		}
		key := filepath.Base(csvPath)
		if prefix != "" {
			key = prefix + "/" + key
		}
		return client.UploadObject(ctx, key, data)
	}
}
