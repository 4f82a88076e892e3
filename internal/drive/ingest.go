package drive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

// ImportResult describes a threshold sheet loaded from Drive.
type ImportResult struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Records     int    `json:"records"`
	Products    int    `json:"products"`
	DroppedRows int    `json:"dropped_rows"`
}

// ThresholdImporter replaces the active threshold table with a Drive file.
type ThresholdImporter interface {
	ImportThresholdsFromDrive(ctx context.Context, fileID string) (*ImportResult, error)
}

// ReadTable downloads a Drive file into a table. The file name (with .csv
// for exported Sheets) decides whether it is parsed as a workbook or as text.
func ReadTable(ctx context.Context, files FileService, fileID string) (table.Table, *File, error) {
	var buf bytes.Buffer
	meta, err := files.Fetch(ctx, fileID, &buf)
	if err != nil {
		return table.Table{}, nil, fmt.Errorf("failed to fetch drive file %s: %w", fileID, err)
	}

	t, err := table.Read(meta.LocalName(), &buf)
	if err != nil {
		return table.Table{}, nil, fmt.Errorf("failed to parse drive file %s: %w", meta.Name, err)
	}
	return t, meta, nil
}
