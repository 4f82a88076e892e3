package replenishment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenish/backend-go/internal/pipeline"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

// Config configures a SnapshotPipeline.
type Config struct {
	// InputDateFormat is the layout of the date prefix in snapshot filenames.
	InputDateFormat string
	// Resolver locates the stock columns; nil means heuristic.
	Resolver ColumnResolver
	// Thresholds returns the table to reconcile against. It is called once
	// per file so a reload between files is picked up.
	Thresholds func() *ThresholdTable
}

var detailColumns = []string{
	"date",
	"snapshot",
	"location",
	"product",
	"stock",
	"min",
	"max",
	"shortage_to_min",
	"purchase_to_max",
	"status",
	"status_label",
}

// SnapshotPipeline reconciles stock snapshot files in batch. It implements
// pipeline.Pipeline.
type SnapshotPipeline struct {
	config Config
}

// NewSnapshotPipeline creates a new snapshot pipeline instance.
func NewSnapshotPipeline(cfg Config) *SnapshotPipeline {
	if cfg.InputDateFormat == "" {
		cfg.InputDateFormat = "20060102"
	}
	if cfg.Resolver == nil {
		cfg.Resolver = HeuristicResolver{}
	}
	return &SnapshotPipeline{config: cfg}
}

// Name returns the unique identifier of this pipeline.
func (p *SnapshotPipeline) Name() string {
	return "replenishment"
}

// OutputName is the prefix of the per-date detail CSVs.
func (p *SnapshotPipeline) OutputName() string {
	return "replenishment_detail"
}

// Columns returns the detail CSV columns in order.
func (p *SnapshotPipeline) Columns() []string {
	return detailColumns
}

// GetSnapshotDate extracts the snapshot date from the filename prefix.
func (p *SnapshotPipeline) GetSnapshotDate(filename string) (time.Time, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	layout := p.config.InputDateFormat
	if len(base) < len(layout) {
		return time.Time{}, fmt.Errorf("filename %s does not contain date with layout %s", filename, layout)
	}

	return time.Parse(layout, base[:len(layout)])
}

// Validate performs basic validation on the input file.
func (p *SnapshotPipeline) Validate(inputFile string) error {
	info, err := os.Stat(inputFile)
	if err != nil {
		return fmt.Errorf("cannot stat input file %s: %w", inputFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected file", inputFile)
	}
	switch ext := strings.ToLower(filepath.Ext(inputFile)); ext {
	case ".csv", ".tsv", ".txt", ".xlsx", ".xlsm":
		return nil
	default:
		return fmt.Errorf("unsupported file extension %s for %s", ext, inputFile)
	}
}

// Transform reconciles one snapshot file against the current thresholds.
func (p *SnapshotPipeline) Transform(ctx context.Context, inputFile string) ([]pipeline.TransformedRow, error) {
	snapshotDate, err := p.GetSnapshotDate(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot date: %w", err)
	}

	var th *ThresholdTable
	if p.config.Thresholds != nil {
		th = p.config.Thresholds()
	}
	if th == nil {
		return nil, errors.New("no threshold table loaded")
	}

	raw, err := table.ReadFile("stock snapshot", inputFile)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stock, err := ParseStock(raw, p.config.Resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", inputFile, err)
	}

	detail := Reconcile(th, stock)
	if unmatched := UnmatchedStock(th, stock); len(unmatched) > 0 {
		log.Warn().
			Str("file", inputFile).
			Int("pairs", len(unmatched)).
			Msg("stock without thresholds excluded from detail")
	}

	label := p.snapshotLabel(inputFile)
	date := snapshotDate.Format("2006-01-02")

	result := make([]pipeline.TransformedRow, 0, len(detail))
	for _, r := range detail {
		result = append(result, pipeline.TransformedRow{Data: map[string]interface{}{
			"date":            date,
			"snapshot":        label,
			"location":        r.Location,
			"product":         r.Product,
			"stock":           formatQuantity(r.Stock),
			"min":             formatQuantity(r.Min),
			"max":             formatQuantity(r.Max),
			"shortage_to_min": formatQuantity(r.ShortageToMin),
			"purchase_to_max": formatQuantity(r.PurchaseToMax),
			"status":          r.Status.String(),
			"status_label":    r.Status.Label(),
		}})
	}

	return result, nil
}

// snapshotLabel strips the leading date prefix (e.g. 20251201_) from the
// filename so rows can be traced back to their source file.
func (p *SnapshotPipeline) snapshotLabel(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	layout := p.config.InputDateFormat
	if len(name) > len(layout) {
		if _, err := time.Parse(layout, name[:len(layout)]); err == nil {
			name = strings.TrimLeft(name[len(layout):], "_- ")
		}
	}
	if name == "" {
		return base
	}
	return name
}
