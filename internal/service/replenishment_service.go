package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenish/backend-go/internal/cache"
	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/drive"
	"github.com/andresuchdata/replenish/backend-go/internal/pipeline/replenishment"
	"github.com/andresuchdata/replenish/backend-go/internal/repository"
	"github.com/andresuchdata/replenish/backend-go/internal/table"
)

var (
	// ErrInvalidInput marks requests the caller has to fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoThresholds is returned before any threshold table was loaded.
	ErrNoThresholds = errors.New("thresholds not loaded")
	// ErrNoReport is returned before the first reconciliation.
	ErrNoReport = errors.New("no report available")
)

// Options configures a ReplenishmentService.
type Options struct {
	Layout   replenishment.ThresholdLayout
	Resolver replenishment.ColumnResolver
	Order    replenishment.ProductOrder
	// SnapshotDir confines server-local snapshot paths. Empty disables them.
	SnapshotDir string
	// DriveFiles enables importing thresholds from a Drive file ID.
	DriveFiles drive.FileService
}

// OptionsFromConfig maps the column, threshold and directory settings.
func OptionsFromConfig(cfg *config.Config) Options {
	layout := replenishment.DefaultThresholdLayout()
	layout.LeadingPrefixes = cfg.Thresholds.LeadingPrefixes

	names := map[replenishment.Role]string{
		replenishment.RoleLocation: cfg.Columns.Location,
		replenishment.RoleProduct:  cfg.Columns.Product,
		replenishment.RoleQuantity: cfg.Columns.Quantity,
	}
	return Options{
		Layout:      layout,
		Resolver:    replenishment.NewColumnResolver(names, cfg.Columns.HeuristicFallback),
		Order:       replenishment.OrderByQuantityDesc,
		SnapshotDir: cfg.App.SnapshotDir,
	}
}

// ThresholdsInfo describes the active threshold table.
type ThresholdsInfo struct {
	Source      string    `json:"source"`
	Version     string    `json:"version"`
	LoadedAt    time.Time `json:"loaded_at"`
	Records     int       `json:"records"`
	Products    int       `json:"products"`
	DroppedRows int       `json:"dropped_rows"`
	Inverted    int       `json:"inverted"`
}

type loadedThresholds struct {
	table *replenishment.ThresholdTable
	info  ThresholdsInfo
}

// ReplenishmentService owns the active threshold table and turns stock
// snapshots into reports.
type ReplenishmentService struct {
	source ThresholdSource
	costs  repository.CostRepository
	cache  cache.ReportCache
	opts   Options

	thresholds atomic.Pointer[loadedThresholds]

	mu     sync.RWMutex
	latest *domain.ReplenishmentReport

	now func() time.Time
}

// NewReplenishmentService wires the service. costs may be nil, in which case
// every product falls back to the unassigned supplier.
func NewReplenishmentService(source ThresholdSource, costs repository.CostRepository, cacheImpl cache.ReportCache, opts Options) *ReplenishmentService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopReportCache()
	}
	if opts.Resolver == nil {
		opts.Resolver = replenishment.HeuristicResolver{}
	}
	if opts.Layout.LeadingColumns == 0 {
		opts.Layout = replenishment.DefaultThresholdLayout()
	}
	return &ReplenishmentService{
		source: source,
		costs:  costs,
		cache:  cacheImpl,
		opts:   opts,
		now:    time.Now,
	}
}

// Thresholds returns the active table, or nil before the first load. Safe
// for concurrent use; the batch pipeline calls it per file.
func (s *ReplenishmentService) Thresholds() *replenishment.ThresholdTable {
	if lt := s.thresholds.Load(); lt != nil {
		return lt.table
	}
	return nil
}

// ThresholdsInfo reports the active table's metadata.
func (s *ReplenishmentService) ThresholdsInfo() (ThresholdsInfo, bool) {
	lt := s.thresholds.Load()
	if lt == nil {
		return ThresholdsInfo{}, false
	}
	return lt.info, true
}

// ThresholdRecords returns the active long-format thresholds.
func (s *ReplenishmentService) ThresholdRecords() ([]domain.LocationProductThreshold, error) {
	th := s.Thresholds()
	if th == nil {
		return nil, ErrNoThresholds
	}
	return th.Records(), nil
}

// ReloadThresholds re-reads the configured source. On failure the previous
// table stays active.
func (s *ReplenishmentService) ReloadThresholds(ctx context.Context) (ThresholdsInfo, error) {
	if s.source == nil {
		return ThresholdsInfo{}, fmt.Errorf("%w: no threshold source configured", ErrInvalidInput)
	}
	return s.loadThresholds(ctx, s.source)
}

// ImportThresholdsFromDrive replaces the active table with a Drive file.
func (s *ReplenishmentService) ImportThresholdsFromDrive(ctx context.Context, fileID string) (*drive.ImportResult, error) {
	if s.opts.DriveFiles == nil {
		return nil, errors.New("drive is not configured")
	}
	info, err := s.loadThresholds(ctx, DriveSource{Files: s.opts.DriveFiles, FileID: fileID})
	if err != nil {
		return nil, err
	}
	return &drive.ImportResult{
		FileID:      fileID,
		Name:        info.Source,
		Version:     info.Version,
		Records:     info.Records,
		Products:    info.Products,
		DroppedRows: info.DroppedRows,
	}, nil
}

func (s *ReplenishmentService) loadThresholds(ctx context.Context, src ThresholdSource) (ThresholdsInfo, error) {
	t, err := src.Open(ctx)
	if err != nil {
		return ThresholdsInfo{}, err
	}
	th, err := replenishment.ParseThresholds(t, s.opts.Layout)
	if err != nil {
		return ThresholdsInfo{}, err
	}

	inverted := th.Inverted()
	info := ThresholdsInfo{
		Source:      src.Describe(),
		Version:     th.Version(),
		LoadedAt:    s.now(),
		Records:     th.Len(),
		Products:    th.Products,
		DroppedRows: th.DroppedRows,
		Inverted:    len(inverted),
	}
	s.thresholds.Store(&loadedThresholds{table: th, info: info})

	log.Info().
		Str("source", info.Source).
		Str("version", info.Version).
		Int("records", info.Records).
		Int("products", info.Products).
		Int("dropped_rows", info.DroppedRows).
		Msg("thresholds loaded")
	for _, r := range inverted {
		log.Warn().
			Str("location", r.Location).
			Str("product", r.Product).
			Float64("min", r.Min).
			Float64("max", r.Max).
			Msg("thresholds: min exceeds max")
	}

	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("replenishment: cache invalidate failed")
	}
	return info, nil
}

// ReconcileUpload reconciles an uploaded file; name picks CSV or XLSX parsing.
func (s *ReplenishmentService) ReconcileUpload(ctx context.Context, name string, r io.Reader) (*domain.ReplenishmentReport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", name, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidInput)
	}
	return s.reconcile(ctx, name, raw, func() (table.Table, error) {
		return table.Read(name, bytes.NewReader(raw))
	})
}

// ReconcileText reconciles pasted delimited text.
func (s *ReplenishmentService) ReconcileText(ctx context.Context, text string) (*domain.ReplenishmentReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidInput)
	}
	return s.reconcile(ctx, "pasted", []byte(text), func() (table.Table, error) {
		return table.ParseText(text)
	})
}

// ReconcilePath reconciles a file under the snapshot directory. Paths that
// resolve outside it are rejected.
func (s *ReplenishmentService) ReconcilePath(ctx context.Context, path string) (*domain.ReplenishmentReport, error) {
	full, err := s.confine(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.NotFoundError{Source: "stock snapshot", Path: path}
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return s.reconcile(ctx, filepath.Base(full), raw, func() (table.Table, error) {
		return table.Read(full, bytes.NewReader(raw))
	})
}

func (s *ReplenishmentService) confine(path string) (string, error) {
	if s.opts.SnapshotDir == "" {
		return "", fmt.Errorf("%w: snapshot directory not configured", ErrInvalidInput)
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidInput)
	}
	root, err := filepath.Abs(s.opts.SnapshotDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve snapshot directory: %w", err)
	}
	full := filepath.Join(root, path)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q is outside the snapshot directory", ErrInvalidInput, path)
	}
	return full, nil
}

func (s *ReplenishmentService) reconcile(ctx context.Context, name string, raw []byte, read func() (table.Table, error)) (*domain.ReplenishmentReport, error) {
	th := s.Thresholds()
	if th == nil {
		return nil, ErrNoThresholds
	}

	key := cache.ReportKey(th.Version(), raw)
	if report, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		rehydrateKeys(report)
		s.setLatest(report)
		return report, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("replenishment: cache get report failed")
	}

	t, err := read()
	if err != nil {
		return nil, err
	}
	stock, err := replenishment.ParseStock(t, s.opts.Resolver)
	if err != nil {
		return nil, err
	}
	costs, err := s.loadCosts(ctx)
	if err != nil {
		return nil, err
	}

	result := replenishment.Evaluate(th, stock, costs, s.opts.Order)
	report := &domain.ReplenishmentReport{
		ID:                uuid.NewString(),
		GeneratedAt:       s.now().UTC(),
		ThresholdsVersion: th.Version(),
		SnapshotName:      name,
		Detail:            result.Detail,
		Products:          result.Products,
		Actionable:        result.Actionable,
		LowStock:          result.LowStock,
		Locations:         result.Locations,
		CostLines:         result.CostLines,
		Suppliers:         result.Suppliers,
		UnmatchedStock:    len(result.Unmatched),
	}

	log.Info().
		Str("report_id", report.ID).
		Str("snapshot", name).
		Int("stock_rows", stock.Len()).
		Int("detail_rows", len(report.Detail)).
		Int("actionable", len(report.Actionable)).
		Int("unmatched_stock", report.UnmatchedStock).
		Msg("reconciliation completed")
	for _, u := range result.Unmatched {
		log.Debug().Str("location", u.Location).Str("product", u.Product).Msg("stock without threshold")
	}

	if err := s.cache.Set(ctx, key, report); err != nil {
		log.Warn().Err(err).Msg("replenishment: cache set report failed")
	}
	s.setLatest(report)
	return report, nil
}

func (s *ReplenishmentService) loadCosts(ctx context.Context) (replenishment.CostLookup, error) {
	if s.costs == nil {
		return nil, nil
	}
	entries, err := s.costs.ListCosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier costs: %w", err)
	}
	return replenishment.NewCostTable(entries), nil
}

func (s *ReplenishmentService) setLatest(report *domain.ReplenishmentReport) {
	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()
}

// LatestReport returns the most recent report, served or cached.
func (s *ReplenishmentService) LatestReport() (*domain.ReplenishmentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoReport
	}
	return s.latest, nil
}

// StockVsMin computes the stock versus minimum view of the latest report.
// An empty location means all locations; top <= 0 keeps every product.
func (s *ReplenishmentService) StockVsMin(location string, top int) ([]domain.StockVsMinRow, error) {
	report, err := s.LatestReport()
	if err != nil {
		return nil, err
	}
	return replenishment.StockVsMin(report.Detail, location, top), nil
}

// SnapshotPipeline returns a batch pipeline reading the live threshold table.
func (s *ReplenishmentService) SnapshotPipeline(inputDateFormat string) *replenishment.SnapshotPipeline {
	return replenishment.NewSnapshotPipeline(replenishment.Config{
		InputDateFormat: inputDateFormat,
		Resolver:        s.opts.Resolver,
		Thresholds:      s.Thresholds,
	})
}

// rehydrateKeys restores the keys, which are not serialized. Display names
// are already normalized text, so the key is their upper-cased form.
func rehydrateKeys(report *domain.ReplenishmentReport) {
	for i := range report.Detail {
		report.Detail[i].LocationKey = strings.ToUpper(report.Detail[i].Location)
		report.Detail[i].ProductKey = strings.ToUpper(report.Detail[i].Product)
	}
	for i := range report.Products {
		report.Products[i].ProductKey = strings.ToUpper(report.Products[i].Product)
	}
	for i := range report.Actionable {
		report.Actionable[i].ProductKey = strings.ToUpper(report.Actionable[i].Product)
	}
	for i := range report.CostLines {
		report.CostLines[i].ProductKey = strings.ToUpper(report.CostLines[i].Product)
	}
}

var _ drive.ThresholdImporter = (*ReplenishmentService)(nil)
