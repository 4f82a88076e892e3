package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/repository/sqlite"
	"github.com/andresuchdata/replenish/backend-go/internal/storage"
)

const (
	thresholdsCSV = "Unit,Location,Capacity,Coffee,Coffee.1,Soap,Soap.1\n" +
		"1,Loc A,2,2,5,0,0\n" +
		"2,Loc B,4,1,1,3,6\n"
	stockCSV = "Location,Product,Quantity\nLoc A,Coffee,1\nLoc B,Soap,2\n"
	costsCSV = "Product,Supplier,Unit Cost\nCoffee,Roasters,2.50\nSoap,Clean Co,1\n"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "replenish-cli")
	if err != nil {
		panic(err)
	}
	os.Setenv("APP_UPLOAD_DIR", filepath.Join(dir, "uploads"))
	os.Setenv("APP_DATA_DIR", filepath.Join(dir, "output"))
	os.Setenv("COSTS_SOURCE", "none")
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReconcileCommand(t *testing.T) {
	dir := t.TempDir()
	thresholds := writeFile(t, dir, "thresholds.csv", thresholdsCSV)
	costs := writeFile(t, dir, "costs.csv", costsCSV)
	snapshot := writeFile(t, dir, "stock.csv", stockCSV)
	out := filepath.Join(dir, "report.json")

	err := newApp().Run([]string{"replenish", "reconcile", "--thresholds", thresholds, "--costs", costs, "-o", out, snapshot})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var report domain.ReplenishmentReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.SnapshotName != "stock.csv" || len(report.Detail) != 4 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Suppliers) != 2 || report.Suppliers[0].Supplier != "Roasters" {
		t.Fatalf("suppliers = %+v", report.Suppliers)
	}
	// Coffee: (5-1) + (1-0) units at 2.50.
	if !report.Suppliers[0].TotalCost.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("roasters cost = %s", report.Suppliers[0].TotalCost)
	}
}

func TestReconcileCommandActionableOnly(t *testing.T) {
	dir := t.TempDir()
	thresholds := writeFile(t, dir, "thresholds.csv", thresholdsCSV)
	snapshot := writeFile(t, dir, "stock.csv", stockCSV)
	out := filepath.Join(dir, "actionable.json")

	if err := newApp().Run([]string{"replenish", "reconcile", "--thresholds", thresholds, "--actionable-only", "-o", out, snapshot}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var rows []domain.ProductSummary
	if err := json.Unmarshal(raw, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestReconcileCommandErrors(t *testing.T) {
	dir := t.TempDir()
	thresholds := writeFile(t, dir, "thresholds.csv", thresholdsCSV)

	if err := newApp().Run([]string{"replenish", "reconcile", "--thresholds", thresholds}); err == nil {
		t.Fatal("expected error without a snapshot argument")
	}

	err := newApp().Run([]string{"replenish", "reconcile", "--thresholds", filepath.Join(dir, "missing.csv"), writeFile(t, dir, "s.csv", stockCSV)})
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("missing thresholds err = %v", err)
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	thresholds := writeFile(t, dir, "thresholds.csv", thresholdsCSV)
	input := filepath.Join(dir, "in")
	if err := os.MkdirAll(input, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, input, "20251201_north.csv", stockCSV)
	writeFile(t, input, "20251201_south.csv", stockCSV)
	writeFile(t, input, "20251202_north.csv", stockCSV)
	writeFile(t, input, "readme.md", "not a snapshot")
	output := filepath.Join(dir, "out")

	err := newApp().Run([]string{
		"replenish", "batch",
		"--thresholds", thresholds,
		"--input-dir", input,
		"--output-dir", output,
		"--pipeline-workers", "2",
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(output, "*.csv"))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(matches)
	if len(matches) != 2 || !strings.HasSuffix(matches[0], "replenishment_detail_20251201.csv") {
		t.Fatalf("outputs = %v", matches)
	}
}

func TestSeedCostsSQLite(t *testing.T) {
	dir := t.TempDir()
	costs := writeFile(t, dir, "costs.csv", costsCSV)
	dbPath := filepath.Join(dir, "costs.db")

	if err := newApp().Run([]string{"replenish", "seed-costs", "--file", costs, "--sqlite-path", dbPath}); err != nil {
		t.Fatalf("seed-costs: %v", err)
	}

	repo, err := sqlite.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	entries, err := repo.ListCosts(context.Background())
	if err != nil || len(entries) != 2 || entries[0].Product != "Coffee" {
		t.Fatalf("entries = %+v, %v", entries, err)
	}
}

func TestSeedCostsRequiresTarget(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("COSTS_SQLITE_PATH", "")
	costs := writeFile(t, t.TempDir(), "costs.csv", costsCSV)
	if err := newApp().Run([]string{"replenish", "seed-costs", "--file", costs}); err == nil {
		t.Fatal("expected error without a database target")
	}
}

type fakeStore struct {
	objects  map[string]string
	uploaded map[string][]byte
}

func (f *fakeStore) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeStore) OpenObject(ctx context.Context, key string) (io.ReadCloser, error) {
	v, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(v)), nil
}

func (f *fakeStore) DownloadObject(ctx context.Context, key, destPath string) error {
	v, ok := f.objects[key]
	if !ok {
		return storage.ErrObjectNotFound
	}
	return os.WriteFile(destPath, []byte(v), 0o644)
}

func (f *fakeStore) UploadObject(ctx context.Context, key string, data []byte) error {
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	f.uploaded[key] = data
	return nil
}

func TestSnapshotDownloader(t *testing.T) {
	store := &fakeStore{objects: map[string]string{
		"snapshots/20251201_north.csv":    stockCSV,
		"snapshots/daily/20251202_a.xlsx": "xlsx",
		"snapshots/notes.pdf":             "pdf",
		"other/20251201_ignored.csv":      stockCSV,
	}}
	d, err := newSnapshotDownloader(store, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	paths, err := d.download(context.Background(), "snapshots/", "")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	if !strings.HasSuffix(filepath.ToSlash(paths[1]), "daily/20251202_a.xlsx") {
		t.Fatalf("relative layout not kept: %v", paths)
	}

	single, err := d.download(context.Background(), "snapshots", "20251201_north.csv")
	if err != nil || len(single) != 1 {
		t.Fatalf("single = %v, %v", single, err)
	}

	if _, err := d.download(context.Background(), "empty/", ""); err == nil {
		t.Fatal("expected error for empty prefix")
	}
}

func TestResolveObjectKey(t *testing.T) {
	tests := []struct {
		prefix, override, want string
	}{
		{"", "/a.csv", "a.csv"},
		{"snapshots/", "", "snapshots/"},
		{"snapshots", "a.csv", "snapshots/a.csv"},
		{"snapshots/", "/snapshots/a.csv", "snapshots/a.csv"},
	}
	for _, tt := range tests {
		if got := resolveObjectKey(tt.prefix, tt.override); got != tt.want {
			t.Errorf("resolveObjectKey(%q, %q) = %q, want %q", tt.prefix, tt.override, got, tt.want)
		}
	}
}

func TestObjectRelativePath(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "a/b.csv", "a/b.csv"},
		{"a/", "a/b.csv", "b.csv"},
		{"a", "a/x/b.csv", "x/b.csv"},
		{"a/b.csv", "a/b.csv", "a/b.csv"},
	}
	for _, tt := range tests {
		if got := objectRelativePath(tt.prefix, tt.key); got != tt.want {
			t.Errorf("objectRelativePath(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestReportUploader(t *testing.T) {
	store := &fakeStore{}
	path := writeFile(t, t.TempDir(), "replenishment_detail_20251201.csv", "a,b\n")

	if err := reportUploader(store, "/reports/")(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if string(store.uploaded["reports/replenishment_detail_20251201.csv"]) != "a,b\n" {
		t.Fatalf("uploaded = %v", store.uploaded)
	}
}
