package replenishment

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSnapshotPipelineGetSnapshotDate(t *testing.T) {
	p := NewSnapshotPipeline(Config{})

	got, err := p.GetSnapshotDate("/data/in/20251201_stock.csv")
	if err != nil {
		t.Fatalf("GetSnapshotDate: %v", err)
	}
	if !got.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", got)
	}

	for _, name := range []string{"stock.csv", "2025.csv", "2025-12-01_stock.csv"} {
		if _, err := p.GetSnapshotDate(name); err == nil {
			t.Errorf("expected error for %s", name)
		}
	}
}

func TestSnapshotPipelineValidate(t *testing.T) {
	dir := t.TempDir()
	p := NewSnapshotPipeline(Config{})

	ok := writeFile(t, dir, "20251201_stock.csv", "Location,Product,Qty\n")
	if err := p.Validate(ok); err != nil {
		t.Fatalf("Validate(csv): %v", err)
	}

	tests := map[string]string{
		"missing":   filepath.Join(dir, "nope.csv"),
		"directory": dir,
		"extension": writeFile(t, dir, "20251201_stock.json", "{}"),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			if err := p.Validate(path); err == nil {
				t.Fatalf("expected error for %s", path)
			}
		})
	}
}

func TestSnapshotPipelineTransform(t *testing.T) {
	dir := t.TempDir()
	th := mustThresholds(t, newTable(thresholdHeader,
		[]string{"1", "Loc A", "", "2", "5", "0", "0"},
	))
	p := NewSnapshotPipeline(Config{Thresholds: func() *ThresholdTable { return th }})

	path := writeFile(t, dir, "20251201_north.csv", "Ubicación;Artículo;Cantidad\nLoc A;Coffee;1\nLoc A;Tea;3\n")
	rows, err := p.Transform(context.Background(), path)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	coffee := rows[0].Data
	want := map[string]interface{}{
		"date":            "2025-12-01",
		"snapshot":        "north",
		"location":        "Loc A",
		"product":         "Coffee",
		"stock":           "1",
		"purchase_to_max": "4",
		"status":          "BelowMin",
		"status_label":    "Below minimum",
	}
	for k, v := range want {
		if coffee[k] != v {
			t.Errorf("%s = %v want %v", k, coffee[k], v)
		}
	}
	for _, col := range p.Columns() {
		if _, ok := coffee[col]; !ok {
			t.Errorf("row missing column %s", col)
		}
	}
}

func TestSnapshotPipelineTransformErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "20251201_stock.csv", "Foo,Bar\n1,2\n")

	noThresholds := NewSnapshotPipeline(Config{})
	if _, err := noThresholds.Transform(context.Background(), path); err == nil {
		t.Fatalf("expected error without thresholds")
	}

	th := mustThresholds(t, newTable(thresholdHeader, []string{"1", "Loc A", "", "1", "2", "1", "2"}))
	p := NewSnapshotPipeline(Config{Thresholds: func() *ThresholdTable { return th }})
	if _, err := p.Transform(context.Background(), path); err == nil {
		t.Fatalf("expected schema error for unrecognised columns")
	}
	if _, err := p.Transform(context.Background(), "undated.csv"); err == nil {
		t.Fatalf("expected date error")
	}
}

func TestSnapshotLabel(t *testing.T) {
	p := NewSnapshotPipeline(Config{})
	tests := map[string]string{
		"20251201_north.csv": "north",
		"20251201-south.csv": "south",
		"20251201.csv":       "20251201",
		"inventory.xlsx":     "inventory",
	}
	for in, want := range tests {
		if got := p.snapshotLabel(in); got != want {
			t.Errorf("snapshotLabel(%q) = %q want %q", in, got, want)
		}
	}
}
