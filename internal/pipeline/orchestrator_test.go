package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestOrchestratorRunsDatesOldestFirst(t *testing.T) {
	cfg := testConfig(t)
	o := NewOrchestrator(nil, cfg, nil)

	files := []string{
		"/in/20251203_north.csv",
		"/in/20251201_north.csv",
		"/in/20251201_south.csv",
	}
	runs, err := o.Run(context.Background(), newFakePipeline(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].Date.Before(runs[1].Date) {
		t.Fatalf("runs out of order: %v then %v", runs[0].Date, runs[1].Date)
	}
	if runs[0].TotalFiles != 2 || runs[1].TotalFiles != 1 {
		t.Fatalf("file grouping = %d/%d", runs[0].TotalFiles, runs[1].TotalFiles)
	}
	if got := len(o.Ledger().Runs()); got != 2 {
		t.Fatalf("ledger runs = %d", got)
	}
}

func TestOrchestratorRejectsUndatedFile(t *testing.T) {
	o := NewOrchestrator(nil, testConfig(t), nil)
	if _, err := o.Run(context.Background(), newFakePipeline(), []string{"stock.csv"}); err == nil {
		t.Fatalf("expected error for undated file")
	}
	if runs, err := o.Run(context.Background(), newFakePipeline(), nil); runs != nil || err != nil {
		t.Fatalf("empty input = %v, %v", runs, err)
	}
}

func TestOrchestratorStopsOnFailedDate(t *testing.T) {
	o := NewOrchestrator(nil, testConfig(t), nil)
	runs, err := o.Run(context.Background(), newFakePipeline("20251201_bad.csv"), []string{
		"20251201_bad.csv",
		"20251202_ok.csv",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(runs) != 1 || runs[0].Status != StatusFailed {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestOrchestratorRetriesFlakyFile(t *testing.T) {
	p := newFakePipeline()
	p.flaky["20251201_flaky.csv"] = true

	o := NewOrchestrator(nil, testConfig(t), nil)
	runs, err := o.Run(context.Background(), p, []string{
		"20251201_flaky.csv",
		"20251201_ok.csv",
		"20251202_ok.csv",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runs) != 2 || runs[0].Status != StatusCompleted || runs[0].ProcessedFiles != 2 {
		t.Fatalf("runs = %+v", runs)
	}
	// The retry writes the recovered rows to a second part.
	if len(runs[0].OutputFiles) != 2 {
		t.Fatalf("outputs = %v", runs[0].OutputFiles)
	}
}

func TestOrchestratorWithoutRetry(t *testing.T) {
	p := newFakePipeline()
	p.flaky["20251201_flaky.csv"] = true

	cfg := testConfig(t)
	cfg.RetryAttempts = 1
	runs, err := NewOrchestrator(nil, cfg, nil).Run(context.Background(), p, []string{"20251201_flaky.csv"})
	if err == nil || len(runs) != 1 || runs[0].Status != StatusFailed {
		t.Fatalf("runs = %+v, err = %v", runs, err)
	}
}

func TestRunLedger(t *testing.T) {
	ctx := context.Background()
	l := NewRunLedger()
	date := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	first := &PipelineRun{PipelineName: "fake", Date: date, StartedAt: date, TotalFiles: 1}
	second := &PipelineRun{PipelineName: "fake", Date: date, StartedAt: date, TotalFiles: 1}
	if err := l.CreatePipelineRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := l.CreatePipelineRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	latest, err := l.GetPipelineRunByDate(ctx, "fake", date)
	if err != nil || latest == nil || latest.ID != second.ID {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
	if none, _ := l.GetPipelineRunByDate(ctx, "other", date); none != nil {
		t.Fatalf("expected nil for unknown pipeline")
	}

	_ = l.IncrementProcessedFiles(ctx, second.ID)
	_ = l.AddRowCount(ctx, second.ID, 5)

	// A stale copy must not reset the counters.
	done := date.Add(time.Hour)
	second.Status = StatusCompleted
	second.CompletedAt = &done
	if err := l.UpdatePipelineRun(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, _ := l.GetPipelineRun(ctx, second.ID)
	if got.ProcessedFiles != 1 || got.TotalRows != 5 || got.Status != StatusCompleted {
		t.Fatalf("stored run = %+v", got)
	}

	first.Status = StatusFailed
	_ = l.UpdatePipelineRun(ctx, first)

	stats, err := l.GetPipelineStats(ctx, "fake", date)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesProcessed != 1 || stats.RowsProcessed != 5 || stats.ErrorCount != 1 || !stats.LastProcessedAt.Equal(done) {
		t.Fatalf("stats = %+v", stats)
	}

	if err := l.UpdatePipelineRun(ctx, &PipelineRun{ID: 99}); err == nil {
		t.Fatalf("expected error updating unknown run")
	}
	if _, err := l.GetPipelineRun(ctx, 99); err == nil {
		t.Fatalf("expected error for unknown run")
	}

	runs := l.Runs()
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Fatalf("Runs() = %+v", runs)
	}
}

func TestRunLedgerReturnsCopies(t *testing.T) {
	ctx := context.Background()
	l := NewRunLedger()
	run := &PipelineRun{PipelineName: "fake", OutputFiles: []string{"a.csv"}}
	_ = l.CreatePipelineRun(ctx, run)

	got, _ := l.GetPipelineRun(ctx, run.ID)
	got.OutputFiles[0] = "mutated"
	got.Status = StatusFailed

	again, _ := l.GetPipelineRun(ctx, run.ID)
	if again.OutputFiles[0] != "a.csv" || again.Status != "" {
		t.Fatalf("ledger state leaked: %+v", again)
	}
}
