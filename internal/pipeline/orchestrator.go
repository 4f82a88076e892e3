package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"
)

// Orchestrator coordinates running a Pipeline over a set of local files grouped by snapshot date.
type Orchestrator struct {
	ledger *RunLedger
	cfg    PipelineConfig
	flush  FlushFunc
	makeW  func(p Pipeline, cfg PipelineConfig, ledger *RunLedger, flush FlushFunc) *Worker
}

// NewOrchestrator creates a new Orchestrator. flush is called for every
// aggregated CSV and may be nil.
func NewOrchestrator(ledger *RunLedger, cfg PipelineConfig, flush FlushFunc) *Orchestrator {
	if ledger == nil {
		ledger = NewRunLedger()
	}
	return &Orchestrator{
		ledger: ledger,
		cfg:    cfg,
		flush:  flush,
		makeW:  NewWorker,
	}
}

// Ledger exposes the run ledger shared by this orchestrator's workers.
func (o *Orchestrator) Ledger() *RunLedger {
	return o.ledger
}

// Run groups the provided files by snapshot date (using p.GetSnapshotDate) and
// runs a Worker batch for each date, oldest first.
func (o *Orchestrator) Run(ctx context.Context, p Pipeline, files []string) ([]PipelineRun, error) {
	if len(files) == 0 {
		return nil, nil
	}

	byDate := make(map[time.Time][]string)
	for _, f := range files {
		date, err := p.GetSnapshotDate(filepath.Base(f))
		if err != nil {
			return nil, fmt.Errorf("failed to get snapshot date for %s: %w", f, err)
		}

		date = date.Truncate(24 * time.Hour)
		byDate[date] = append(byDate[date], f)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	worker := o.makeW(p, o.cfg, o.ledger, o.flush)

	runs := make([]PipelineRun, 0, len(dates))
	for _, date := range dates {
		run, err := worker.ProcessBatch(ctx, date, byDate[date])
		if err != nil && run != nil && o.cfg.RetryAttempts > 1 {
			run, err = o.retry(ctx, worker, run, err)
		}
		if run != nil {
			runs = append(runs, *run)
		}
		if err != nil {
			return runs, fmt.Errorf("failed to process batch for %s: %w", date.Format("2006-01-02"), err)
		}
	}

	return runs, nil
}

// retry gives the failed jobs of run one more pass. The run's original error
// is kept unless every file eventually succeeds.
func (o *Orchestrator) retry(ctx context.Context, worker *Worker, run *PipelineRun, runErr error) (*PipelineRun, error) {
	if err := worker.RetryFailed(ctx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	current, err := o.ledger.GetPipelineRun(ctx, run.ID)
	if err != nil {
		return run, errors.Join(runErr, err)
	}
	if current.Status == StatusCompleted {
		return current, nil
	}
	return current, runErr
}
