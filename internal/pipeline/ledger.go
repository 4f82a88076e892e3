package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// RunLedger tracks pipeline runs and file jobs in memory for the lifetime of
// the process. Callers get copies; updates go through the ledger.
type RunLedger struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]*PipelineRun
	jobs   map[int64]*FileJob
}

// NewRunLedger creates an empty ledger
func NewRunLedger() *RunLedger {
	return &RunLedger{
		runs: make(map[int64]*PipelineRun),
		jobs: make(map[int64]*FileJob),
	}
}

func (l *RunLedger) id() int64 {
	l.nextID++
	return l.nextID
}

// CreatePipelineRun records a new run and assigns its ID
func (l *RunLedger) CreatePipelineRun(ctx context.Context, run *PipelineRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	run.ID = l.id()
	l.runs[run.ID] = copyRun(run)
	return nil
}

func copyRun(run *PipelineRun) *PipelineRun {
	cp := *run
	cp.OutputFiles = slices.Clone(run.OutputFiles)
	return &cp
}

// UpdatePipelineRun overwrites an existing run
func (l *RunLedger) UpdatePipelineRun(ctx context.Context, run *PipelineRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.runs[run.ID]
	if !ok {
		return fmt.Errorf("pipeline run %d not found", run.ID)
	}
	// Counters are owned by the ledger, incremented concurrently by workers.
	processed, rows := stored.ProcessedFiles, stored.TotalRows
	*stored = *run
	stored.ProcessedFiles, stored.TotalRows = processed, rows
	stored.OutputFiles = slices.Clone(run.OutputFiles)
	return nil
}

// GetPipelineRun retrieves a run by ID
func (l *RunLedger) GetPipelineRun(ctx context.Context, id int64) (*PipelineRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	run, ok := l.runs[id]
	if !ok {
		return nil, fmt.Errorf("pipeline run %d not found", id)
	}
	return copyRun(run), nil
}

// GetPipelineRunByDate returns the latest run of a pipeline for a date, or nil
func (l *RunLedger) GetPipelineRunByDate(ctx context.Context, pipelineName string, date time.Time) (*PipelineRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var found *PipelineRun
	for _, run := range l.runs {
		if run.PipelineName == pipelineName && run.Date.Equal(date) {
			if found == nil || run.ID > found.ID {
				found = run
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	return copyRun(found), nil
}

// CreateFileJob records a job and assigns its ID
func (l *RunLedger) CreateFileJob(ctx context.Context, job *FileJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	job.ID = l.id()
	cp := *job
	l.jobs[job.ID] = &cp
	return nil
}

// UpdateFileJob overwrites an existing job
func (l *RunLedger) UpdateFileJob(ctx context.Context, job *FileJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.jobs[job.ID]; !ok {
		return fmt.Errorf("file job %d not found", job.ID)
	}
	cp := *job
	l.jobs[job.ID] = &cp
	return nil
}

// GetFileJobsByRunID retrieves all jobs of a run in creation order
func (l *RunLedger) GetFileJobsByRunID(ctx context.Context, runID int64) ([]*FileJob, error) {
	return l.selectJobs(func(job *FileJob) bool { return job.PipelineRunID == runID }), nil
}

// GetFailedFileJobs retrieves failed jobs that still have attempts left
func (l *RunLedger) GetFailedFileJobs(ctx context.Context, pipelineName string, maxRetries int) ([]*FileJob, error) {
	l.mu.Lock()
	runIDs := make(map[int64]bool)
	for id, run := range l.runs {
		if run.PipelineName == pipelineName {
			runIDs[id] = true
		}
	}
	l.mu.Unlock()

	return l.selectJobs(func(job *FileJob) bool {
		return runIDs[job.PipelineRunID] && job.Status == FileStatusFailed && job.RetryCount < maxRetries
	}), nil
}

func (l *RunLedger) selectJobs(keep func(*FileJob) bool) []*FileJob {
	l.mu.Lock()
	defer l.mu.Unlock()

	var jobs []*FileJob
	for _, job := range l.jobs {
		if keep(job) {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	slices.SortFunc(jobs, func(a, b *FileJob) int { return cmp.Compare(a.ID, b.ID) })
	return jobs
}

// IncrementProcessedFiles atomically increments the processed file count
func (l *RunLedger) IncrementProcessedFiles(ctx context.Context, runID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	run, ok := l.runs[runID]
	if !ok {
		return fmt.Errorf("pipeline run %d not found", runID)
	}
	run.ProcessedFiles++
	return nil
}

// AddRowCount atomically adds to the total row count
func (l *RunLedger) AddRowCount(ctx context.Context, runID int64, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	run, ok := l.runs[runID]
	if !ok {
		return fmt.Errorf("pipeline run %d not found", runID)
	}
	run.TotalRows += count
	return nil
}

// Runs lists every run, newest first
func (l *RunLedger) Runs() []PipelineRun {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]PipelineRun, 0, len(l.runs))
	for _, run := range l.runs {
		out = append(out, *copyRun(run))
	}
	slices.SortFunc(out, func(a, b PipelineRun) int { return cmp.Compare(b.ID, a.ID) })
	return out
}

// GetPipelineStats summarizes finished runs of a pipeline since a point in time
func (l *RunLedger) GetPipelineStats(ctx context.Context, pipelineName string, since time.Time) (*PipelineMetrics, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	metrics := &PipelineMetrics{}
	for _, run := range l.runs {
		if run.PipelineName != pipelineName || run.StartedAt.Before(since) {
			continue
		}
		switch run.Status {
		case StatusCompleted:
			metrics.FilesProcessed += int64(run.ProcessedFiles)
			metrics.RowsProcessed += int64(run.TotalRows)
		case StatusFailed:
			metrics.ErrorCount++
		default:
			continue
		}
		if run.CompletedAt != nil && run.CompletedAt.After(metrics.LastProcessedAt) {
			metrics.LastProcessedAt = *run.CompletedAt
		}
	}
	return metrics, nil
}
