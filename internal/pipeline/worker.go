package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Worker processes files for a specific pipeline
type Worker struct {
	pipeline   Pipeline
	config     PipelineConfig
	ledger     *RunLedger
	flush      FlushFunc
	aggregator *StreamingAggregator
}

// NewWorker creates a new pipeline worker. flush may be nil.
func NewWorker(pipeline Pipeline, config PipelineConfig, ledger *RunLedger, flush FlushFunc) *Worker {
	if ledger == nil {
		ledger = NewRunLedger()
	}
	return &Worker{
		pipeline: pipeline,
		config:   config,
		ledger:   ledger,
		flush:    flush,
	}
}

// ProcessBatch processes a batch of files for a specific date
func (w *Worker) ProcessBatch(ctx context.Context, date time.Time, files []string) (*PipelineRun, error) {
	log.Info().
		Str("pipeline", w.pipeline.Name()).
		Str("date", date.Format("2006-01-02")).
		Int("files", len(files)).
		Msg("starting batch")

	run, err := w.createPipelineRun(ctx, date, len(files))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}

	w.aggregator = NewStreamingAggregator(w.pipeline, w.config, date, w.recordingFlush(run))

	// Create file jobs
	fileJobs := make([]*FileJob, len(files))
	for i, file := range files {
		job := &FileJob{
			PipelineRunID: run.ID,
			FilePath:      file,
			Status:        FileStatusQueued,
		}
		if err := w.ledger.CreateFileJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to create file job: %w", err)
		}
		fileJobs[i] = job
	}

	run.Status = StatusProcessing
	if err := w.ledger.UpdatePipelineRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update pipeline run: %w", err)
	}

	runErr := w.processFilesParallel(ctx, fileJobs)

	// Rows of the files that succeeded are still written on partial failure.
	if err := w.aggregator.Finalize(ctx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to finalize aggregation: %w", err))
	}

	return w.finishRun(ctx, run, runErr)
}

// recordingFlush appends each written CSV to the run before handing it on.
func (w *Worker) recordingFlush(run *PipelineRun) FlushFunc {
	return func(ctx context.Context, csvPath string) error {
		run.OutputFiles = append(run.OutputFiles, csvPath)
		if w.flush == nil {
			return nil
		}
		log.Info().Str("pipeline", w.pipeline.Name()).Str("path", csvPath).Msg("handing off aggregated report")
		return w.flush(ctx, csvPath)
	}
}

func (w *Worker) finishRun(ctx context.Context, run *PipelineRun, runErr error) (*PipelineRun, error) {
	now := time.Now()
	run.CompletedAt = &now
	run.Status = StatusCompleted
	if runErr != nil {
		run.Status = StatusFailed
		run.ErrorMessage = runErr.Error()
	}
	if err := w.ledger.UpdatePipelineRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to complete pipeline run: %w", err)
	}

	final, err := w.ledger.GetPipelineRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return final, runErr
	}

	log.Info().
		Str("pipeline", w.pipeline.Name()).
		Int("files", final.ProcessedFiles).
		Int("rows", final.TotalRows).
		Msg("batch completed")
	return final, nil
}

// processFilesParallel runs jobs on at most WorkerCount goroutines. A failed
// file does not stop its siblings; all failures are returned joined.
func (w *Worker) processFilesParallel(ctx context.Context, jobs []*FileJob) error {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := w.processFile(gctx, job); err != nil {
				log.Error().Err(err).
					Str("pipeline", w.pipeline.Name()).
					Str("file", job.FilePath).
					Msg("failed to process file")
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", job.FilePath, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// processFile processes a single file
func (w *Worker) processFile(ctx context.Context, job *FileJob) error {
	startTime := time.Now()

	job.Status = FileStatusProcessing
	if err := w.ledger.UpdateFileJob(ctx, job); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return w.markJobFailed(ctx, job, err)
	}

	if err := w.pipeline.Validate(job.FilePath); err != nil {
		return w.markJobFailed(ctx, job, fmt.Errorf("validation failed: %w", err))
	}

	rows, err := w.pipeline.Transform(ctx, job.FilePath)
	if err != nil {
		return w.markJobFailed(ctx, job, fmt.Errorf("transformation failed: %w", err))
	}

	if err := w.aggregator.AddFileData(ctx, rows); err != nil {
		return w.markJobFailed(ctx, job, fmt.Errorf("aggregation failed: %w", err))
	}

	job.Status = FileStatusCompleted
	now := time.Now()
	job.ProcessedAt = &now
	job.ErrorMessage = ""
	if err := w.ledger.UpdateFileJob(ctx, job); err != nil {
		return err
	}

	if err := w.ledger.IncrementProcessedFiles(ctx, job.PipelineRunID); err != nil {
		log.Warn().Err(err).Str("pipeline", w.pipeline.Name()).Msg("failed to increment processed files")
	}
	if err := w.ledger.AddRowCount(ctx, job.PipelineRunID, len(rows)); err != nil {
		log.Warn().Err(err).Str("pipeline", w.pipeline.Name()).Msg("failed to add row count")
	}

	log.Debug().
		Str("pipeline", w.pipeline.Name()).
		Str("file", job.FilePath).
		Dur("took", time.Since(startTime)).
		Int("rows", len(rows)).
		Msg("file completed")

	return nil
}

// markJobFailed marks a job as failed and counts the attempt
func (w *Worker) markJobFailed(ctx context.Context, job *FileJob, err error) error {
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
	job.RetryCount++

	if uerr := w.ledger.UpdateFileJob(ctx, job); uerr != nil {
		log.Error().Err(uerr).Str("pipeline", w.pipeline.Name()).Msg("failed to update job status")
	}

	if job.RetryCount < w.config.RetryAttempts {
		log.Info().
			Str("pipeline", w.pipeline.Name()).
			Str("file", job.FilePath).
			Int("attempt", job.RetryCount).
			Int("max_attempts", w.config.RetryAttempts).
			Msg("file will be retried by RetryFailed")
	}

	return err
}

// createPipelineRun starts a fresh run for the date. Earlier runs of the
// same date stay in the ledger for inspection.
func (w *Worker) createPipelineRun(ctx context.Context, date time.Time, totalFiles int) (*PipelineRun, error) {
	previous, err := w.ledger.GetPipelineRunByDate(ctx, w.pipeline.Name(), date)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		log.Info().
			Str("pipeline", w.pipeline.Name()).
			Int64("previous_run", previous.ID).
			Str("previous_status", string(previous.Status)).
			Msg("re-running snapshot date")
	}

	run := &PipelineRun{
		PipelineName: w.pipeline.Name(),
		Date:         date,
		Status:       StatusPending,
		TotalFiles:   totalFiles,
		StartedAt:    time.Now(),
	}

	if err := w.ledger.CreatePipelineRun(ctx, run); err != nil {
		return nil, err
	}

	return run, nil
}

// RetryFailed reprocesses failed jobs that still have attempts left
func (w *Worker) RetryFailed(ctx context.Context) error {
	jobs, err := w.ledger.GetFailedFileJobs(ctx, w.pipeline.Name(), w.config.RetryAttempts)
	if err != nil {
		return fmt.Errorf("failed to get failed jobs: %w", err)
	}

	if len(jobs) == 0 {
		log.Info().Str("pipeline", w.pipeline.Name()).Msg("no failed jobs to retry")
		return nil
	}

	log.Info().Str("pipeline", w.pipeline.Name()).Int("jobs", len(jobs)).Msg("retrying failed jobs")

	jobsByRun := make(map[int64][]*FileJob)
	for _, job := range jobs {
		jobsByRun[job.PipelineRunID] = append(jobsByRun[job.PipelineRunID], job)
	}

	var errs []error
	for runID, runJobs := range jobsByRun {
		run, err := w.ledger.GetPipelineRun(ctx, runID)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		w.aggregator = NewStreamingAggregator(w.pipeline, w.config, run.Date, w.recordingFlush(run))
		w.aggregator.flushes = len(run.OutputFiles)

		if err := w.processFilesParallel(ctx, runJobs); err != nil {
			errs = append(errs, fmt.Errorf("retry run %d: %w", runID, err))
		}
		if err := w.aggregator.Finalize(ctx); err != nil {
			errs = append(errs, fmt.Errorf("finalize run %d: %w", runID, err))
		}

		current, err := w.ledger.GetPipelineRun(ctx, runID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if current.ProcessedFiles == current.TotalFiles {
			run.ErrorMessage = ""
			if _, err := w.finishRun(ctx, run, nil); err != nil {
				errs = append(errs, err)
			}
		} else if err := w.ledger.UpdatePipelineRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
