package pipeline

import (
	"context"
	"time"
)

// Pipeline defines the interface that all batch pipelines must implement
type Pipeline interface {
	// Name returns the unique identifier for this pipeline
	Name() string

	// Transform processes a single input file and returns the transformed data
	Transform(ctx context.Context, inputFile string) ([]TransformedRow, error)

	// Columns returns the ordered output columns of a TransformedRow
	Columns() []string

	// OutputName is the prefix of the aggregated CSV files
	OutputName() string

	// GetSnapshotDate extracts the date from the filename
	GetSnapshotDate(filename string) (time.Time, error)

	// Validate checks if the input file is valid for this pipeline
	Validate(inputFile string) error
}

// TransformedRow represents a single row of transformed data keyed by column
type TransformedRow struct {
	Data map[string]interface{}
}

// PipelineConfig holds configuration for a pipeline instance
type PipelineConfig struct {
	Name           string
	BatchSize      int           // Number of files to buffer before flushing
	BatchSizeBytes int64         // Size in bytes to buffer before flushing
	FlushInterval  time.Duration // Max time to wait before flushing
	WorkerCount    int           // Number of concurrent workers
	OutputDir      string        // Directory for aggregated CSVs
	RetryAttempts  int           // Number of attempts before a job stays failed
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig(name string) PipelineConfig {
	return PipelineConfig{
		Name:           name,
		BatchSize:      5,
		BatchSizeBytes: 10 * 1024 * 1024, // 10MB
		FlushInterval:  5 * time.Minute,
		WorkerCount:    4,
		OutputDir:      "data/output/" + name,
		RetryAttempts:  3,
	}
}

// PipelineStatus represents the current state of a pipeline run
type PipelineStatus string

const (
	StatusPending    PipelineStatus = "pending"
	StatusProcessing PipelineStatus = "processing"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
)

// FileJobStatus represents the state of a single file processing job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// PipelineRun tracks a single execution of a pipeline for a specific date
type PipelineRun struct {
	ID             int64          `json:"id"`
	PipelineName   string         `json:"pipeline_name"`
	Date           time.Time      `json:"date"`
	Status         PipelineStatus `json:"status"`
	TotalFiles     int            `json:"total_files"`
	ProcessedFiles int            `json:"processed_files"`
	TotalRows      int            `json:"total_rows"`
	OutputFiles    []string       `json:"output_files,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// FileJob tracks the processing of a single file
type FileJob struct {
	ID            int64         `json:"id"`
	PipelineRunID int64         `json:"pipeline_run_id"`
	FilePath      string        `json:"file_path"`
	Status        FileJobStatus `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
	RetryCount    int           `json:"retry_count"`
}

// PipelineMetrics holds metrics for monitoring
type PipelineMetrics struct {
	FilesProcessed  int64
	RowsProcessed   int64
	ErrorCount      int64
	LastProcessedAt time.Time
}

// FlushFunc receives each aggregated CSV after it is written.
type FlushFunc func(ctx context.Context, csvPath string) error
