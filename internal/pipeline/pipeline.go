package pipeline

import (
	"context"
	"time"
)

// RunRequest carries everything a pipeline backend needs to populate one
// destination table. The worker sizing parameters are string-encoded and
// passed through opaquely from the test descriptor.
type RunRequest struct {
	TestName          string
	DatasetID         string
	TableName         string
	InputPattern      string
	MergeStrategy     string
	WorkerMachineType string
	MaxNumWorkers     string
	NumWorkers        string
}

// RunResult reports what a pipeline run produced. DataFiles may be empty for
// remote backends; callers then discover the table's data files by listing
// the table prefix in the object store.
type RunResult struct {
	JobID     string
	DataFiles []string
	RowCount  int64
	Duration  time.Duration
}

// Runner executes one pipeline run to completion.
type Runner interface {
	Run(ctx context.Context, request RunRequest) (RunResult, error)
}
