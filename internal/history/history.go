// Package history records pipeline test runs so regressions can be
// traced across suite executions.
package history

import (
	"context"
	"time"
)

// RunStatus is the terminal state of a suite run or a single case.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusPassed  RunStatus = "passed"
	StatusFailed  RunStatus = "failed"
)

// CaseResult captures the outcome of one test case within a run.
type CaseResult struct {
	TestName       string
	TableName      string
	Status         RunStatus
	FailureMessage string
	Duration       time.Duration
}

// Recorder persists run outcomes. Implementations must be safe for
// concurrent RecordCaseResult calls within a single run.
type Recorder interface {
	StartRun(ctx context.Context, datasetID string) (int64, error)
	RecordCaseResult(ctx context.Context, runID int64, result CaseResult) error
	FinishRun(ctx context.Context, runID int64, status RunStatus) error
}

// NopRecorder discards all results. It is used when no history
// database is configured.
type NopRecorder struct{}

func (NopRecorder) StartRun(context.Context, string) (int64, error) { return 0, nil }

func (NopRecorder) RecordCaseResult(context.Context, int64, CaseResult) error { return nil }

func (NopRecorder) FinishRun(context.Context, int64, RunStatus) error { return nil }
