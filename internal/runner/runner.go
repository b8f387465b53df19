// Package runner executes integration test suites: it launches variant
// transform pipelines, registers their output in the warehouse, and
// validates every query assertion.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lynnlangit/gcp-variant-transforms/internal/history"
	"github.com/lynnlangit/gcp-variant-transforms/internal/observability"
	"github.com/lynnlangit/gcp-variant-transforms/internal/pipeline"
	"github.com/lynnlangit/gcp-variant-transforms/internal/storage"
	"github.com/lynnlangit/gcp-variant-transforms/internal/testcase"
	"github.com/lynnlangit/gcp-variant-transforms/internal/warehouse"
)

// DefaultRunnerName is used when a descriptor does not name a runner.
const DefaultRunnerName = "DirectRunner"

// Options are per-invocation suite settings. Parallelism, when
// positive, overrides the harness default.
type Options struct {
	KeepTables            bool
	RevalidationDatasetID string
	Parallelism           int
}

// Harness wires pipelines, storage, the warehouse, and run history
// together for a suite run.
type Harness struct {
	Warehouse   warehouse.Warehouse
	Store       storage.ObjectStore
	Runners     map[string]pipeline.Runner
	History     history.Recorder
	Registry    testcase.Registry
	Logger      *slog.Logger
	Parallelism int
	Now         func() time.Time
}

// RunSuite executes every case of the suite, bounded by Parallelism.
// A failing case never aborts the run; its error lands in the report.
func (h *Harness) RunSuite(ctx context.Context, files []testcase.SuiteFile, opts Options) (*Report, error) {
	if h.Warehouse == nil {
		return nil, fmt.Errorf("warehouse is required")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("suite is empty")
	}

	logger := h.logger()
	recorder := h.recorder()

	rc := NewRunContext(h.now()(), opts.KeepTables, opts.RevalidationDatasetID)
	if err := rc.Setup(ctx, h.Warehouse); err != nil {
		return nil, err
	}
	logger.Info("suite run starting",
		slog.String("dataset_id", rc.DatasetID),
		slog.Int("cases", len(files)),
		slog.Bool("revalidation", rc.Revalidation),
	)

	runID, err := recorder.StartRun(ctx, rc.DatasetID)
	if err != nil {
		if cleanupErr := rc.Cleanup(ctx, h.Warehouse); cleanupErr != nil {
			logger.Warn("dataset cleanup", slog.Any("error", cleanupErr))
		}
		return nil, fmt.Errorf("record run start: %w", err)
	}

	outcomes := make([]CaseOutcome, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(h.parallelism(opts))

	for i, file := range files {
		group.Go(func() error {
			caseCtx := observability.ContextWithTraceID(groupCtx, rc.DatasetID+"/"+file.Case.TestName)
			caseLogger := observability.LoggerWithTrace(caseCtx, logger)

			start := h.now()()
			caseErr := h.runCase(caseCtx, rc, file.Case)
			elapsed := h.now()().Sub(start)

			outcomes[i] = CaseOutcome{
				TestName:  file.Case.TestName,
				TableName: file.Case.TableName,
				Err:       caseErr,
				Duration:  elapsed,
			}
			observability.ObserveCase(caseErr == nil, elapsed)

			result := history.CaseResult{
				TestName:  file.Case.TestName,
				TableName: file.Case.TableName,
				Status:    history.StatusPassed,
				Duration:  elapsed,
			}
			if caseErr != nil {
				result.Status = history.StatusFailed
				result.FailureMessage = caseErr.Error()
				caseLogger.Error("case failed",
					slog.String("test_name", file.Case.TestName),
					slog.Any("error", caseErr),
				)
			} else {
				caseLogger.Info("case passed",
					slog.String("test_name", file.Case.TestName),
					slog.Duration("elapsed", elapsed),
				)
			}
			if err := recorder.RecordCaseResult(caseCtx, runID, result); err != nil {
				caseLogger.Warn("record case result",
					slog.String("test_name", file.Case.TestName),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = group.Wait()

	report := &Report{DatasetID: rc.DatasetID, Outcomes: outcomes}
	status := history.StatusPassed
	if report.Failed() {
		status = history.StatusFailed
	}
	observability.ObserveSuiteRun(!report.Failed())
	if err := recorder.FinishRun(ctx, runID, status); err != nil {
		logger.Warn("record run finish", slog.Any("error", err))
	}

	if err := rc.Cleanup(ctx, h.Warehouse); err != nil {
		logger.Warn("dataset cleanup", slog.Any("error", err))
	}
	return report, nil
}

func (h *Harness) runCase(ctx context.Context, rc RunContext, tc testcase.TestCase) error {
	if !rc.Revalidation {
		if err := h.runPipeline(ctx, rc, tc); err != nil {
			return err
		}
	}
	return ValidateAssertions(ctx, h.Warehouse, tc, h.registry())
}

func (h *Harness) runPipeline(ctx context.Context, rc RunContext, tc testcase.TestCase) error {
	name := tc.Runner
	if name == "" {
		name = DefaultRunnerName
	}
	run, ok := h.Runners[name]
	if !ok {
		return fmt.Errorf("no runner registered for %q", name)
	}

	start := h.now()()
	result, err := run.Run(ctx, pipeline.RunRequest{
		TestName:          tc.TestName,
		DatasetID:         rc.DatasetID,
		TableName:         tc.TableName,
		InputPattern:      tc.InputPattern,
		MergeStrategy:     tc.VariantMergeStrategy,
		WorkerMachineType: tc.WorkerMachineType,
		MaxNumWorkers:     tc.MaxNumWorkers,
		NumWorkers:        tc.NumWorkers,
	})
	observability.ObservePipelineWait(h.now()().Sub(start))
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	dataFiles := result.DataFiles
	if len(dataFiles) == 0 {
		dataFiles, err = h.listTableFiles(ctx, rc.DatasetID, tc.TableName)
		if err != nil {
			return err
		}
	}
	if len(dataFiles) == 0 {
		return fmt.Errorf("pipeline produced no output files for table %q", tc.TableName)
	}

	if err := h.Warehouse.RegisterTable(ctx, rc.DatasetID, tc.TableName, dataFiles); err != nil {
		return fmt.Errorf("register table %q: %w", tc.TableName, err)
	}
	return nil
}

// listTableFiles discovers pipeline output by prefix when the runner
// does not report the written objects, as the remote runner cannot.
func (h *Harness) listTableFiles(ctx context.Context, datasetID, tableName string) ([]string, error) {
	if h.Store == nil {
		return nil, fmt.Errorf("pipeline reported no output files and no object store is configured")
	}
	prefix, err := storage.BuildTablePrefix(datasetID, tableName)
	if err != nil {
		return nil, err
	}
	objects, err := h.Store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list table files under %q: %w", prefix, err)
	}
	keys := make([]string, 0, len(objects))
	for _, object := range objects {
		keys = append(keys, object.Key)
	}
	return keys, nil
}

func (h *Harness) registry() testcase.Registry {
	if h.Registry != nil {
		return h.Registry
	}
	return testcase.DefaultRegistry()
}

func (h *Harness) recorder() history.Recorder {
	if h.History != nil {
		return h.History
	}
	return history.NopRecorder{}
}

func (h *Harness) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (h *Harness) parallelism(opts Options) int {
	if opts.Parallelism > 0 {
		return opts.Parallelism
	}
	if h.Parallelism > 0 {
		return h.Parallelism
	}
	return 1
}

func (h *Harness) now() func() time.Time {
	if h.Now != nil {
		return h.Now
	}
	return time.Now
}
