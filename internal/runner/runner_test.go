package runner

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lynnlangit/gcp-variant-transforms/internal/history"
	"github.com/lynnlangit/gcp-variant-transforms/internal/pipeline"
	"github.com/lynnlangit/gcp-variant-transforms/internal/storage"
	"github.com/lynnlangit/gcp-variant-transforms/internal/testcase"
	"github.com/lynnlangit/gcp-variant-transforms/internal/warehouse"
)

type stubWarehouse struct {
	mu          sync.Mutex
	created     []string
	dropped     []string
	registered  map[string][]string
	queries     []string
	queryResult warehouse.Result
	queryErr    error
}

func newStubWarehouse(result warehouse.Result) *stubWarehouse {
	return &stubWarehouse{registered: map[string][]string{}, queryResult: result}
}

func (w *stubWarehouse) CreateDataset(_ context.Context, datasetID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.created = append(w.created, datasetID)
	return nil
}

func (w *stubWarehouse) RegisterTable(_ context.Context, datasetID, tableName string, dataFiles []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.registered[datasetID+"/"+tableName] = dataFiles
	return nil
}

func (w *stubWarehouse) Query(_ context.Context, sqlText string) (warehouse.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, sqlText)
	if w.queryErr != nil {
		return warehouse.Result{}, w.queryErr
	}
	return w.queryResult, nil
}

func (w *stubWarehouse) ListTables(context.Context, string) ([]string, error) { return nil, nil }

func (w *stubWarehouse) DropDataset(_ context.Context, datasetID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropped = append(w.dropped, datasetID)
	return nil
}

func (w *stubWarehouse) Close() error { return nil }

type stubPipelineRunner struct {
	mu       sync.Mutex
	requests []pipeline.RunRequest
	result   pipeline.RunResult
	err      error
}

func (r *stubPipelineRunner) Run(_ context.Context, request pipeline.RunRequest) (pipeline.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, request)
	if r.err != nil {
		return pipeline.RunResult{}, r.err
	}
	return r.result, nil
}

type stubRecorder struct {
	mu       sync.Mutex
	dataset  string
	results  []history.CaseResult
	finished history.RunStatus
	startErr error
}

func (r *stubRecorder) StartRun(_ context.Context, datasetID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return 0, r.startErr
	}
	r.dataset = datasetID
	return 42, nil
}

func (r *stubRecorder) RecordCaseResult(_ context.Context, runID int64, result history.CaseResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if runID != 42 {
		return errors.New("unexpected run id")
	}
	r.results = append(r.results, result)
	return nil
}

func (r *stubRecorder) FinishRun(_ context.Context, _ int64, status history.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = status
	return nil
}

type fakeStore struct {
	objects map[string]string
}

func (s *fakeStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, errors.New("not implemented")
}

func (s *fakeStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (s *fakeStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	infos := make([]storage.ObjectInfo, 0)
	for key, content := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, storage.ObjectInfo{Key: key, Size: int64(len(content))})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *fakeStore) Delete(context.Context, string) error { return nil }

func numRowsCase(name string) testcase.SuiteFile {
	return testcase.SuiteFile{
		Path: name + ".json",
		Case: testcase.TestCase{
			TestName:     name,
			TableName:    strings.ReplaceAll(name, "-", "_"),
			InputPattern: "gs://bucket/input/" + name + ".vcf",
			AssertionConfigs: []testcase.Assertion{
				{
					Query:          []string{"NUM_ROWS_QUERY"},
					ExpectedResult: map[string]any{"num_rows": float64(13)},
				},
			},
		},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.August, 26, 10, 15, 0, 0, time.UTC)
	}
}

func newHarness(wh *stubWarehouse, run pipeline.Runner) *Harness {
	return &Harness{
		Warehouse: wh,
		Runners:   map[string]pipeline.Runner{DefaultRunnerName: run},
		Now:       fixedClock(),
	}
}

func TestRunSuitePassesAndCleansUp(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{
		DataFiles: []string{"integration_tests_20260826_101500/test_small/part-00000.parquet"},
	}}
	harness := newHarness(wh, run)

	report, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")}, Options{})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	if report.Failed() {
		t.Fatalf("report failed: %+v", report.Outcomes)
	}
	if report.DatasetID != "integration_tests_20260826_101500" {
		t.Fatalf("DatasetID = %q", report.DatasetID)
	}
	if len(wh.created) != 1 || wh.created[0] != report.DatasetID {
		t.Fatalf("created datasets = %v", wh.created)
	}
	files := wh.registered[report.DatasetID+"/test_small"]
	if len(files) != 1 {
		t.Fatalf("registered files = %v", files)
	}
	if len(wh.dropped) != 1 || wh.dropped[0] != report.DatasetID {
		t.Fatalf("dropped datasets = %v", wh.dropped)
	}
	if len(run.requests) != 1 {
		t.Fatalf("pipeline runs = %d", len(run.requests))
	}
	if run.requests[0].TableName != "test_small" {
		t.Fatalf("pipeline TableName = %q", run.requests[0].TableName)
	}
}

func TestRunSuiteReportsAssertionFailure(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(12)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{DataFiles: []string{"d/t/part-00000.parquet"}}}
	harness := newHarness(wh, run)

	report, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")}, Options{})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	if !report.Failed() {
		t.Fatal("report should have failed")
	}
	outcome := report.Outcomes[0]
	if outcome.Err == nil || !strings.Contains(outcome.Err.Error(), "num_rows") {
		t.Fatalf("outcome error = %v", outcome.Err)
	}
	// A failing case still tears down the run dataset.
	if len(wh.dropped) != 1 {
		t.Fatalf("dropped datasets = %v", wh.dropped)
	}
}

func TestRunSuiteKeepTablesSkipsCleanup(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{DataFiles: []string{"d/t/part-00000.parquet"}}}
	harness := newHarness(wh, run)

	_, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")}, Options{KeepTables: true})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	if len(wh.dropped) != 0 {
		t.Fatalf("dropped datasets = %v", wh.dropped)
	}
}

func TestRunSuiteRevalidationSkipsPipelines(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	run := &stubPipelineRunner{}
	harness := newHarness(wh, run)

	report, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")},
		Options{KeepTables: true, RevalidationDatasetID: "integration_tests_20260801_090000"})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	if report.Failed() {
		t.Fatalf("report failed: %+v", report.Outcomes)
	}
	if report.DatasetID != "integration_tests_20260801_090000" {
		t.Fatalf("DatasetID = %q", report.DatasetID)
	}
	if len(run.requests) != 0 {
		t.Fatalf("pipeline runs = %d, want 0", len(run.requests))
	}
	if len(wh.created) != 0 {
		t.Fatalf("created datasets = %v, want none", wh.created)
	}
	if len(wh.registered) != 0 {
		t.Fatalf("registered tables = %v, want none", wh.registered)
	}
}

func TestRunSuiteUnknownRunner(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	harness := newHarness(wh, &stubPipelineRunner{})

	file := numRowsCase("test-remote")
	file.Case.Runner = "DataflowRunner"

	report, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{file}, Options{})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	outcome := report.Outcomes[0]
	if outcome.Err == nil || !strings.Contains(outcome.Err.Error(), "DataflowRunner") {
		t.Fatalf("outcome error = %v", outcome.Err)
	}
}

func TestRunSuiteRecordsHistory(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(12)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{DataFiles: []string{"d/t/part-00000.parquet"}}}
	recorder := &stubRecorder{}
	harness := newHarness(wh, run)
	harness.History = recorder

	_, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")}, Options{})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	if recorder.dataset != "integration_tests_20260826_101500" {
		t.Fatalf("recorded dataset = %q", recorder.dataset)
	}
	if len(recorder.results) != 1 {
		t.Fatalf("recorded results = %d", len(recorder.results))
	}
	result := recorder.results[0]
	if result.TestName != "test-small" || result.Status != history.StatusFailed {
		t.Fatalf("recorded result = %+v", result)
	}
	if result.FailureMessage == "" {
		t.Fatal("recorded result should carry the failure message")
	}
	if recorder.finished != history.StatusFailed {
		t.Fatalf("finished status = %q", recorder.finished)
	}
}

func TestRunSuiteDropsDatasetWhenRunStartFails(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{DataFiles: []string{"d/t/part-00000.parquet"}}}
	harness := newHarness(wh, run)
	harness.History = &stubRecorder{startErr: errors.New("history db down")}

	_, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")}, Options{})
	if err == nil || !strings.Contains(err.Error(), "record run start") {
		t.Fatalf("RunSuite() error = %v, want run start failure", err)
	}
	if len(wh.created) != 1 {
		t.Fatalf("created = %v", wh.created)
	}
	if len(wh.dropped) != 1 || wh.dropped[0] != wh.created[0] {
		t.Fatalf("dropped = %v, want the created dataset", wh.dropped)
	}
	if len(run.requests) != 0 {
		t.Fatalf("requests = %v, want no pipeline runs", run.requests)
	}
}

func TestRunSuitePreservesInputOrderUnderParallelism(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{DataFiles: []string{"d/t/part-00000.parquet"}}}
	harness := newHarness(wh, run)
	harness.Parallelism = 4

	files := []testcase.SuiteFile{
		numRowsCase("test-a"),
		numRowsCase("test-b"),
		numRowsCase("test-c"),
		numRowsCase("test-d"),
	}
	report, err := harness.RunSuite(context.Background(), files, Options{})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	for i, file := range files {
		if report.Outcomes[i].TestName != file.Case.TestName {
			t.Fatalf("Outcomes[%d].TestName = %q, want %q", i, report.Outcomes[i].TestName, file.Case.TestName)
		}
	}
}

func TestRunSuiteListsStoreWhenRunnerReportsNoFiles(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{Columns: []string{"num_rows"}, Rows: [][]any{{int64(13)}}})
	run := &stubPipelineRunner{result: pipeline.RunResult{JobID: "job-1"}}
	harness := newHarness(wh, run)
	harness.Store = &fakeStore{objects: map[string]string{
		"integration_tests_20260826_101500/test_small/part-00000.parquet":  "a",
		"integration_tests_20260826_101500/test_small/part-00001.parquet":  "b",
		"integration_tests_20260826_101500/other_table/part-00000.parquet": "c",
	}}

	report, err := harness.RunSuite(context.Background(), []testcase.SuiteFile{numRowsCase("test-small")}, Options{})
	if err != nil {
		t.Fatalf("RunSuite() error = %v", err)
	}
	if report.Failed() {
		t.Fatalf("report failed: %+v", report.Outcomes)
	}
	files := wh.registered["integration_tests_20260826_101500/test_small"]
	want := []string{
		"integration_tests_20260826_101500/test_small/part-00000.parquet",
		"integration_tests_20260826_101500/test_small/part-00001.parquet",
	}
	if len(files) != len(want) {
		t.Fatalf("registered files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("registered files = %v, want %v", files, want)
		}
	}
}

func TestRunSuiteEmptySuite(t *testing.T) {
	wh := newStubWarehouse(warehouse.Result{})
	harness := newHarness(wh, &stubPipelineRunner{})

	if _, err := harness.RunSuite(context.Background(), nil, Options{}); err == nil {
		t.Fatal("RunSuite() expected error for empty suite")
	}
}
