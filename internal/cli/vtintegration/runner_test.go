package vtintegration

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lynnlangit/gcp-variant-transforms/internal/runner"
	"github.com/lynnlangit/gcp-variant-transforms/internal/testcase"
)

type fakeSuiteRunner struct {
	files   []testcase.SuiteFile
	opts    runner.Options
	report  *runner.Report
	err     error
	invoked bool
}

func (f *fakeSuiteRunner) RunSuite(_ context.Context, files []testcase.SuiteFile, opts runner.Options) (*runner.Report, error) {
	f.invoked = true
	f.files = files
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

const descriptorDoc = `{
  "test_name": "test-small",
  "table_name": "test_small",
  "input_pattern": "gs://bucket/input/small.vcf",
  "assertion_configs": [
    {"query": ["NUM_ROWS_QUERY"], "expected_result": {"num_rows": 13}}
  ]
}`

func writeSuite(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	smallDir := filepath.Join(root, "presubmit_tests", "small_tests")
	if err := os.MkdirAll(smallDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(smallDir, name+".json"), []byte(descriptorDoc), 0o644); err != nil {
			t.Fatalf("write descriptor: %v", err)
		}
	}
	return root
}

func TestRunPassingSuite(t *testing.T) {
	root := writeSuite(t, "small")
	fake := &fakeSuiteRunner{report: &runner.Report{
		DatasetID: "integration_tests_20260826_101500",
		Outcomes:  []runner.CaseOutcome{{TestName: "test-small"}},
	}}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-suite-dir", root}, Options{
		Runner: fake,
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !fake.invoked {
		t.Fatal("suite runner was not invoked")
	}
	if len(fake.files) != 1 || fake.files[0].Case.TestName != "test-small" {
		t.Fatalf("loaded files = %+v", fake.files)
	}
	if !bytes.Contains(stdout.Bytes(), []byte("test-small ... ok")) {
		t.Fatalf("report missing from stdout:\n%s", stdout.String())
	}
}

func TestRunFailingSuiteExitsNonzero(t *testing.T) {
	root := writeSuite(t, "small")
	fake := &fakeSuiteRunner{report: &runner.Report{
		DatasetID: "integration_tests_20260826_101500",
		Outcomes:  []runner.CaseOutcome{{TestName: "test-small", Err: errors.New("boom")}},
	}}

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-suite-dir", root}, Options{Runner: fake, Stdout: &stdout})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !bytes.Contains(stdout.Bytes(), []byte("FAIL: test-small")) {
		t.Fatalf("failure block missing:\n%s", stdout.String())
	}
}

func TestRunForwardsRevalidationFlags(t *testing.T) {
	root := writeSuite(t, "small")
	fake := &fakeSuiteRunner{report: &runner.Report{Outcomes: []runner.CaseOutcome{{TestName: "test-small"}}}}

	code := Run(context.Background(), []string{
		"-suite-dir", root,
		"-keep-tables",
		"-revalidation-dataset-id", "integration_tests_20260801_090000",
		"-parallelism", "8",
	}, Options{Runner: fake})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !fake.opts.KeepTables {
		t.Fatal("KeepTables flag not forwarded")
	}
	if fake.opts.RevalidationDatasetID != "integration_tests_20260801_090000" {
		t.Fatalf("RevalidationDatasetID = %q", fake.opts.RevalidationDatasetID)
	}
	if fake.opts.Parallelism != 8 {
		t.Fatalf("Parallelism = %d", fake.opts.Parallelism)
	}
}

func TestRunTierFlagsAreExclusive(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-presubmit", "-all"}, Options{
		Runner: &fakeSuiteRunner{},
		Stderr: &stderr,
	})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected usage output on stderr")
	}
}

func TestRunAllTierWalksWholeSuite(t *testing.T) {
	root := writeSuite(t, "small")
	largeDir := filepath.Join(root, "presubmit_tests", "large_tests")
	if err := os.MkdirAll(largeDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(largeDir, "large.json"), []byte(descriptorDoc), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}

	fake := &fakeSuiteRunner{report: &runner.Report{Outcomes: []runner.CaseOutcome{{TestName: "test-small"}}}}
	code := Run(context.Background(), []string{"-suite-dir", root, "-all"}, Options{Runner: fake})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(fake.files) != 2 {
		t.Fatalf("loaded %d descriptors, want 2", len(fake.files))
	}
}

func TestRunMissingSuiteDir(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-suite-dir", filepath.Join(t.TempDir(), "nope")}, Options{
		Runner: &fakeSuiteRunner{},
		Stderr: &stderr,
	})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stderr.Len() == 0 {
		t.Fatal("expected load error on stderr")
	}
}
