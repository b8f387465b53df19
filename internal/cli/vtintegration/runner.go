// Package vtintegration implements the vt-integration command line:
// it loads a suite of test case descriptors, hands them to a suite
// runner, and prints the run report.
package vtintegration

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/lynnlangit/gcp-variant-transforms/internal/runner"
	"github.com/lynnlangit/gcp-variant-transforms/internal/testcase"
)

// SuiteRunner executes a loaded suite. *runner.Harness satisfies it.
type SuiteRunner interface {
	RunSuite(ctx context.Context, files []testcase.SuiteFile, opts runner.Options) (*runner.Report, error)
}

type Options struct {
	SuiteDir string
	Runner   SuiteRunner
	Stdout   io.Writer
	Stderr   io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("vt-integration", flag.ContinueOnError)
	fs.SetOutput(stderr)

	suiteDir := fs.String("suite-dir", firstNonEmpty(defaults.SuiteDir, "testdata/integration"), "root directory holding the test case descriptors")
	presubmit := fs.Bool("presubmit", false, "run the presubmit tier instead of the small tier")
	all := fs.Bool("all", false, "run every tier")
	keepTables := fs.Bool("keep-tables", false, "keep the run dataset and its tables after the run")
	revalidationDatasetID := fs.String("revalidation-dataset-id", "", "validate assertions against an existing dataset without launching pipelines")
	parallelism := fs.Int("parallelism", 0, "maximum concurrent cases (0 uses the configured default)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *presubmit && *all {
		_, _ = fmt.Fprintln(stderr, "-presubmit and -all are mutually exclusive")
		writeUsage(stderr)
		return 2
	}
	if defaults.Runner == nil {
		_, _ = fmt.Fprintln(stderr, "no suite runner configured")
		return 1
	}

	tier := testcase.TierSmall
	switch {
	case *presubmit:
		tier = testcase.TierPresubmit
	case *all:
		tier = testcase.TierAll
	}

	files, err := testcase.LoadSuite(testcase.TierPath(*suiteDir, tier))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load suite: %v\n", err)
		return 1
	}

	report, err := defaults.Runner.RunSuite(ctx, files, runner.Options{
		KeepTables:            *keepTables,
		RevalidationDatasetID: *revalidationDatasetID,
		Parallelism:           *parallelism,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "run suite: %v\n", err)
		return 1
	}
	if err := report.Write(stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	if report.Failed() {
		return 1
	}
	return 0
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: vt-integration [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	_, _ = fmt.Fprintln(w, "  -suite-dir <dir>                 descriptor root (default testdata/integration)")
	_, _ = fmt.Fprintln(w, "  -presubmit                       run the presubmit tier")
	_, _ = fmt.Fprintln(w, "  -all                             run every tier")
	_, _ = fmt.Fprintln(w, "  -keep-tables                     keep the run dataset for later revalidation")
	_, _ = fmt.Fprintln(w, "  -revalidation-dataset-id <id>    re-check an existing dataset, skip pipelines")
	_, _ = fmt.Fprintln(w, "  -parallelism <n>                 maximum concurrent cases")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}
