package testcase

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDescriptor(t *testing.T, dir, name, testName string) {
	t.Helper()
	doc := `{
  "test_name": "` + testName + `",
  "table_name": "` + strings.ReplaceAll(testName, "-", "_") + `",
  "input_pattern": "small_tests/valid-4.2/*.vcf",
  "assertion_configs": [
    {"query": ["NUM_ROWS_QUERY"], "expected_result": {"num_rows": 1}}
  ]
}`
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoadSuiteCollectsDescriptorsInPathOrder(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, filepath.Join(root, "b_group"), "case.json", "case-b")
	writeDescriptor(t, root, "a_case.json", "case-a")
	writeDescriptor(t, root, "notes.txt", "ignored")

	files, err := LoadSuite(root)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}
	if files[0].Case.TestName != "case-a" || files[1].Case.TestName != "case-b" {
		t.Fatalf("order = %q, %q", files[0].Case.TestName, files[1].Case.TestName)
	}
}

func TestLoadSuiteEmptyDirectoryFails(t *testing.T) {
	if _, err := LoadSuite(t.TempDir()); err == nil {
		t.Fatal("expected error for directory with no descriptors")
	}
}

func TestLoadSuiteNamesOffendingFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := LoadSuite(root)
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("error = %v, want ErrMalformedInput", err)
	}
	if !strings.Contains(err.Error(), "broken.json") {
		t.Fatalf("error %q does not name the file", err)
	}
}

func TestTierPath(t *testing.T) {
	if got := TierPath("suite", TierSmall); got != filepath.Join("suite", "presubmit_tests", "small_tests") {
		t.Fatalf("TierPath(small) = %q", got)
	}
	if got := TierPath("suite", TierPresubmit); got != filepath.Join("suite", "presubmit_tests") {
		t.Fatalf("TierPath(presubmit) = %q", got)
	}
	if got := TierPath("suite", TierAll); got != "suite" {
		t.Fatalf("TierPath(all) = %q", got)
	}
}
