package testcase

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Tier selects how much of a suite directory tree is loaded. The default is
// the small presubmit set; wider tiers include everything beneath them.
type Tier int

const (
	TierSmall Tier = iota
	TierPresubmit
	TierAll
)

// SuiteFile is one parsed descriptor together with the path it came from.
type SuiteFile struct {
	Path string
	Case TestCase
}

// TierPath returns the directory to scan for the given tier, relative to the
// suite root.
func TierPath(root string, tier Tier) string {
	switch tier {
	case TierPresubmit:
		return filepath.Join(root, "presubmit_tests")
	case TierAll:
		return root
	default:
		return filepath.Join(root, "presubmit_tests", "small_tests")
	}
}

// LoadSuite walks dir and parses every *.json descriptor beneath it, in
// lexical path order. A directory with no descriptors is an error: an empty
// suite almost always means a wrong --suite-dir.
func LoadSuite(dir string) ([]SuiteFile, error) {
	var files []SuiteFile
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read descriptor %q: %w", path, err)
		}
		tc, err := Parse(data)
		if err != nil {
			return fmt.Errorf("descriptor %q: %w", path, err)
		}
		files = append(files, SuiteFile{Path: path, Case: tc})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("found no .json descriptors in directory %q", dir)
	}
	return files, nil
}
