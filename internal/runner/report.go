package runner

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// CaseOutcome is the result of one test case within a suite run.
type CaseOutcome struct {
	TestName  string
	TableName string
	Err       error
	Duration  time.Duration
}

// Report aggregates the outcomes of a suite run in input order.
type Report struct {
	DatasetID string
	Outcomes  []CaseOutcome
}

func (r *Report) Failed() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			return true
		}
	}
	return false
}

func (r *Report) FailureCount() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			count++
		}
	}
	return count
}

// Write renders one status line per case followed by a detail block
// per failure.
func (r *Report) Write(w io.Writer) error {
	for _, outcome := range r.Outcomes {
		status := "ok"
		if outcome.Err != nil {
			status = "FAIL"
		}
		if _, err := fmt.Fprintf(w, "%s ... %s (%.1fs)\n", outcome.TestName, status, outcome.Duration.Seconds()); err != nil {
			return err
		}
	}

	for _, outcome := range r.Outcomes {
		if outcome.Err == nil {
			continue
		}
		block := fmt.Sprintf("\n%s\nFAIL: %s\n%s\n%s\n",
			strings.Repeat("=", 70),
			outcome.TestName,
			strings.Repeat("-", 70),
			outcome.Err.Error(),
		)
		if _, err := io.WriteString(w, block); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("\nran %d cases in dataset %s, %d failed\n",
		len(r.Outcomes), r.DatasetID, r.FailureCount())
	_, err := io.WriteString(w, summary)
	return err
}
