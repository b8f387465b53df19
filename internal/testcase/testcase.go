package testcase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformedInput marks descriptors that are not well-formed JSON.
	ErrMalformedInput = errors.New("malformed input")
	// ErrSchemaViolation marks descriptors that are valid JSON but miss a
	// required field or carry a field of the wrong shape.
	ErrSchemaViolation = errors.New("schema violation")
)

// TestCase is a declarative integration-test descriptor. It names a test, a
// destination table, an input file pattern and the pipeline parameters needed
// to populate the table, plus the assertions that validate the result. The
// worker sizing parameters are string-encoded and passed through opaquely to
// the pipeline backend.
type TestCase struct {
	TestName             string      `json:"test_name"`
	TableName            string      `json:"table_name"`
	InputPattern         string      `json:"input_pattern"`
	VariantMergeStrategy string      `json:"variant_merge_strategy,omitempty"`
	Runner               string      `json:"runner,omitempty"`
	WorkerMachineType    string      `json:"worker_machine_type,omitempty"`
	MaxNumWorkers        string      `json:"max_num_workers,omitempty"`
	NumWorkers           string      `json:"num_workers,omitempty"`
	AssertionConfigs     []Assertion `json:"assertion_configs"`
}

// Assertion pairs one SQL query, stored as ordered fragments, with the scalar
// result it is expected to produce.
type Assertion struct {
	Query          []string       `json:"query"`
	ExpectedResult map[string]any `json:"expected_result"`
}

// Parse deserializes a descriptor document. Invalid JSON fails with
// ErrMalformedInput; a structurally valid document that violates the
// descriptor shape fails with ErrSchemaViolation.
func Parse(data []byte) (TestCase, error) {
	var tc TestCase
	if err := json.Unmarshal(data, &tc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return TestCase{}, fmt.Errorf("%w: field %q has wrong type: %v", ErrSchemaViolation, typeErr.Field, err)
		}
		return TestCase{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if err := tc.Validate(); err != nil {
		return TestCase{}, err
	}
	return tc, nil
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) (TestCase, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return TestCase{}, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(data)
}

// Validate checks the descriptor invariants: the identifying fields are
// non-empty and every assertion is well-formed.
func (tc TestCase) Validate() error {
	if tc.TestName == "" {
		return fmt.Errorf("%w: test_name is required", ErrSchemaViolation)
	}
	if tc.TableName == "" {
		return fmt.Errorf("%w: table_name is required", ErrSchemaViolation)
	}
	if tc.InputPattern == "" {
		return fmt.Errorf("%w: input_pattern is required", ErrSchemaViolation)
	}
	if len(tc.AssertionConfigs) == 0 {
		return fmt.Errorf("%w: assertion_configs must be a non-empty sequence", ErrSchemaViolation)
	}
	for i, assertion := range tc.AssertionConfigs {
		if err := assertion.validate(); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func (a Assertion) validate() error {
	if len(a.Query) == 0 {
		return fmt.Errorf("%w: query must be a non-empty sequence of strings", ErrSchemaViolation)
	}
	if a.ExpectedResult == nil {
		return fmt.Errorf("%w: expected_result mapping is required", ErrSchemaViolation)
	}
	return nil
}
