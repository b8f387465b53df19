package runner

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/lynnlangit/gcp-variant-transforms/internal/observability"
	"github.com/lynnlangit/gcp-variant-transforms/internal/testcase"
	"github.com/lynnlangit/gcp-variant-transforms/internal/warehouse"
)

// ValidateAssertions resolves and runs every assertion of a test case
// against the warehouse. Each query must return exactly one row whose
// column set matches the expected result.
func ValidateAssertions(ctx context.Context, wh warehouse.Warehouse, tc testcase.TestCase, registry testcase.Registry) error {
	for i, assertion := range tc.AssertionConfigs {
		if err := validateAssertion(ctx, wh, assertion, tc.TableName, registry); err != nil {
			observability.ObserveAssertion(false)
			return fmt.Errorf("assertion %d: %w", i, err)
		}
		observability.ObserveAssertion(true)
	}
	return nil
}

func validateAssertion(ctx context.Context, wh warehouse.Warehouse, assertion testcase.Assertion, tableName string, registry testcase.Registry) error {
	query, err := testcase.ResolveQuery(assertion, tableName, registry)
	if err != nil {
		return err
	}

	result, err := wh.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("run query %q: %w", query, err)
	}
	if len(result.Rows) != 1 {
		return fmt.Errorf("query %q returned %d rows, want exactly 1", query, len(result.Rows))
	}
	row := result.Rows[0]
	if len(row) != len(assertion.ExpectedResult) {
		return fmt.Errorf("query %q returned %d columns, want %d", query, len(row), len(assertion.ExpectedResult))
	}

	for key, expected := range assertion.ExpectedResult {
		index := columnIndex(result.Columns, key)
		if index < 0 {
			return fmt.Errorf("query %q returned no column %q", query, key)
		}
		actual := row[index]
		if !valuesEqual(expected, actual) {
			return fmt.Errorf("column %q: expected %v, got %v", key, expected, actual)
		}
	}
	return nil
}

func columnIndex(columns []string, name string) int {
	for i, column := range columns {
		if column == name {
			return i
		}
	}
	return -1
}

// valuesEqual compares a decoded JSON expectation against a scanned
// SQL value. JSON numbers arrive as float64 while the warehouse
// returns the driver's native integer and float widths, so numeric
// values compare by magnitude.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	expectedNum, expectedOK := asFloat(expected)
	actualNum, actualOK := asFloat(actual)
	if expectedOK && actualOK {
		return math.Abs(expectedNum-actualNum) <= 1e-9*math.Max(1, math.Abs(expectedNum))
	}

	switch typedExpected := expected.(type) {
	case string:
		typedActual, ok := actual.(string)
		return ok && typedExpected == typedActual
	case bool:
		typedActual, ok := actual.(bool)
		return ok && typedExpected == typedActual
	default:
		return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
	}
}

func asFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case *big.Int:
		// DuckDB sums BIGINT columns into HUGEINT, which the driver
		// scans as *big.Int.
		if typed == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(typed).Float64()
		return f, true
	default:
		return 0, false
	}
}
