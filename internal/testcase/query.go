package testcase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownQueryAlias marks assertion queries that reference a named
// canonical query absent from the supplied registry.
var ErrUnknownQueryAlias = errors.New("unknown query alias")

// TableNamePlaceholder is substituted with the destination table name when a
// query is resolved.
const TableNamePlaceholder = "{TABLE_NAME}"

// Registry maps canonical query names to their SQL text. The registry is an
// external contract: callers decide which aliases exist.
type Registry map[string]string

// DefaultRegistry returns the canonical named queries every suite may use.
func DefaultRegistry() Registry {
	return Registry{
		"NUM_ROWS_QUERY":  "SELECT COUNT(0) AS num_rows FROM {TABLE_NAME}",
		"SUM_START_QUERY": "SELECT SUM(start_position) AS sum_start FROM {TABLE_NAME}",
		"SUM_END_QUERY":   "SELECT SUM(end_position) AS sum_end FROM {TABLE_NAME}",
	}
}

// Alias references are single upper-snake tokens; literal SQL always contains
// whitespace or lowercase keywords and never matches.
var aliasPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ResolveQuery turns an assertion's query fragments into executable SQL. The
// fragments are joined with single spaces; a query that consists of exactly
// one alias token is replaced with the registry's SQL, failing with
// ErrUnknownQueryAlias when the registry has no such entry. Every occurrence
// of TableNamePlaceholder is then replaced with the literal table name.
func ResolveQuery(assertion Assertion, tableName string, registry Registry) (string, error) {
	if strings.TrimSpace(tableName) == "" {
		return "", fmt.Errorf("table name is required")
	}
	joined := strings.Join(assertion.Query, " ")
	if aliasPattern.MatchString(joined) {
		canonical, ok := registry[joined]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownQueryAlias, joined)
		}
		joined = canonical
	}
	return strings.ReplaceAll(joined, TableNamePlaceholder, tableName), nil
}
