package pipeline

import (
	"fmt"
	"strings"

	"github.com/lynnlangit/gcp-variant-transforms/internal/vcf"
)

// Merge strategy names accepted in test descriptors. An empty strategy means
// no merging.
const (
	MergeNone        = "NONE"
	MergeMoveToCalls = "MOVE_TO_CALLS"
)

// MergeVariants applies the named merge strategy. MOVE_TO_CALLS collapses
// variants that share a site key into one row: calls are concatenated in
// input order, names and filters are unioned, and the first non-zero quality
// wins. Row order follows the first occurrence of each key.
func MergeVariants(strategy string, variants []vcf.Variant) ([]vcf.Variant, error) {
	switch strings.TrimSpace(strategy) {
	case "", MergeNone:
		return variants, nil
	case MergeMoveToCalls:
		return moveToCalls(variants), nil
	default:
		return nil, fmt.Errorf("unknown variant merge strategy %q", strategy)
	}
}

func moveToCalls(variants []vcf.Variant) []vcf.Variant {
	merged := map[string]*vcf.Variant{}
	order := make([]string, 0, len(variants))

	for _, variant := range variants {
		key := variant.Key()
		existing, ok := merged[key]
		if !ok {
			copied := variant
			copied.Calls = append([]vcf.Call(nil), variant.Calls...)
			merged[key] = &copied
			order = append(order, key)
			continue
		}
		existing.Calls = append(existing.Calls, variant.Calls...)
		existing.Names = unionSemicolonList(existing.Names, variant.Names)
		existing.Filters = unionSemicolonList(existing.Filters, variant.Filters)
		if existing.Quality == 0 {
			existing.Quality = variant.Quality
		}
	}

	result := make([]vcf.Variant, 0, len(order))
	for _, key := range order {
		result = append(result, *merged[key])
	}
	return result
}

func unionSemicolonList(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	seen := map[string]bool{}
	parts := make([]string, 0)
	for _, value := range append(strings.Split(a, ";"), strings.Split(b, ";")...) {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		parts = append(parts, value)
	}
	return strings.Join(parts, ";")
}
