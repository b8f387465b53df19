package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
)

// ExpandPattern resolves an input file pattern against the object store and
// returns the matching objects in key order. Patterns may carry a scheme and
// bucket prefix (gs://bucket/..., s3://bucket/...) which is stripped, since
// the store is already scoped to one bucket. A pattern that matches nothing
// is an error: the pipeline would have no input to read.
func ExpandPattern(ctx context.Context, store ObjectStore, pattern string) ([]ObjectInfo, error) {
	key := stripBucketURI(strings.TrimSpace(pattern))
	if key == "" {
		return nil, fmt.Errorf("input pattern is required")
	}

	metaIndex := strings.IndexAny(key, "*?[")
	if metaIndex < 0 {
		info, err := store.Stat(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("stat input %q: %w", key, err)
		}
		return []ObjectInfo{info}, nil
	}

	prefix := key[:metaIndex]
	if slash := strings.LastIndex(prefix, "/"); slash >= 0 {
		prefix = prefix[:slash+1]
	} else {
		prefix = ""
	}

	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list objects with prefix %q: %w", prefix, err)
	}

	matched := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		ok, err := path.Match(key, object.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid input pattern %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, object)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("input pattern %q matched no objects", pattern)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })
	return matched, nil
}

func stripBucketURI(pattern string) string {
	schemeEnd := strings.Index(pattern, "://")
	if schemeEnd < 0 {
		return strings.TrimPrefix(pattern, "/")
	}
	rest := pattern[schemeEnd+len("://"):]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return rest[slash+1:]
	}
	return ""
}
