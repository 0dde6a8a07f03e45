// Package table holds the keyed join and grouping helpers used to turn
// long-format records into wide rows. Tables are plain slices; keys are
// extracted with functions.
package table

import (
	"cmp"
	"fmt"
	"slices"
)

// ConsistencyError reports a key that repeats where the join requires it to
// be unique, which would otherwise multiply rows.
type ConsistencyError struct {
	Table string
	Key   any
	Count int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: key %v appears %d times, want at most 1", e.Table, e.Key, e.Count)
}

// Index maps each row's key to the row, failing on duplicate keys.
func Index[K comparable, V any](name string, rows []V, key func(V) K) (map[K]V, error) {
	idx := make(map[K]V, len(rows))
	counts := make(map[K]int)
	for _, r := range rows {
		k := key(r)
		counts[k]++
		if counts[k] > 1 {
			return nil, &ConsistencyError{Table: name, Key: k, Count: counts[k]}
		}
		idx[k] = r
	}
	return idx, nil
}

// InnerJoin combines the values of a and b present under the same key.
func InnerJoin[K comparable, A, B, R any](a map[K]A, b map[K]B, combine func(A, B) R) map[K]R {
	out := make(map[K]R)
	for k, av := range a {
		if bv, ok := b[k]; ok {
			out[k] = combine(av, bv)
		}
	}
	return out
}

// UnionKeys returns every key present in any of the maps, ascending.
func UnionKeys[K cmp.Ordered, V any](maps ...map[K]V) []K {
	seen := make(map[K]struct{})
	for _, m := range maps {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	keys := make([]K, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Group buckets rows by key, preserving input order within each bucket,
// and returns the keys ascending.
func Group[K cmp.Ordered, V any](rows []V, key func(V) K) ([]K, map[K][]V) {
	groups := make(map[K][]V)
	for _, r := range rows {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	keys := make([]K, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, groups
}
