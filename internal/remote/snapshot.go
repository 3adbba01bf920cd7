package remote

import (
	"encoding/json"
	"log/slog"
	"sort"
)

// Snapshot is the full content of one collection at a point in time.
type Snapshot struct {
	Collection string                     `json:"collection"`
	Children   map[string]json.RawMessage `json:"children"`
}

// Len returns the number of children.
func (s Snapshot) Len() int {
	return len(s.Children)
}

// Keys returns the child keys in ascending order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Children))
	for k := range s.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each decodes every child into a T and calls fn in key order. Children that
// don't decode are logged and skipped.
func Each[T any](s Snapshot, fn func(key string, v T)) {
	for _, k := range s.Keys() {
		var v T
		if err := json.Unmarshal(s.Children[k], &v); err != nil {
			slog.Warn("skipping malformed record", "collection", s.Collection, "key", k, "error", err)
			continue
		}
		fn(k, v)
	}
}
