package metrics

import (
	"sort"
	"strings"
)

// ErrorBucket is the aggregated failure count for one error class.
type ErrorBucket struct {
	Class string
	Count uint64
}

// FlattenErrorCounters extracts every counter named prefix+class into sorted
// rows. Rows are sorted by descending count, then by class for stability.
func FlattenErrorCounters(counters map[string]uint64, prefix string) []ErrorBucket {
	if len(counters) == 0 {
		return nil
	}
	rows := make([]ErrorBucket, 0)
	for name, count := range counters {
		if !strings.HasPrefix(name, prefix) || count == 0 {
			continue
		}
		class := strings.TrimPrefix(name, prefix)
		if class == "" {
			continue
		}
		rows = append(rows, ErrorBucket{Class: class, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Class < rows[j].Class
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
