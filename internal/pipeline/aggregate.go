package pipeline

import (
	"sort"
	"sync"

	"go-metadata-extractor/internal/model"
)

// Aggregator counts routed rows per destination key
type Aggregator struct {
	mu     sync.Mutex
	counts map[model.RoutingKey]int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[model.RoutingKey]int64)}
}

// Add counts every row of a batch under its routing key.
func (a *Aggregator) Add(rows []model.ExtractedRow) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range rows {
		a.counts[r.Key]++
	}
}

// Len is the number of distinct destinations seen.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.counts)
}

// Results returns all destination counts, unsorted.
func (a *Aggregator) Results() []model.DestinationCount {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.DestinationCount, 0, len(a.counts))
	for k, n := range a.counts {
		out = append(out, model.DestinationCount{Key: k, Rows: n})
	}
	return out
}

// Top returns the n destinations with the most rows.
func (a *Aggregator) Top(n int) []model.DestinationCount {
	results := SortAggregatedResults(a.Results(), false)
	if n >= 0 && len(results) > n {
		results = results[:n]
	}
	return results
}

// SortAggregatedResults orders by row count, then by key so equal counts
// sort deterministically.
func SortAggregatedResults(results []model.DestinationCount, ascending bool) []model.DestinationCount {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Rows != results[j].Rows {
			if ascending {
				return results[i].Rows < results[j].Rows
			}
			return results[i].Rows > results[j].Rows
		}
		return results[i].Key.String() < results[j].Key.String()
	})
	return results
}
