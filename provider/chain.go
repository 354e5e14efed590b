package provider

import "sort"

// chainEntry is the subset of registration state the chain orders on.
type chainEntry struct {
	id       string
	priority int
	weight   int
	enabled  bool
}

// buildChain produces the canonical fallback order: enabled providers
// sorted by priority descending, then weight descending, then id
// ascending so equal configurations stay deterministic.
func buildChain(entries []chainEntry) []string {
	candidates := make([]chainEntry, 0, len(entries))
	for _, e := range entries {
		if e.enabled {
			candidates = append(candidates, e)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		return a.id < b.id
	})

	chain := make([]string, len(candidates))
	for i, e := range candidates {
		chain[i] = e.id
	}
	return chain
}
