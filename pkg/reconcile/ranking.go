package reconcile

// Ranking is the configured source priority order used to break ties between
// disagreeing sources. Higher priority wins.
type Ranking struct {
	priorities map[string]int
}

// NewRanking builds a ranking from an ordered list of source names, most
// authoritative first. Sources not in the list rank below every listed one.
func NewRanking(names []string) Ranking {
	priorities := make(map[string]int, len(names))
	for i, name := range names {
		priorities[name] = len(names) - i
	}
	return Ranking{priorities: priorities}
}

// NewRankingFromPriorities builds a ranking from explicit per-source
// priority values.
func NewRankingFromPriorities(priorities map[string]int) Ranking {
	copied := make(map[string]int, len(priorities))
	for name, p := range priorities {
		copied[name] = p
	}
	return Ranking{priorities: copied}
}

// Priority returns a source's priority. Unknown sources return 0.
func (r Ranking) Priority(source string) int {
	return r.priorities[source]
}
