package statistics

import "sort"

// Entry is a named summary, typically one run configuration.
type Entry struct {
	Name    string  `json:"name"`
	Summary Summary `json:"summary"`
	Speedup float64 `json:"speedup"`
}

// RankingCalculator orders configurations by median run time.
type RankingCalculator struct {
	topN int
}

// RankingOption configures the RankingCalculator.
type RankingOption func(*RankingCalculator)

// WithTopN limits the ranking to the n fastest entries.
func WithTopN(n int) RankingOption {
	return func(c *RankingCalculator) {
		c.topN = n
	}
}

// NewRankingCalculator creates a new RankingCalculator.
func NewRankingCalculator(opts ...RankingOption) *RankingCalculator {
	c := &RankingCalculator{
		topN: 0, // 0 means no limit
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rank sorts entries fastest first and fills in their speedup relative to
// baseline. Entries with equal medians keep their input order. A zero
// baseline leaves Speedup at zero.
func (c *RankingCalculator) Rank(entries []Entry, baseline Summary) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Summary.Median < out[j].Summary.Median
	})

	if c.topN > 0 && len(out) > c.topN {
		out = out[:c.topN]
	}
	if baseline.Median > 0 {
		for i := range out {
			out[i].Speedup = out[i].Summary.Speedup(baseline)
		}
	}
	return out
}
