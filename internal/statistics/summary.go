// Package statistics summarises benchmark timings.
package statistics

import (
	"math"
	"sort"
	"time"
)

// Summary describes the distribution of one configuration's run times.
type Summary struct {
	Count  int           `json:"count"`
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Median time.Duration `json:"median_ns"`
	StdDev time.Duration `json:"stddev_ns"`
}

// SummaryCalculator computes summaries of run times.
type SummaryCalculator struct {
	warmup int
}

// SummaryOption configures the SummaryCalculator.
type SummaryOption func(*SummaryCalculator)

// WithWarmup excludes the first n samples from the summary. If every sample
// would be excluded, all samples are kept.
func WithWarmup(n int) SummaryOption {
	return func(c *SummaryCalculator) {
		if n > 0 {
			c.warmup = n
		}
	}
}

// NewSummaryCalculator creates a new SummaryCalculator.
func NewSummaryCalculator(opts ...SummaryOption) *SummaryCalculator {
	c := &SummaryCalculator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate summarises samples. The input is not modified.
func (c *SummaryCalculator) Calculate(samples []time.Duration) Summary {
	if c.warmup > 0 && c.warmup < len(samples) {
		samples = samples[c.warmup:]
	}
	if len(samples) == 0 {
		return Summary{}
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, s := range sorted {
		sum += float64(s)
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, s := range sorted {
		d := float64(s) - mean
		sq += d * d
	}
	// sample standard deviation; zero for a single run
	var stddev float64
	if len(sorted) > 1 {
		stddev = math.Sqrt(sq / float64(len(sorted)-1))
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   time.Duration(math.Round(mean)),
		Median: median,
		StdDev: time.Duration(math.Round(stddev)),
	}
}

// Summarize is a shorthand for NewSummaryCalculator().Calculate(samples).
func Summarize(samples []time.Duration) Summary {
	return NewSummaryCalculator().Calculate(samples)
}

// Throughput returns elements processed per second at the summary's median.
func (s Summary) Throughput(elements int) float64 {
	if s.Median <= 0 {
		return 0
	}
	return float64(elements) / s.Median.Seconds()
}

// Speedup returns how many times faster s is than baseline, by median.
func (s Summary) Speedup(baseline Summary) float64 {
	if s.Median <= 0 {
		return 0
	}
	return float64(baseline.Median) / float64(s.Median)
}
