// Package parallel provides the work partitioning and fork-join primitives
// used by the histogram accumulators.
package parallel

import (
	"fmt"
	"strings"
	"sync/atomic"

	apperrors "github.com/histobench/pkg/errors"
)

// ============================================================================
// Policies and partitions
// ============================================================================

// Policy selects how the index range is distributed to workers.
type Policy string

const (
	// PolicyStatic splits [0, n) into one contiguous block per worker.
	PolicyStatic Policy = "static"
	// PolicyStaticChunked splits [0, n) into fixed-size chunks assigned
	// round-robin before work starts.
	PolicyStaticChunked Policy = "static_chunked"
	// PolicyDynamic hands out fixed-size chunks on demand from a shared cursor.
	PolicyDynamic Policy = "dynamic"
)

// AllPolicies returns every supported policy in sweep order.
func AllPolicies() []Policy {
	return []Policy{PolicyStatic, PolicyStaticChunked, PolicyDynamic}
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "simple":
		return PolicyStatic, nil
	case "static_chunked", "static-chunked", "chunked":
		return PolicyStaticChunked, nil
	case "dynamic":
		return PolicyDynamic, nil
	default:
		return "", apperrors.InvalidConfig("unknown partition policy: %q", s)
	}
}

// Chunked reports whether the policy uses a chunk size.
func (p Policy) Chunked() bool {
	return p == PolicyStaticChunked || p == PolicyDynamic
}

// Partition is the half-open index range [Start, End).
type Partition struct {
	Start int
	End   int
}

// Len returns the number of indices in the partition.
func (p Partition) Len() int {
	return p.End - p.Start
}

// Options configures a Schedule.
type Options struct {
	// Workers is the number of goroutines taking part in a run.
	Workers int
	// Policy is the partitioning policy.
	Policy Policy
	// ChunkSize is the chunk length for chunked policies. Must be 0 for
	// PolicyStatic or left unset.
	ChunkSize int
}

// Validate checks the options against a dataset of n elements.
func (o Options) Validate(n int) error {
	if n < 0 {
		return apperrors.InvalidConfig("dataset size must be >= 0, got %d", n)
	}
	if o.Workers < 1 {
		return apperrors.InvalidConfig("worker count must be >= 1, got %d", o.Workers)
	}
	switch o.Policy {
	case PolicyStatic:
		if o.ChunkSize < 0 {
			return apperrors.InvalidConfig("chunk size must be >= 0, got %d", o.ChunkSize)
		}
	case PolicyStaticChunked, PolicyDynamic:
		if o.ChunkSize < 1 {
			return apperrors.InvalidConfig("chunk size must be >= 1 for %s scheduling, got %d", o.Policy, o.ChunkSize)
		}
		if n > 0 && o.ChunkSize > n {
			return apperrors.InvalidConfig("chunk size %d exceeds dataset size %d", o.ChunkSize, n)
		}
	default:
		return apperrors.InvalidConfig("unknown partition policy: %q", o.Policy)
	}
	return nil
}

// ============================================================================
// Schedule
// ============================================================================

// Claimer yields the partitions of one worker until it returns false.
// A Claimer is owned by a single goroutine.
type Claimer interface {
	Next() (Partition, bool)
}

// Schedule distributes [0, n) among a fixed set of workers.
// A Schedule serves exactly one run; the dynamic cursor is not rewound.
type Schedule interface {
	Policy() Policy
	Workers() int
	Len() int
	ChunkSize() int
	// Claimer returns the claimer for worker w, 0 <= w < Workers().
	Claimer(w int) Claimer
}

// NewSchedule validates opts and builds a schedule over n indices.
func NewSchedule(n int, opts Options) (Schedule, error) {
	if err := opts.Validate(n); err != nil {
		return nil, err
	}
	if opts.Policy == PolicyDynamic {
		return &dynamicSchedule{n: n, workers: opts.Workers, chunk: opts.ChunkSize}, nil
	}
	plan, err := StaticPlan(n, opts)
	if err != nil {
		return nil, err
	}
	return &staticSchedule{n: n, opts: opts, plan: plan}, nil
}

// StaticPlan returns the per-worker partition lists of a static policy.
// Worker w's partitions are plan[w], in ascending order.
func StaticPlan(n int, opts Options) ([][]Partition, error) {
	if err := opts.Validate(n); err != nil {
		return nil, err
	}

	plan := make([][]Partition, opts.Workers)
	switch opts.Policy {
	case PolicyStatic:
		t := int64(opts.Workers)
		for w := 0; w < opts.Workers; w++ {
			start := int(int64(n) * int64(w) / t)
			end := int(int64(n) * int64(w+1) / t)
			if start < end {
				plan[w] = []Partition{{Start: start, End: end}}
			}
		}
	case PolicyStaticChunked:
		chunk := opts.ChunkSize
		for k, start := 0, 0; start < n; k, start = k+1, start+chunk {
			w := k % opts.Workers
			plan[w] = append(plan[w], Partition{Start: start, End: min(start+chunk, n)})
		}
	default:
		return nil, apperrors.InvalidConfig("policy %s has no static plan", opts.Policy)
	}
	return plan, nil
}

type staticSchedule struct {
	n    int
	opts Options
	plan [][]Partition
}

func (s *staticSchedule) Policy() Policy { return s.opts.Policy }
func (s *staticSchedule) Workers() int   { return s.opts.Workers }
func (s *staticSchedule) Len() int       { return s.n }
func (s *staticSchedule) ChunkSize() int { return s.opts.ChunkSize }

func (s *staticSchedule) Claimer(w int) Claimer {
	checkWorker(w, s.opts.Workers)
	return &sliceClaimer{parts: s.plan[w]}
}

type sliceClaimer struct {
	parts []Partition
	next  int
}

func (c *sliceClaimer) Next() (Partition, bool) {
	if c.next >= len(c.parts) {
		return Partition{}, false
	}
	p := c.parts[c.next]
	c.next++
	return p, true
}

// dynamicSchedule hands out chunk indices from a lock-free cursor.
type dynamicSchedule struct {
	n       int
	workers int
	chunk   int
	cursor  atomic.Int64
}

func (s *dynamicSchedule) Policy() Policy { return PolicyDynamic }
func (s *dynamicSchedule) Workers() int   { return s.workers }
func (s *dynamicSchedule) Len() int       { return s.n }
func (s *dynamicSchedule) ChunkSize() int { return s.chunk }

func (s *dynamicSchedule) Claimer(w int) Claimer {
	checkWorker(w, s.workers)
	return dynamicClaimer{s: s}
}

func (s *dynamicSchedule) claim() (Partition, bool) {
	k := s.cursor.Add(1) - 1
	start := k * int64(s.chunk)
	if start >= int64(s.n) {
		return Partition{}, false
	}
	return Partition{Start: int(start), End: int(min(start+int64(s.chunk), int64(s.n)))}, true
}

type dynamicClaimer struct {
	s *dynamicSchedule
}

func (c dynamicClaimer) Next() (Partition, bool) {
	return c.s.claim()
}

func checkWorker(w, workers int) {
	if w < 0 || w >= workers {
		panic(fmt.Sprintf("parallel: worker %d out of range [0, %d)", w, workers))
	}
}
