// Package histogram holds the shared fixed-range counters and the
// per-worker scratch histograms they are merged from.
package histogram

import (
	"fmt"
	"strings"
	"sync/atomic"

	apperrors "github.com/histobench/pkg/errors"
)

// MaxRange bounds the number of bins a histogram may have.
const MaxRange = 1 << 16

// Histogram is a fixed array of non-negative counters indexed by value.
//
// During a run it is mutated either through AtomicIncrement from many
// goroutines or through Merge by one goroutine at a time; the two must not be
// mixed within a run. Outside of a run it is read-only.
type Histogram struct {
	bins []int64
}

// CheckRange validates a histogram range.
func CheckRange(rng int) error {
	if rng < 1 || rng > MaxRange {
		return apperrors.InvalidConfig("histogram range must be in [1, %d], got %d", MaxRange, rng)
	}
	return nil
}

// New creates a zeroed histogram with rng bins.
func New(rng int) (*Histogram, error) {
	if err := CheckRange(rng); err != nil {
		return nil, err
	}
	return &Histogram{bins: make([]int64, rng)}, nil
}

// Len returns the number of bins.
func (h *Histogram) Len() int {
	return len(h.bins)
}

// Bin returns the count of bin i.
func (h *Histogram) Bin(i int) int64 {
	return h.bins[i]
}

// Bins returns a copy of the counters.
func (h *Histogram) Bins() []int64 {
	out := make([]int64, len(h.bins))
	copy(out, h.bins)
	return out
}

// Sum returns the total of all counters.
func (h *Histogram) Sum() int64 {
	var sum int64
	for _, c := range h.bins {
		sum += c
	}
	return sum
}

// Reset zeroes every counter.
func (h *Histogram) Reset() {
	clear(h.bins)
}

// Increment adds one to bin v. Not safe for concurrent use.
func (h *Histogram) Increment(v int32) {
	h.bins[v]++
}

// AtomicIncrement adds one to bin v. Safe for concurrent use.
// Panics if v is not a valid bin.
func (h *Histogram) AtomicIncrement(v int32) {
	atomic.AddInt64(&h.bins[v], 1)
}

// Merge adds l into h elementwise. Merge is not synchronised; the caller
// must ensure no other goroutine writes h at the same time.
func (h *Histogram) Merge(l *Local) {
	if len(l.bins) != len(h.bins) {
		panic(fmt.Sprintf("histogram: merge of %d bins into %d", len(l.bins), len(h.bins)))
	}
	for i, c := range l.bins {
		h.bins[i] += c
	}
}

// Equal reports whether h and o have the same bins and counts.
func (h *Histogram) Equal(o *Histogram) bool {
	if len(h.bins) != len(o.bins) {
		return false
	}
	for i := range h.bins {
		if h.bins[i] != o.bins[i] {
			return false
		}
	}
	return true
}

// BinDiff is one bin where two histograms disagree.
type BinDiff struct {
	Bin  int
	Got  int64
	Want int64
}

func (d BinDiff) String() string {
	return fmt.Sprintf("bin %d: got %d, want %d", d.Bin, d.Got, d.Want)
}

// Diff returns up to limit bins where h differs from want, in bin order.
// A limit <= 0 returns every difference. Histograms of different length
// report their length mismatch as a single diff with Bin -1.
func (h *Histogram) Diff(want *Histogram, limit int) []BinDiff {
	if len(h.bins) != len(want.bins) {
		return []BinDiff{{Bin: -1, Got: int64(len(h.bins)), Want: int64(len(want.bins))}}
	}
	var diffs []BinDiff
	for i := range h.bins {
		if h.bins[i] == want.bins[i] {
			continue
		}
		diffs = append(diffs, BinDiff{Bin: i, Got: h.bins[i], Want: want.bins[i]})
		if limit > 0 && len(diffs) == limit {
			break
		}
	}
	return diffs
}

// FormatDiffs renders diffs on a single line.
func FormatDiffs(diffs []BinDiff) string {
	parts := make([]string, len(diffs))
	for i, d := range diffs {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}
