package histogram

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/histobench/pkg/collections"
)

// padBins is the number of int64 slots that fill one cache line.
var padBins = int(unsafe.Sizeof(cpu.CacheLinePad{}) / unsafe.Sizeof(int64(0)))

// Local is a worker-private histogram. Its counters are surrounded by a
// cache line of padding on both sides so that the scratch buffers of
// different workers never share a line.
type Local struct {
	_    cpu.CacheLinePad
	bins []int64
	_    cpu.CacheLinePad
}

// NewLocal allocates a zeroed local histogram with rng bins.
func NewLocal(rng int) *Local {
	backing := make([]int64, rng+2*padBins)
	return &Local{bins: backing[padBins : padBins+rng : padBins+rng]}
}

// Len returns the number of bins.
func (l *Local) Len() int {
	return len(l.bins)
}

// Bin returns the count of bin i.
func (l *Local) Bin(i int) int64 {
	return l.bins[i]
}

// Increment adds one to bin v.
func (l *Local) Increment(v int32) {
	l.bins[v]++
}

// Count adds every value of values to the histogram.
func (l *Local) Count(values []int32) {
	bins := l.bins
	for _, v := range values {
		bins[v]++
	}
}

// Add adds o into l elementwise.
func (l *Local) Add(o *Local) {
	for i, c := range o.bins {
		l.bins[i] += c
	}
}

// Sum returns the total of all counters.
func (l *Local) Sum() int64 {
	var sum int64
	for _, c := range l.bins {
		sum += c
	}
	return sum
}

// Reset zeroes every counter.
func (l *Local) Reset() {
	clear(l.bins)
}

// Arena hands out zeroed local histograms of one range and takes them back
// after they are merged. It is safe for concurrent use.
type Arena struct {
	rng         int
	pool        *collections.Pool[*Local]
	outstanding atomic.Int64
}

// NewArena creates an arena of local histograms with rng bins.
func NewArena(rng int) (*Arena, error) {
	if err := CheckRange(rng); err != nil {
		return nil, err
	}
	return &Arena{
		rng: rng,
		pool: collections.NewPool(
			func() *Local { return NewLocal(rng) },
			(*Local).Reset,
		),
	}, nil
}

// Acquire returns a zeroed local histogram owned by the caller.
func (a *Arena) Acquire() *Local {
	a.outstanding.Add(1)
	return a.pool.Get()
}

// Release resets l and returns it to the arena. l must not be used afterwards.
func (a *Arena) Release(l *Local) {
	a.outstanding.Add(-1)
	if l.Len() != a.rng {
		return
	}
	a.pool.Put(l)
}

// Outstanding returns the number of acquired, unreleased histograms.
func (a *Arena) Outstanding() int64 {
	return a.outstanding.Load()
}
