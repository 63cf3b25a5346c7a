package accumulator

import (
	"context"

	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	"github.com/histobench/pkg/parallel"
)

// ReductionAccumulator counts into per-worker partial histograms and lets
// parallel.Reduce combine them. The combined partial is written into the
// shared histogram by the calling goroutine after the join.
type ReductionAccumulator struct {
	arenas arenaSet
}

// NewReduction creates a ReductionAccumulator.
func NewReduction() *ReductionAccumulator {
	return &ReductionAccumulator{}
}

// Name returns the accumulator name.
func (r *ReductionAccumulator) Name() string { return "Reduction" }

// Strategy returns StrategyReduction.
func (r *ReductionAccumulator) Strategy() Strategy { return StrategyReduction }

// Accumulate implements Accumulator.
func (r *ReductionAccumulator) Accumulate(ctx context.Context, data *dataset.Dataset, hist *histogram.Histogram, sched parallel.Schedule) error {
	if err := checkInputs(data, hist, sched); err != nil {
		return err
	}
	arena, err := r.arenas.get(hist.Len())
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, StrategyReduction, data, sched)

	values := data.Values()
	partials := make([]*histogram.Local, sched.Workers())
	combined, err := parallel.Reduce(sched,
		func(w int) *histogram.Local {
			partials[w] = arena.Acquire()
			return partials[w]
		},
		func(acc *histogram.Local, p parallel.Partition) *histogram.Local {
			acc.Count(values[p.Start:p.End])
			return acc
		},
		func(dst, src *histogram.Local) *histogram.Local {
			dst.Add(src)
			arena.Release(src)
			return dst
		},
	)
	if err != nil {
		// a failed worker aborts Reduce before the tree, so every partial is still held
		for _, l := range partials {
			if l != nil {
				arena.Release(l)
			}
		}
		return endSpan(span, err)
	}

	hist.Merge(combined)
	arena.Release(combined)
	return endSpan(span, nil)
}

// Outstanding returns the number of scratch histograms not returned to the arena.
func (r *ReductionAccumulator) Outstanding() int64 {
	return r.arenas.outstanding()
}
