package accumulator

import (
	"context"

	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	"github.com/histobench/pkg/parallel"
)

// AtomicAccumulator increments the shared histogram with one atomic add per
// element. It keeps no per-worker state.
type AtomicAccumulator struct{}

// NewAtomic creates an AtomicAccumulator.
func NewAtomic() *AtomicAccumulator {
	return &AtomicAccumulator{}
}

// Name returns the accumulator name.
func (a *AtomicAccumulator) Name() string { return "Atomic" }

// Strategy returns StrategyAtomic.
func (a *AtomicAccumulator) Strategy() Strategy { return StrategyAtomic }

// Accumulate implements Accumulator.
func (a *AtomicAccumulator) Accumulate(ctx context.Context, data *dataset.Dataset, hist *histogram.Histogram, sched parallel.Schedule) error {
	if err := checkInputs(data, hist, sched); err != nil {
		return err
	}
	_, span := startSpan(ctx, StrategyAtomic, data, sched)

	values := data.Values()
	err := parallel.ForEachPartition(sched, func(_ int, p parallel.Partition) {
		for _, v := range values[p.Start:p.End] {
			hist.AtomicIncrement(v)
		}
	})
	return endSpan(span, err)
}
