package accumulator

import (
	"context"

	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	"github.com/histobench/pkg/parallel"
)

// SequentialAccumulator counts the whole dataset on one goroutine and
// ignores the schedule. It is the reference the parallel strategies are
// validated against.
type SequentialAccumulator struct{}

// NewSequential creates a SequentialAccumulator.
func NewSequential() *SequentialAccumulator {
	return &SequentialAccumulator{}
}

// Name returns the accumulator name.
func (s *SequentialAccumulator) Name() string { return "Sequential" }

// Strategy returns StrategySequential.
func (s *SequentialAccumulator) Strategy() Strategy { return StrategySequential }

// Accumulate implements Accumulator. sched may be nil.
func (s *SequentialAccumulator) Accumulate(ctx context.Context, data *dataset.Dataset, hist *histogram.Histogram, sched parallel.Schedule) error {
	if err := checkInputs(data, hist, sched); err != nil {
		return err
	}
	_, span := startSpan(ctx, StrategySequential, data, nil)

	values := data.Values()
	err := parallel.Run(1, func(int) error {
		for _, v := range values {
			hist.Increment(v)
		}
		return nil
	})
	return endSpan(span, err)
}

// Oracle returns the reference histogram of data.
func Oracle(ctx context.Context, data *dataset.Dataset) (*histogram.Histogram, error) {
	hist, err := histogram.New(data.Range())
	if err != nil {
		return nil, err
	}
	if err := NewSequential().Accumulate(ctx, data, hist, nil); err != nil {
		return nil, err
	}
	return hist, nil
}
