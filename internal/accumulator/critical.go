package accumulator

import (
	"context"
	"sync"

	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	"github.com/histobench/pkg/collections"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
)

// CriticalAccumulator counts into a private scratch histogram per worker and
// merges every scratch into the shared histogram inside a mutex-guarded
// critical section. Each worker merges exactly once, including workers that
// were assigned no partitions.
type CriticalAccumulator struct {
	arenas arenaSet
}

// NewCritical creates a CriticalAccumulator.
func NewCritical() *CriticalAccumulator {
	return &CriticalAccumulator{}
}

// Name returns the accumulator name.
func (c *CriticalAccumulator) Name() string { return "Critical" }

// Strategy returns StrategyCritical.
func (c *CriticalAccumulator) Strategy() Strategy { return StrategyCritical }

// Accumulate implements Accumulator.
func (c *CriticalAccumulator) Accumulate(ctx context.Context, data *dataset.Dataset, hist *histogram.Histogram, sched parallel.Schedule) error {
	if err := checkInputs(data, hist, sched); err != nil {
		return err
	}
	arena, err := c.arenas.get(hist.Len())
	if err != nil {
		return err
	}
	_, span := startSpan(ctx, StrategyCritical, data, sched)

	m := &merger{hist: hist, merged: collections.NewBitset(sched.Workers())}
	values := data.Values()
	err = parallel.Run(sched.Workers(), func(w int) error {
		local := arena.Acquire()
		defer arena.Release(local)

		claim := sched.Claimer(w)
		for p, ok := claim.Next(); ok; p, ok = claim.Next() {
			local.Count(values[p.Start:p.End])
		}
		return m.merge(w, local)
	})
	if err == nil && !m.merged.Full() {
		err = apperrors.Newf(apperrors.CodeWorkerFailure, "workers %v never merged", m.merged.Missing())
	}
	return endSpan(span, err)
}

// Outstanding returns the number of scratch histograms not returned to the arena.
func (c *CriticalAccumulator) Outstanding() int64 {
	return c.arenas.outstanding()
}

// merger serialises merges into the shared histogram and records which
// workers have merged.
type merger struct {
	mu     sync.Mutex
	hist   *histogram.Histogram
	merged *collections.Bitset
}

func (m *merger) merge(w int, local *histogram.Local) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.merged.TestAndSet(w) {
		return apperrors.Newf(apperrors.CodeWorkerFailure, "worker %d merged twice", w)
	}
	m.hist.Merge(local)
	return nil
}
