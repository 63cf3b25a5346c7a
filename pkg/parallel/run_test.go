package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/histobench/pkg/errors"
)

func TestRun_AllWorkersRun(t *testing.T) {
	var seen [8]atomic.Bool
	err := Run(8, func(w int) error {
		seen[w].Store(true)
		return nil
	})
	require.NoError(t, err)
	for w := range seen {
		assert.True(t, seen[w].Load(), "worker %d did not run", w)
	}
}

func TestRun_InvalidWorkers(t *testing.T) {
	err := Run(0, func(int) error { return nil })
	assert.True(t, apperrors.IsInvalidConfig(err))
}

func TestRun_PanicBecomesWorkerFailure(t *testing.T) {
	var finished atomic.Int32
	err := Run(4, func(w int) error {
		if w == 2 {
			panic("index out of range")
		}
		finished.Add(1)
		return nil
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsWorkerFailure(err))
	assert.Contains(t, err.Error(), "worker 2 panicked")
	assert.Contains(t, err.Error(), "index out of range")
	assert.Equal(t, int32(3), finished.Load())
}

func TestRun_ErrorsReportedByLowestWorker(t *testing.T) {
	err := Run(4, func(w int) error {
		if w >= 1 {
			return errors.New("boom")
		}
		return nil
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsWorkerFailure(err))
	assert.Contains(t, err.Error(), "worker 1 failed")
}

func TestRun_AppErrorsPassThrough(t *testing.T) {
	err := Run(2, func(w int) error {
		return apperrors.New(apperrors.CodeMismatch, "bad bin")
	})
	assert.True(t, apperrors.IsMismatch(err))
}

func TestForEachPartition(t *testing.T) {
	s, err := NewSchedule(1000, Options{Workers: 4, Policy: PolicyDynamic, ChunkSize: 7})
	require.NoError(t, err)

	var total atomic.Int64
	err = ForEachPartition(s, func(_ int, p Partition) {
		total.Add(int64(p.Len()))
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total.Load())
}
