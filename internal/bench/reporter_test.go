package bench

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histobench/internal/accumulator"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
)

func TestSectionTitle(t *testing.T) {
	tests := []struct {
		s    accumulator.Strategy
		p    parallel.Policy
		want string
	}{
		{accumulator.StrategyAtomic, parallel.PolicyStatic, "Histogram Computation using Atomic Updates"},
		{accumulator.StrategyAtomic, parallel.PolicyStaticChunked, "Histogram Computation using Static Scheduling + Atomic"},
		{accumulator.StrategyAtomic, parallel.PolicyDynamic, "Histogram Computation using Dynamic Scheduling"},
		{accumulator.StrategyCritical, parallel.PolicyStatic, "Histogram Computation using Simple Critical"},
		{accumulator.StrategyCritical, parallel.PolicyStaticChunked, "Histogram Computation using Static Scheduling + Critical"},
		{accumulator.StrategyReduction, parallel.PolicyDynamic, "Histogram Computation using Dynamic Scheduling + Reduction"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SectionTitle(tt.s, tt.p))
	}
}

func TestTimesLabel(t *testing.T) {
	tests := []struct {
		cfg  RunConfig
		want string
	}{
		{RunConfig{Strategy: accumulator.StrategyAtomic, Policy: parallel.PolicyStatic, Workers: 2}, "Atomic Execution Times:"},
		{RunConfig{Strategy: accumulator.StrategyAtomic, Policy: parallel.PolicyDynamic, Workers: 2, ChunkSize: 32768}, "Dynamic Execution Times (Chunk Size 32768):"},
		{RunConfig{Strategy: accumulator.StrategyAtomic, Policy: parallel.PolicyStaticChunked, Workers: 2, ChunkSize: 8}, "Static Atomic Execution Times (Chunk Size 8):"},
		{RunConfig{Strategy: accumulator.StrategyCritical, Policy: parallel.PolicyStatic, Workers: 2}, "Simple Critical Execution Times:"},
		{RunConfig{Strategy: accumulator.StrategyReduction, Policy: parallel.PolicyStaticChunked, Workers: 2, ChunkSize: 65536}, "Static Reduction Execution Times (Chunk Size 65536):"},
		{RunConfig{Strategy: accumulator.StrategyCritical, Policy: parallel.PolicyDynamic, Workers: 2, ChunkSize: 131072}, "Dynamic Critical Execution Times (Chunk Size 131072):"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimesLabel(tt.cfg))
	}
}

func TestTextReporter_Sequential(t *testing.T) {
	var buf bytes.Buffer
	rep := NewTextReporter(&buf, 2, nil)
	plan := SequentialPlan()
	sec := &plan.Sections[0]
	cfg := sec.Blocks[0].Configs[0]

	require.NoError(t, rep.OnSection(sec))
	require.NoError(t, rep.OnBlock(sec, &sec.Blocks[0]))
	require.NoError(t, rep.OnConfig(cfg))
	require.NoError(t, rep.OnSample(Sample{Config: cfg, Run: 1, Elapsed: 312500 * time.Microsecond}))
	require.NoError(t, rep.OnSample(Sample{Config: cfg, Run: 2, Elapsed: 300 * time.Millisecond}))

	assert.Equal(t, "Sequential Execution Times for 2 Runs:\n"+
		"Run 1: 0.312500 seconds\n"+
		"Run 2: 0.300000 seconds\n", buf.String())
}

func TestTextReporter_Failure(t *testing.T) {
	var buf bytes.Buffer
	rep := NewTextReporter(&buf, 1, nil)

	err := apperrors.New(apperrors.CodeMismatch, "bin 3: got 1, want 2")
	require.NoError(t, rep.OnResult(&Result{Err: err}))
	assert.Contains(t, buf.String(), "FAILED: [MISMATCH] bin 3")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTextReporter_WriteError(t *testing.T) {
	rep := NewTextReporter(failingWriter{}, 1, nil)
	err := rep.OnSample(Sample{Config: RunConfig{Strategy: accumulator.StrategyAtomic}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestVerifyReporter(t *testing.T) {
	var buf bytes.Buffer
	rep := NewVerifyReporter(&buf)

	ok := RunConfig{Strategy: accumulator.StrategyAtomic, Policy: parallel.PolicyStatic, Workers: 2}
	bad := RunConfig{Strategy: accumulator.StrategyCritical, Policy: parallel.PolicyDynamic, Workers: 4, ChunkSize: 8}
	require.NoError(t, rep.OnResult(&Result{Config: ok}))
	require.NoError(t, rep.OnResult(&Result{Config: bad, Err: apperrors.New(apperrors.CodeMismatch, "bin 0")}))

	assert.Equal(t, "OK   atomic/static/t2\n"+
		"FAIL critical/dynamic/t4/c8: [MISMATCH] bin 0\n", buf.String())
	passed, failed := rep.Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
}
