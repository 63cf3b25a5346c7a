package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histobench/internal/accumulator"
	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	"github.com/histobench/internal/metrics"
	"github.com/histobench/internal/mock"
	"github.com/histobench/internal/repository"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
	"github.com/histobench/pkg/utils"
)

const step = 250 * time.Millisecond

func smallDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.FromSlice([]int32{0, 1, 2, 0, 1, 0}, 3)
	require.NoError(t, err)
	return d
}

func steppingClock() *utils.MockClock {
	return utils.NewSteppingMockClock(time.Unix(0, 0), step)
}

// droppingAccumulator counts every element but the last one.
type droppingAccumulator struct{}

func (droppingAccumulator) Name() string                   { return "Dropping" }
func (droppingAccumulator) Strategy() accumulator.Strategy { return accumulator.StrategyAtomic }
func (droppingAccumulator) Accumulate(_ context.Context, data *dataset.Dataset, hist *histogram.Histogram, _ parallel.Schedule) error {
	values := data.Values()
	for _, v := range values[:len(values)-1] {
		hist.Increment(v)
	}
	return nil
}

// failingAccumulator reports a worker failure on every run.
type failingAccumulator struct{}

func (failingAccumulator) Name() string                   { return "Failing" }
func (failingAccumulator) Strategy() accumulator.Strategy { return accumulator.StrategyCritical }
func (failingAccumulator) Accumulate(context.Context, *dataset.Dataset, *histogram.Histogram, parallel.Schedule) error {
	return apperrors.New(apperrors.CodeWorkerFailure, "worker 1 panicked")
}

// recordingSink remembers every event as a short string.
type recordingSink struct {
	events []string
	closed int
}

func (s *recordingSink) OnSection(sec *Section) error {
	s.events = append(s.events, "section "+string(sec.Strategy)+"/"+string(sec.Policy))
	return nil
}
func (s *recordingSink) OnBlock(_ *Section, b *Block) error {
	s.events = append(s.events, fmt.Sprintf("block %d", b.ChunkSize))
	return nil
}
func (s *recordingSink) OnConfig(cfg RunConfig) error {
	s.events = append(s.events, "config "+cfg.Key())
	return nil
}
func (s *recordingSink) OnSample(smp Sample) error {
	s.events = append(s.events, fmt.Sprintf("sample %d %s", smp.Run, smp.Elapsed))
	return nil
}
func (s *recordingSink) OnResult(r *Result) error {
	s.events = append(s.events, fmt.Sprintf("result %s ok=%t", r.Config.Key(), r.OK()))
	return nil
}
func (s *recordingSink) Close() error {
	s.closed++
	return nil
}

func TestRunner_TextReport(t *testing.T) {
	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyAtomic, accumulator.StrategyReduction},
		Policies:     []parallel.Policy{parallel.PolicyStatic, parallel.PolicyDynamic},
		ThreadCounts: []int{1, 2},
		ChunkSizes:   []int{2},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	runner, err := NewRunner(smallDataset(t),
		WithRuns(2),
		WithClock(steppingClock()),
		WithSinks(NewTextReporter(&buf, 2, nil)),
	)
	require.NoError(t, err)

	results, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, results, plan.Len())

	times := "0.250000\n0.250000\n"
	var want strings.Builder
	want.WriteString("\n--- Histogram Computation using Atomic Updates ---\n")
	for _, th := range []int{1, 2} {
		fmt.Fprintf(&want, "\nThreads: %d | Atomic Execution Times:\n%s", th, times)
	}
	want.WriteString("\n--- Histogram Computation using Dynamic Scheduling ---\n\n-- Chunk Size: 2 --\n")
	for _, th := range []int{1, 2} {
		fmt.Fprintf(&want, "\nThreads: %d | Dynamic Execution Times (Chunk Size 2):\n%s", th, times)
	}
	want.WriteString("\n--- Histogram Computation using Simple Reduction ---\n")
	for _, th := range []int{1, 2} {
		fmt.Fprintf(&want, "\nThreads: %d | Simple Reduction Execution Times:\n%s", th, times)
	}
	want.WriteString("\n--- Histogram Computation using Dynamic Scheduling + Reduction ---\n\n-- Chunk Size: 2 --\n")
	for _, th := range []int{1, 2} {
		fmt.Fprintf(&want, "\nThreads: %d | Dynamic Reduction Execution Times (Chunk Size 2):\n%s", th, times)
	}
	assert.Equal(t, want.String(), buf.String())

	for _, r := range results {
		assert.True(t, r.OK())
		assert.Equal(t, 2, r.Summary.Count)
		assert.Equal(t, step, r.Summary.Median)
	}
	assert.Equal(t, step, runner.OracleTime())
}

func TestRunner_SequentialReport(t *testing.T) {
	var buf bytes.Buffer
	runner, err := NewRunner(smallDataset(t),
		WithRuns(3),
		WithClock(steppingClock()),
		WithSinks(NewTextReporter(&buf, 3, nil)),
	)
	require.NoError(t, err)

	results, err := runner.Run(context.Background(), SequentialPlan())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "Sequential Execution Times for 3 Runs:\n"+
		"Run 1: 0.250000 seconds\n"+
		"Run 2: 0.250000 seconds\n"+
		"Run 3: 0.250000 seconds\n", buf.String())
}

func TestRunner_EventOrder(t *testing.T) {
	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyCritical},
		Policies:     []parallel.Policy{parallel.PolicyStaticChunked},
		ThreadCounts: []int{3},
		ChunkSizes:   []int{1, 4},
	})
	require.NoError(t, err)

	sink := &recordingSink{}
	runner, err := NewRunner(smallDataset(t), WithClock(steppingClock()), WithSinks(sink))
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"section critical/static_chunked",
		"block 1",
		"config critical/static_chunked/t3/c1",
		"sample 1 250ms",
		"result critical/static_chunked/t3/c1 ok=true",
		"block 4",
		"config critical/static_chunked/t3/c4",
		"sample 1 250ms",
		"result critical/static_chunked/t3/c4 ok=true",
	}, sink.events)
	assert.Equal(t, 1, sink.closed)
}

func TestRunner_Mismatch(t *testing.T) {
	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyAtomic, accumulator.StrategyCritical},
		Policies:     []parallel.Policy{parallel.PolicyStatic},
		ThreadCounts: []int{2},
	})
	require.NoError(t, err)

	sink := &recordingSink{}
	runner, err := NewRunner(smallDataset(t),
		WithRuns(3),
		WithAccumulators(droppingAccumulator{}),
		WithSinks(sink),
	)
	require.NoError(t, err)

	results, err := runner.Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, apperrors.IsMismatch(err))
	assert.Contains(t, err.Error(), "atomic/static/t2")

	// the sweep stops at the first failing configuration
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.Empty(t, results[0].Samples)
	assert.Equal(t, 1, sink.closed)
}

// scriptedClock reports the given durations from successive Since calls.
type scriptedClock struct {
	durations []time.Duration
}

func (c *scriptedClock) Now() time.Time { return time.Unix(0, 0) }
func (c *scriptedClock) Since(time.Time) time.Duration {
	d := c.durations[0]
	c.durations = c.durations[1:]
	return d
}

func TestRunner_OracleBaselineOverRuns(t *testing.T) {
	clock := &scriptedClock{durations: []time.Duration{
		300 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond,
	}}
	runner, err := NewRunner(smallDataset(t), WithRuns(3), WithValidation(true), WithClock(clock))
	require.NoError(t, err)

	ctx := context.Background()
	oracle, err := runner.Oracle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, oracle.Bins())

	baseline := runner.Baseline()
	assert.Equal(t, 3, baseline.Count)
	assert.Equal(t, 100*time.Millisecond, baseline.Min)
	assert.Equal(t, 200*time.Millisecond, runner.OracleTime())

	// cached: no further passes are timed
	again, err := runner.Oracle(ctx)
	require.NoError(t, err)
	assert.Same(t, oracle, again)
	assert.Empty(t, clock.durations)
}

func TestRunner_MismatchIgnoredWithoutValidation(t *testing.T) {
	runner, err := NewRunner(smallDataset(t), WithValidation(false), WithAccumulators(droppingAccumulator{}))
	require.NoError(t, err)

	res, err := runner.RunConfig(context.Background(),
		RunConfig{Strategy: accumulator.StrategyAtomic, Policy: parallel.PolicyStatic, Workers: 2})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Zero(t, runner.OracleTime())
}

func TestRunner_KeepGoing(t *testing.T) {
	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyCritical, accumulator.StrategyReduction},
		Policies:     []parallel.Policy{parallel.PolicyStatic},
		ThreadCounts: []int{1, 4},
	})
	require.NoError(t, err)

	runner, err := NewRunner(smallDataset(t), WithKeepGoing(true), WithAccumulators(failingAccumulator{}))
	require.NoError(t, err)

	results, err := runner.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.True(t, apperrors.IsWorkerFailure(results[0].Err))
	assert.True(t, apperrors.IsWorkerFailure(results[1].Err))
	assert.True(t, results[2].OK())
	assert.True(t, results[3].OK())
}

func TestRunner_InvalidSchedule(t *testing.T) {
	runner, err := NewRunner(smallDataset(t))
	require.NoError(t, err)

	// chunk larger than the dataset
	res, err := runner.RunConfig(context.Background(),
		RunConfig{Strategy: accumulator.StrategyAtomic, Policy: parallel.PolicyDynamic, Workers: 2, ChunkSize: 100})
	assert.True(t, apperrors.IsInvalidConfig(err))
	assert.Equal(t, err, res.Err)
}

func TestNewRunner_Invalid(t *testing.T) {
	_, err := NewRunner(nil)
	assert.True(t, apperrors.IsInvalidConfig(err))

	_, err = NewRunner(smallDataset(t), WithRuns(0))
	assert.True(t, apperrors.IsInvalidConfig(err))
}

func TestMetricsSink(t *testing.T) {
	rec := metrics.NewRecorder()
	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyAtomic},
		Policies:     []parallel.Policy{parallel.PolicyStatic},
		ThreadCounts: []int{2},
	})
	require.NoError(t, err)

	runner, err := NewRunner(smallDataset(t), WithRuns(2), WithSinks(NewMetricsSink(rec)))
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), plan)
	require.NoError(t, err)

	expected := `
# HELP histobench_runs_total Completed histogram runs
# TYPE histobench_runs_total counter
histobench_runs_total{policy="static",strategy="atomic"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "histobench_runs_total"))

	// a mismatch is counted as a failure and a validation failure
	runner, err = NewRunner(smallDataset(t), WithAccumulators(droppingAccumulator{}), WithSinks(NewMetricsSink(rec)))
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), plan)
	require.Error(t, err)

	expected = `
# HELP histobench_validation_failures_total Runs whose histogram differed from the sequential oracle
# TYPE histobench_validation_failures_total counter
histobench_validation_failures_total{strategy="atomic"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "histobench_validation_failures_total"))
}

func TestRepositorySink(t *testing.T) {
	db, err := repository.NewGormDB(&repository.DBConfig{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	repos := repository.NewRepositories(db)
	defer repos.Close()

	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyReduction},
		Policies:     []parallel.Policy{parallel.PolicyStatic, parallel.PolicyDynamic},
		ThreadCounts: []int{2},
		ChunkSizes:   []int{3},
	})
	require.NoError(t, err)

	ctx := context.Background()
	runner, err := NewRunner(smallDataset(t),
		WithRuns(3),
		WithClock(steppingClock()),
		WithSinks(NewRepositorySink(ctx, repos.Samples, "session-1")),
	)
	require.NoError(t, err)
	_, err = runner.Run(ctx, plan)
	require.NoError(t, err)

	samples, err := repos.Samples.ListSamples(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, samples, 6)
	assert.Equal(t, "static", samples[0].Policy)
	assert.Equal(t, "dynamic", samples[5].Policy)
	assert.Equal(t, 3, samples[5].ChunkSize)
	assert.Equal(t, 3, samples[5].Run)
	assert.Equal(t, step, samples[5].Elapsed())
	assert.True(t, samples[5].Valid)
}

func TestReportBuilder(t *testing.T) {
	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyAtomic, accumulator.StrategyCritical},
		Policies:     []parallel.Policy{parallel.PolicyStatic},
		ThreadCounts: []int{2},
	})
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	builder := NewReportBuilder(ReportMeta{DatasetSize: 6, Range: 3, Runs: 2, Validated: true}, start)
	assert.Len(t, builder.SessionID(), 36)

	runner, err := NewRunner(smallDataset(t),
		WithRuns(2),
		WithClock(steppingClock()),
		WithKeepGoing(true),
		WithAccumulators(failingAccumulator{}),
		WithSinks(builder),
	)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), plan)
	require.NoError(t, err)

	rep := builder.Finish(start.Add(time.Minute), time.Second, nil)
	require.Len(t, rep.Results, 2)

	ok := rep.Results[0]
	assert.Equal(t, "atomic", string(ok.Strategy))
	assert.Equal(t, []float64{0.25, 0.25}, ok.Seconds)
	assert.InDelta(t, 4.0, ok.Speedup, 1e-9)

	failed := rep.Results[1]
	assert.Equal(t, apperrors.CodeWorkerFailure, failed.Code)
	assert.Equal(t, "worker 1 panicked", failed.Error)

	require.Len(t, rep.Ranking, 1)
	assert.Equal(t, "atomic/static/t2", rep.Ranking[0].Name)
	assert.Equal(t, time.Second, rep.Baseline)
	assert.Empty(t, rep.Error)
}

func TestRepositorySink_SaveError(t *testing.T) {
	repo := &mock.MockSampleRepository{}
	repo.ExpectSaveSamples(errors.New("connection reset")).Once()

	plan, err := NewPlan(PlanParams{
		Strategies:   []accumulator.Strategy{accumulator.StrategyAtomic},
		Policies:     []parallel.Policy{parallel.PolicyStatic},
		ThreadCounts: []int{1, 2},
	})
	require.NoError(t, err)

	runner, err := NewRunner(smallDataset(t), WithSinks(NewRepositorySink(context.Background(), repo, "s")))
	require.NoError(t, err)

	results, err := runner.Run(context.Background(), plan)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "connection reset")

	// the run itself succeeded, only persisting it failed
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	repo.AssertExpectations(t)
}
