package bench

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/histobench/internal/accumulator"
	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	"github.com/histobench/internal/statistics"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
	"github.com/histobench/pkg/telemetry"
	"github.com/histobench/pkg/utils"
)

// maxReportedDiffs bounds the bins listed in a MISMATCH error.
const maxReportedDiffs = 5

// Runner times accumulation runs over one dataset.
type Runner struct {
	data   *dataset.Dataset
	runs   int
	verify bool
	keep   bool
	clock  utils.Clock
	logger utils.Logger
	sinks  multiSink
	calc   *statistics.SummaryCalculator

	accs   map[accumulator.Strategy]accumulator.Accumulator
	hist   *histogram.Histogram
	oracle *histogram.Histogram

	baseline statistics.Summary
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRuns sets the number of repetitions per configuration.
func WithRuns(n int) RunnerOption {
	return func(r *Runner) {
		r.runs = n
	}
}

// WithValidation enables comparing every run against the sequential oracle.
func WithValidation(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.verify = enabled
	}
}

// WithKeepGoing makes a failing configuration record its error in the
// result and lets the sweep continue instead of aborting it.
func WithKeepGoing(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.keep = enabled
	}
}

// WithClock sets the clock runs are timed with.
func WithClock(clock utils.Clock) RunnerOption {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSinks adds sinks that receive the sweep events.
func WithSinks(sinks ...Sink) RunnerOption {
	return func(r *Runner) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// WithAccumulators replaces the accumulators used for their strategies.
func WithAccumulators(accs ...accumulator.Accumulator) RunnerOption {
	return func(r *Runner) {
		for _, a := range accs {
			r.accs[a.Strategy()] = a
		}
	}
}

// WithSummaryCalculator sets how per-configuration summaries are computed.
func WithSummaryCalculator(calc *statistics.SummaryCalculator) RunnerOption {
	return func(r *Runner) {
		r.calc = calc
	}
}

// NewRunner creates a runner for data.
func NewRunner(data *dataset.Dataset, opts ...RunnerOption) (*Runner, error) {
	if data == nil {
		return nil, apperrors.InvalidConfig("dataset is required")
	}

	r := &Runner{
		data:   data,
		runs:   1,
		verify: true,
		clock:  utils.NewRealClock(),
		logger: &utils.NullLogger{},
		calc:   statistics.NewSummaryCalculator(),
		accs:   make(map[accumulator.Strategy]accumulator.Accumulator),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runs < 1 {
		return nil, apperrors.InvalidConfig("runs must be at least 1, got %d", r.runs)
	}

	hist, err := histogram.New(data.Range())
	if err != nil {
		return nil, err
	}
	r.hist = hist
	return r, nil
}

// Runs returns the repetitions per configuration.
func (r *Runner) Runs() int {
	return r.runs
}

// Oracle returns the sequential reference histogram, computing it on first use.
// The oracle is timed over the same number of runs as every configuration;
// the first pass provides the reference.
func (r *Runner) Oracle(ctx context.Context) (*histogram.Histogram, error) {
	if r.oracle != nil {
		return r.oracle, nil
	}

	var ref *histogram.Histogram
	samples := make([]time.Duration, 0, r.runs)
	for i := 0; i < r.runs; i++ {
		start := r.clock.Now()
		h, err := accumulator.Oracle(ctx, r.data)
		if err != nil {
			return nil, err
		}
		samples = append(samples, r.clock.Since(start))
		if ref == nil {
			ref = h
		}
	}
	r.baseline = r.calc.Calculate(samples)
	r.oracle = ref
	r.logger.Debug("oracle: median %s over %d runs", r.baseline.Median, len(samples))
	return ref, nil
}

// Baseline returns the summary of the oracle's timed runs, or a zero
// Summary before the oracle ran.
func (r *Runner) Baseline() statistics.Summary {
	return r.baseline
}

// OracleTime returns the median oracle run time, or zero before it ran.
func (r *Runner) OracleTime() time.Duration {
	return r.baseline.Median
}

// Run executes plan and returns one result per configuration, in order.
// Unless WithKeepGoing is set, the first failing configuration aborts the
// sweep; its result is still returned, last. Sinks are closed before Run
// returns.
func (r *Runner) Run(ctx context.Context, plan *Plan) (results []*Result, err error) {
	defer func() {
		if cerr := r.sinks.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if r.verify {
		if _, err := r.Oracle(ctx); err != nil {
			return nil, err
		}
	}

	for i := range plan.Sections {
		sec := &plan.Sections[i]
		if err := r.sinks.OnSection(sec); err != nil {
			return results, err
		}
		r.logger.Debug("section %s/%s: %d blocks", sec.Strategy, sec.Policy, len(sec.Blocks))

		for j := range sec.Blocks {
			b := &sec.Blocks[j]
			if err := r.sinks.OnBlock(sec, b); err != nil {
				return results, err
			}
			for _, cfg := range b.Configs {
				res, err := r.RunConfig(ctx, cfg)
				results = append(results, res)
				if err != nil && !(r.keep && res.Err != nil) {
					return results, err
				}
			}
		}
	}
	return results, nil
}

// RunConfig times cfg for the configured number of repetitions.
// A run failure stops the remaining repetitions of cfg and is returned both
// as the error and in Result.Err. Sink errors are returned with Result.Err nil.
func (r *Runner) RunConfig(ctx context.Context, cfg RunConfig) (*Result, error) {
	res := &Result{Config: cfg}

	acc, err := r.accumulator(cfg.Strategy)
	if err != nil {
		res.Err = err
		return res, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "bench.config", trace.WithAttributes(
		attribute.String("histobench.strategy", string(cfg.Strategy)),
		attribute.String("histobench.policy", string(cfg.Policy)),
		attribute.Int("histobench.workers", cfg.Workers),
		attribute.Int("histobench.chunk_size", cfg.ChunkSize),
		attribute.Int("histobench.runs", r.runs),
	))
	defer span.End()

	if err := r.sinks.OnConfig(cfg); err != nil {
		return res, err
	}

	for run := 1; run <= r.runs; run++ {
		elapsed, err := r.once(ctx, acc, cfg)
		if err != nil {
			res.Err = err
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Error("%s run %d failed: %v", cfg.Key(), run, err)
			res.Summary = r.calc.Calculate(res.Samples)
			if serr := r.sinks.OnResult(res); serr != nil {
				return res, serr
			}
			return res, err
		}

		res.Samples = append(res.Samples, elapsed)
		if err := r.sinks.OnSample(Sample{Config: cfg, Run: run, Elapsed: elapsed, Valid: r.verify}); err != nil {
			return res, err
		}
	}

	res.Summary = r.calc.Calculate(res.Samples)
	span.SetAttributes(attribute.Int64("histobench.median_ns", int64(res.Summary.Median)))
	if err := r.sinks.OnResult(res); err != nil {
		return res, err
	}
	return res, nil
}

// once performs a single timed run. Schedule construction and the histogram
// reset happen outside the timed region.
func (r *Runner) once(ctx context.Context, acc accumulator.Accumulator, cfg RunConfig) (time.Duration, error) {
	var sched parallel.Schedule
	if cfg.Strategy != accumulator.StrategySequential {
		s, err := parallel.NewSchedule(r.data.Len(), cfg.Options())
		if err != nil {
			return 0, err
		}
		sched = s
	}
	r.hist.Reset()

	start := r.clock.Now()
	err := acc.Accumulate(ctx, r.data, r.hist, sched)
	elapsed := r.clock.Since(start)
	if err != nil {
		return 0, err
	}

	if r.verify {
		if err := r.validate(ctx, cfg); err != nil {
			return 0, err
		}
	}
	return elapsed, nil
}

func (r *Runner) validate(ctx context.Context, cfg RunConfig) error {
	oracle, err := r.Oracle(ctx)
	if err != nil {
		return err
	}
	if sum := r.hist.Sum(); sum != int64(r.data.Len()) {
		return apperrors.Newf(apperrors.CodeMismatch,
			"%s: histogram sum %d, dataset has %d elements", cfg.Key(), sum, r.data.Len())
	}
	if !r.hist.Equal(oracle) {
		return apperrors.Newf(apperrors.CodeMismatch,
			"%s differs from the sequential result: %s", cfg.Key(),
			histogram.FormatDiffs(r.hist.Diff(oracle, maxReportedDiffs)))
	}
	return nil
}

func (r *Runner) accumulator(s accumulator.Strategy) (accumulator.Accumulator, error) {
	if acc, ok := r.accs[s]; ok {
		return acc, nil
	}
	acc, err := accumulator.New(s)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	r.accs[s] = acc
	return acc, nil
}
