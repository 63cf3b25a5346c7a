// Package accumulator implements the strategies that fill a shared histogram
// from a dataset under a work schedule.
package accumulator

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/histogram"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
	"github.com/histobench/pkg/telemetry"
)

// Strategy names an accumulation strategy.
type Strategy string

const (
	// StrategyAtomic increments the shared histogram atomically per element.
	StrategyAtomic Strategy = "atomic"
	// StrategyCritical counts into per-worker scratch and merges each under a lock.
	StrategyCritical Strategy = "critical"
	// StrategyReduction counts into per-worker scratch combined by a reduction tree.
	StrategyReduction Strategy = "reduction"
	// StrategySequential is the single-goroutine oracle.
	StrategySequential Strategy = "sequential"
)

// AllStrategies returns the parallel strategies in sweep order.
func AllStrategies() []Strategy {
	return []Strategy{StrategyAtomic, StrategyCritical, StrategyReduction}
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "atomic":
		return StrategyAtomic, nil
	case "critical", "local_merge", "local-merge":
		return StrategyCritical, nil
	case "reduction":
		return StrategyReduction, nil
	case "sequential":
		return StrategySequential, nil
	default:
		return "", apperrors.InvalidConfig("unknown strategy: %q", s)
	}
}

// Title returns the capitalised strategy name used in report headers.
func (s Strategy) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Accumulator fills a histogram from a dataset.
//
// Accumulate adds one count per dataset element to hist. hist is expected to
// be zeroed by the caller and must have data.Range() bins. sched must cover
// exactly data.Len() indices and is consumed by the call. The context only
// carries tracing; a run is not cancellable.
type Accumulator interface {
	Name() string
	Strategy() Strategy
	Accumulate(ctx context.Context, data *dataset.Dataset, hist *histogram.Histogram, sched parallel.Schedule) error
}

// New creates the accumulator for a strategy.
func New(strategy Strategy) (Accumulator, error) {
	switch strategy {
	case StrategyAtomic:
		return NewAtomic(), nil
	case StrategyCritical:
		return NewCritical(), nil
	case StrategyReduction:
		return NewReduction(), nil
	case StrategySequential:
		return NewSequential(), nil
	default:
		return nil, apperrors.InvalidConfig("unknown strategy: %q", strategy)
	}
}

// checkInputs validates that data, hist and sched describe the same run.
func checkInputs(data *dataset.Dataset, hist *histogram.Histogram, sched parallel.Schedule) error {
	if data == nil || hist == nil {
		return apperrors.InvalidConfig("dataset and histogram are required")
	}
	if data.Range() != hist.Len() {
		return apperrors.InvalidConfig("dataset range %d does not match histogram range %d", data.Range(), hist.Len())
	}
	if sched != nil && sched.Len() != data.Len() {
		return apperrors.InvalidConfig("schedule covers %d indices, dataset has %d", sched.Len(), data.Len())
	}
	return nil
}

func startSpan(ctx context.Context, strategy Strategy, data *dataset.Dataset, sched parallel.Schedule) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("histobench.strategy", string(strategy)),
		attribute.Int("histobench.dataset_size", data.Len()),
		attribute.Int("histobench.range", data.Range()),
	}
	if sched != nil {
		attrs = append(attrs,
			attribute.String("histobench.policy", string(sched.Policy())),
			attribute.Int("histobench.workers", sched.Workers()),
			attribute.Int("histobench.chunk_size", sched.ChunkSize()),
		)
	}
	return telemetry.Tracer().Start(ctx, "accumulate."+string(strategy), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

// arenaSet keeps one scratch arena per histogram range so that scratch
// buffers are reused across runs of the same accumulator.
type arenaSet struct {
	mu     sync.Mutex
	arenas map[int]*histogram.Arena
}

func (s *arenaSet) get(rng int) (*histogram.Arena, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.arenas[rng]; ok {
		return a, nil
	}
	a, err := histogram.NewArena(rng)
	if err != nil {
		return nil, err
	}
	if s.arenas == nil {
		s.arenas = make(map[int]*histogram.Arena)
	}
	s.arenas[rng] = a
	return a, nil
}

// outstanding returns the number of scratch histograms not yet released.
func (s *arenaSet) outstanding() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, a := range s.arenas {
		n += a.Outstanding()
	}
	return n
}
