package bench

import (
	"fmt"
	"io"

	"github.com/histobench/internal/accumulator"
	"github.com/histobench/pkg/parallel"
	"github.com/histobench/pkg/utils"
)

// SectionTitle returns the heading of a section, e.g.
// "Histogram Computation using Dynamic Scheduling + Critical".
func SectionTitle(s accumulator.Strategy, p parallel.Policy) string {
	const prefix = "Histogram Computation using "
	if s == accumulator.StrategyAtomic {
		switch p {
		case parallel.PolicyStatic:
			return prefix + "Atomic Updates"
		case parallel.PolicyDynamic:
			return prefix + "Dynamic Scheduling"
		}
	}
	switch p {
	case parallel.PolicyStatic:
		return prefix + "Simple " + s.Title()
	case parallel.PolicyStaticChunked:
		return prefix + "Static Scheduling + " + s.Title()
	default:
		return prefix + "Dynamic Scheduling + " + s.Title()
	}
}

// TimesLabel returns the label that follows the thread count of a
// configuration, e.g. "Static Reduction Execution Times (Chunk Size 65536):".
func TimesLabel(cfg RunConfig) string {
	var name string
	switch {
	case cfg.Strategy == accumulator.StrategyAtomic && cfg.Policy == parallel.PolicyStatic:
		name = "Atomic"
	case cfg.Strategy == accumulator.StrategyAtomic && cfg.Policy == parallel.PolicyDynamic:
		name = "Dynamic"
	case cfg.Policy == parallel.PolicyStatic:
		name = "Simple " + cfg.Strategy.Title()
	case cfg.Policy == parallel.PolicyStaticChunked:
		name = "Static " + cfg.Strategy.Title()
	default:
		name = "Dynamic " + cfg.Strategy.Title()
	}
	if cfg.Policy.Chunked() {
		return fmt.Sprintf("%s Execution Times (Chunk Size %d):", name, cfg.ChunkSize)
	}
	return name + " Execution Times:"
}

// TextReporter prints the human-readable timing report: one line of seconds
// per run, grouped under section, chunk size and thread count headers.
type TextReporter struct {
	w      io.Writer
	runs   int
	logger utils.Logger
}

// NewTextReporter creates a reporter writing to w. runs is printed in the
// sequential header. Per-configuration summaries go to logger at info level.
func NewTextReporter(w io.Writer, runs int, logger utils.Logger) *TextReporter {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &TextReporter{w: w, runs: runs, logger: logger}
}

func (t *TextReporter) OnSection(sec *Section) error {
	if sec.Strategy == accumulator.StrategySequential {
		return t.printf("Sequential Execution Times for %d Runs:\n", t.runs)
	}
	return t.printf("\n--- %s ---\n", SectionTitle(sec.Strategy, sec.Policy))
}

func (t *TextReporter) OnBlock(sec *Section, b *Block) error {
	if !sec.Policy.Chunked() {
		return nil
	}
	return t.printf("\n-- Chunk Size: %d --\n", b.ChunkSize)
}

func (t *TextReporter) OnConfig(cfg RunConfig) error {
	if cfg.Strategy == accumulator.StrategySequential {
		return nil
	}
	return t.printf("\nThreads: %d | %s\n", cfg.Workers, TimesLabel(cfg))
}

func (t *TextReporter) OnSample(s Sample) error {
	if s.Config.Strategy == accumulator.StrategySequential {
		return t.printf("Run %d: %f seconds\n", s.Run, s.Elapsed.Seconds())
	}
	return t.printf("%f\n", s.Elapsed.Seconds())
}

func (t *TextReporter) OnResult(r *Result) error {
	if r.Err != nil {
		return t.printf("FAILED: %v\n", r.Err)
	}
	s := r.Summary
	t.logger.Info("%s: min=%.6fs median=%.6fs mean=%.6fs max=%.6fs stddev=%.6fs",
		r.Config.Key(), s.Min.Seconds(), s.Median.Seconds(), s.Mean.Seconds(), s.Max.Seconds(), s.StdDev.Seconds())
	return nil
}

func (t *TextReporter) Close() error { return nil }

func (t *TextReporter) printf(format string, args ...interface{}) error {
	if _, err := fmt.Fprintf(t.w, format, args...); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// VerifyReporter prints one OK or FAIL line per configuration.
type VerifyReporter struct {
	NopSink
	w      io.Writer
	passed int
	failed int
}

// NewVerifyReporter creates a reporter writing to w.
func NewVerifyReporter(w io.Writer) *VerifyReporter {
	return &VerifyReporter{w: w}
}

func (v *VerifyReporter) OnResult(r *Result) error {
	var err error
	if r.OK() {
		v.passed++
		_, err = fmt.Fprintf(v.w, "OK   %s\n", r.Config.Key())
	} else {
		v.failed++
		_, err = fmt.Fprintf(v.w, "FAIL %s: %v\n", r.Config.Key(), r.Err)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Counts returns the number of passed and failed configurations.
func (v *VerifyReporter) Counts() (passed, failed int) {
	return v.passed, v.failed
}
