package bench

import (
	"time"

	"github.com/histobench/internal/statistics"
)

// Sample is one timed run.
type Sample struct {
	Config  RunConfig
	Run     int // 1-based
	Elapsed time.Duration
	Valid   bool
}

// Result holds every run of one configuration.
type Result struct {
	Config  RunConfig
	Samples []time.Duration
	Summary statistics.Summary
	Err     error
}

// OK reports whether every run of the configuration succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Sink receives sweep events in execution order. A sink error aborts the
// sweep.
type Sink interface {
	OnSection(sec *Section) error
	OnBlock(sec *Section, b *Block) error
	OnConfig(cfg RunConfig) error
	OnSample(s Sample) error
	OnResult(r *Result) error
	// Close is called once after the last event, also when the sweep fails.
	Close() error
}

// NopSink implements Sink with no-ops; embed it to handle a subset of events.
type NopSink struct{}

func (NopSink) OnSection(*Section) error { return nil }
func (NopSink) OnBlock(*Section, *Block) error { return nil }
func (NopSink) OnConfig(RunConfig) error { return nil }
func (NopSink) OnSample(Sample) error { return nil }
func (NopSink) OnResult(*Result) error { return nil }
func (NopSink) Close() error { return nil }

// multiSink fans events out to several sinks, stopping at the first error.
type multiSink []Sink

func (m multiSink) each(fn func(Sink) error) error {
	for _, s := range m {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) OnSection(sec *Section) error {
	return m.each(func(s Sink) error { return s.OnSection(sec) })
}

func (m multiSink) OnBlock(sec *Section, b *Block) error {
	return m.each(func(s Sink) error { return s.OnBlock(sec, b) })
}

func (m multiSink) OnConfig(cfg RunConfig) error {
	return m.each(func(s Sink) error { return s.OnConfig(cfg) })
}

func (m multiSink) OnSample(smp Sample) error {
	return m.each(func(s Sink) error { return s.OnSample(smp) })
}

func (m multiSink) OnResult(r *Result) error {
	return m.each(func(s Sink) error { return s.OnResult(r) })
}

// Close closes every sink and returns the first error.
func (m multiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
