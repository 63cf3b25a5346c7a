package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one named, timed stage of a sweep.
type Phase struct {
	Name      string
	StartTime time.Time
	Duration  time.Duration
	completed bool
}

// PhaseTimer stops a single phase; intended for use with defer.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop stops the phase and records the duration.
// Safe to call multiple times; only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.StopPhase(pt.name)
}

// Timer records the duration of sequential phases, e.g. dataset generation,
// the oracle pass and each strategy section of a sweep.
type Timer struct {
	mu      sync.Mutex
	name    string
	start   time.Time
	phases  map[string]*Phase
	order   []string
	logger  Logger
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger PrintSummary writes to.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = logger
	}
}

// WithEnabled sets whether the timer is enabled.
// When disabled, all operations are no-ops.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*Phase),
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// Start starts timing a new phase. Starting an existing name restarts it.
func (t *Timer) Start(name string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, name: name}
	if !t.enabled {
		return pt
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.phases[name]; !ok {
		t.order = append(t.order, name)
	}
	t.phases[name] = &Phase{Name: name, StartTime: t.clock.Now()}
	return pt
}

// StopPhase stops timing a phase and returns its duration.
func (t *Timer) StopPhase(name string) time.Duration {
	if !t.enabled {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	phase, ok := t.phases[name]
	if !ok {
		return 0
	}
	if !phase.completed {
		phase.Duration = t.clock.Since(phase.StartTime)
		phase.completed = true
	}
	return phase.Duration
}

// Duration returns the recorded duration of a phase.
func (t *Timer) Duration(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if phase, ok := t.phases[name]; ok {
		return phase.Duration
	}
	return 0
}

// Phases returns copies of all phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Phase, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.phases[name])
	}
	return out
}

// TimeFunc times fn as a phase and returns its error.
func (t *Timer) TimeFunc(name string, fn func() error) (time.Duration, error) {
	pt := t.Start(name)
	err := fn()
	return pt.Stop(), err
}

// Summary returns a formatted summary of all phases.
func (t *Timer) Summary() string {
	if !t.enabled {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s Timing Summary ===\n", t.name)
	for i, p := range t.Phases() {
		fmt.Fprintf(&sb, "Phase %d - %s: %v\n", i+1, p.Name, p.Duration)
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.clock.Since(t.start))
	return sb.String()
}

// PrintSummary writes the summary to the configured logger at debug level.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.logger == nil {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(t.Summary(), "\n"), "\n") {
		t.logger.Debug("%s", line)
	}
}
