package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/histobench/pkg/utils"
)

// Config describes one capture.
type Config struct {
	Dir      string
	Profiles []ProfileType

	// BlockRate and MutexFraction are passed to the runtime while the
	// capture is active. Zero means 1 (record every event).
	BlockRate     int
	MutexFraction int
}

// Capture records profiles between Start and Stop.
type Capture struct {
	cfg    Config
	logger utils.Logger

	mu        sync.Mutex
	cpuFile   *os.File
	prevMutex int
	started   time.Time
	stopped   bool
}

// only one CPU profile may run per process
var cpuMu sync.Mutex

// Start creates the output directory, enables the requested sampling and
// begins the CPU profile.
func Start(cfg Config, logger utils.Logger) (*Capture, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("profile directory is required")
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfileTypes()
	}
	if cfg.BlockRate <= 0 {
		cfg.BlockRate = 1
	}
	if cfg.MutexFraction <= 0 {
		cfg.MutexFraction = 1
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	c := &Capture{cfg: cfg, logger: logger, started: time.Now()}

	if c.has(ProfileBlock) {
		runtime.SetBlockProfileRate(cfg.BlockRate)
	}
	if c.has(ProfileMutex) {
		c.prevMutex = runtime.SetMutexProfileFraction(cfg.MutexFraction)
	}

	if c.has(ProfileCPU) {
		if !cpuMu.TryLock() {
			c.restoreRates()
			return nil, fmt.Errorf("a CPU profile is already running")
		}
		f, err := os.Create(filepath.Join(cfg.Dir, ProfileCPU.FileName()))
		if err != nil {
			cpuMu.Unlock()
			c.restoreRates()
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			cpuMu.Unlock()
			c.restoreRates()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		c.cpuFile = f
	}

	logger.Debug("profiling started: dir=%s profiles=%v", cfg.Dir, cfg.Profiles)
	return c, nil
}

// Stop ends the CPU profile, writes the snapshot profiles and restores the
// runtime sampling rates. It returns the written file paths. Calling Stop
// more than once is a no-op.
func (c *Capture) Stop() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, nil
	}
	c.stopped = true
	defer c.restoreRates()

	var files []string
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.cpuFile != nil {
		pprof.StopCPUProfile()
		cpuMu.Unlock()
		keep(c.cpuFile.Close())
		files = append(files, c.cpuFile.Name())
	}

	for _, pt := range c.cfg.Profiles {
		if pt == ProfileCPU {
			continue
		}
		path, err := c.snapshot(pt)
		if err != nil {
			c.logger.Warn("profile %s: %v", pt, err)
			keep(err)
			continue
		}
		files = append(files, path)
	}

	c.logger.Info("profiling stopped after %s, %d files in %s",
		time.Since(c.started).Round(time.Millisecond), len(files), c.cfg.Dir)
	return files, firstErr
}

// Dir returns the output directory.
func (c *Capture) Dir() string {
	return c.cfg.Dir
}

func (c *Capture) snapshot(pt ProfileType) (string, error) {
	p := pprof.Lookup(string(pt))
	if p == nil {
		return "", fmt.Errorf("%s profile not found", pt)
	}
	if pt == ProfileHeap {
		runtime.GC()
	}

	path := filepath.Join(c.cfg.Dir, pt.FileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s profile: %w", pt, err)
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	return path, f.Close()
}

func (c *Capture) has(pt ProfileType) bool {
	for _, p := range c.cfg.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

func (c *Capture) restoreRates() {
	if c.has(ProfileBlock) {
		runtime.SetBlockProfileRate(0)
	}
	if c.has(ProfileMutex) {
		runtime.SetMutexProfileFraction(c.prevMutex)
	}
}

// Run starts a capture, runs fn and stops the capture. The error of fn takes
// precedence over a profile write error.
func Run(cfg Config, logger utils.Logger, fn func() error) ([]string, error) {
	c, err := Start(cfg, logger)
	if err != nil {
		return nil, err
	}
	runErr := fn()
	files, stopErr := c.Stop()
	if runErr != nil {
		return files, runErr
	}
	return files, stopErr
}
