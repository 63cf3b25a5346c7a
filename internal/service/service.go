// Package service wires configuration, the optional result stores and the
// benchmark harness into a sweep.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/histobench/internal/accumulator"
	"github.com/histobench/internal/bench"
	"github.com/histobench/internal/dataset"
	"github.com/histobench/internal/metrics"
	"github.com/histobench/internal/repository"
	"github.com/histobench/internal/storage"
	"github.com/histobench/pkg/compression"
	"github.com/histobench/pkg/config"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/parallel"
	"github.com/histobench/pkg/profiling"
	"github.com/histobench/pkg/telemetry"
	"github.com/histobench/pkg/utils"
	"github.com/histobench/pkg/writer"
)

// Service runs benchmark sweeps.
type Service struct {
	config  *config.Config
	logger  utils.Logger
	version string
	out     io.Writer
	clock   utils.Clock

	db            *repository.Repositories
	storage       storage.Storage
	recorder      *metrics.Recorder
	metricsServer *metrics.Server
	shutdownOTel  telemetry.ShutdownFunc

	data *dataset.Dataset
}

// Option configures a Service.
type Option func(*Service)

// WithOutput sets where the text report is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		s.out = w
	}
}

// WithClock sets the clock runs and phases are timed with.
func WithClock(clock utils.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithVersion sets the version recorded in reports, sessions and traces.
func WithVersion(version string) Option {
	return func(s *Service) {
		s.version = version
	}
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.InvalidConfig("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	s := &Service{
		config: cfg,
		logger: logger,
		out:    os.Stdout,
		clock:  utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize sets up telemetry and every sink enabled in the configuration.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Debug("Initializing service components...")

	shutdown, err := telemetry.Init(ctx, telemetry.WithServiceVersion(s.version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.shutdownOTel = shutdown

	if s.config.Database.Enabled {
		if err := s.initDatabase(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if s.config.Report.StorageKey != "" {
		if err := s.initStorage(); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	if s.config.Metrics.Enabled {
		if err := s.initMetrics(); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	s.logger.Debug("Service components initialized")
	return nil
}

// initDatabase opens the result store and migrates its schema.
func (s *Service) initDatabase() error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	dbConfig := &repository.DBConfig{
		Type:     s.config.Database.Type,
		DSN:      s.config.Database.DSN,
		Host:     s.config.Database.Host,
		Port:     s.config.Database.Port,
		Database: s.config.Database.Database,
		User:     s.config.Database.User,
		Password: s.config.Database.Password,
		MaxConns: s.config.Database.MaxConns,
	}

	repos, err := repository.Open(dbConfig)
	if err != nil {
		return err
	}
	s.db = repos
	s.logger.Info("Database connection established")
	return nil
}

// initStorage creates the report upload backend.
func (s *Service) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.New(&s.config.Storage)
	if err != nil {
		return err
	}
	s.storage = store
	return nil
}

func (s *Service) initMetrics() error {
	recorder := metrics.NewRecorder()

	var mounts []func(*http.ServeMux)
	if s.config.Profiling.Enabled {
		mounts = append(mounts, profiling.RegisterHandlers)
	}
	srv, err := recorder.Serve(s.config.Metrics.Addr, mounts...)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidConfig, "metrics server", err)
	}
	s.recorder = recorder
	s.metricsServer = srv
	s.logger.Info("Serving metrics on %s", srv.Addr())
	return nil
}

// Close stops the metrics server, flushes traces and closes the database.
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.metricsServer != nil {
		keep(s.metricsServer.Shutdown(ctx))
		for err := range s.metricsServer.Err() {
			keep(err)
		}
		s.metricsServer = nil
	}
	if s.shutdownOTel != nil {
		keep(s.shutdownOTel(ctx))
		s.shutdownOTel = nil
	}
	if s.db != nil {
		keep(s.db.Close())
		s.db = nil
	}
	return firstErr
}

// HealthCheck checks the configured result store.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Dataset returns the benchmark input, generating it on first use.
func (s *Service) Dataset() (*dataset.Dataset, error) {
	if s.data != nil {
		return s.data, nil
	}

	b := s.config.Bench
	seed := b.Seed
	if seed == 0 {
		seed = uint64(s.clock.Now().UnixNano())
		s.config.Bench.Seed = seed
	}

	s.logger.Info("Generating %d values in [0, %d) with seed %d", b.DatasetSize, b.Range, seed)
	data, err := dataset.Generate(dataset.GenerateOptions{
		Size:    b.DatasetSize,
		Range:   b.Range,
		Seed:    seed,
		Workers: b.GeneratorWorkers,
	})
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.SetDataset(data.Len(), data.Bytes())
	}
	s.data = data
	return data, nil
}

// SetDataset replaces the generated dataset.
func (s *Service) SetDataset(data *dataset.Dataset) {
	s.data = data
	if s.recorder != nil && data != nil {
		s.recorder.SetDataset(data.Len(), data.Bytes())
	}
}

// Plan builds the sweep plan from the bench configuration.
func (s *Service) Plan() (*bench.Plan, error) {
	b := s.config.Bench

	strategies := make([]accumulator.Strategy, 0, len(b.Strategies))
	for _, name := range b.Strategies {
		st, err := accumulator.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, st)
	}

	policies := make([]parallel.Policy, 0, len(b.Policies))
	for _, name := range b.Policies {
		p, err := parallel.ParsePolicy(name)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	return bench.NewPlan(bench.PlanParams{
		Strategies:   strategies,
		Policies:     policies,
		ThreadCounts: b.ThreadCounts,
		ChunkSizes:   b.ChunkSizes,
	})
}

// SweepOptions selects what a sweep runs and how it reports.
type SweepOptions struct {
	Plan *bench.Plan
	// Runs overrides bench.runs when positive.
	Runs int
	// KeepGoing records failing configurations and continues.
	KeepGoing bool
	// Quiet disables the text report.
	Quiet bool
	// Sinks receive the sweep events in addition to the configured ones.
	Sinks []bench.Sink
}

// Sweep runs a plan against the dataset and returns the report. The report
// is returned even when the sweep fails; the error is recorded in it.
func (s *Service) Sweep(ctx context.Context, opts SweepOptions) (*bench.Report, error) {
	if opts.Plan == nil {
		return nil, apperrors.InvalidConfig("sweep plan is required")
	}
	runs := s.config.Bench.Runs
	if opts.Runs > 0 {
		runs = opts.Runs
	}

	timer := utils.NewTimer("sweep", utils.WithLogger(s.logger), utils.WithClock(s.clock))
	defer timer.PrintSummary()

	var data *dataset.Dataset
	if _, err := timer.TimeFunc("dataset", func() error {
		var err error
		data, err = s.Dataset()
		return err
	}); err != nil {
		return nil, err
	}

	builder := bench.NewReportBuilder(bench.ReportMeta{
		Version:     s.version,
		DatasetSize: data.Len(),
		Range:       data.Range(),
		Seed:        s.config.Bench.Seed,
		Runs:        runs,
		Validated:   s.config.Bench.Validate,
	}, s.clock.Now())
	sessionID := builder.SessionID()
	logger := s.logger.WithField("session", sessionID)

	sinks := []bench.Sink{builder}
	if !opts.Quiet {
		sinks = append(sinks, bench.NewTextReporter(s.out, runs, logger))
	}
	if s.recorder != nil {
		sinks = append(sinks, bench.NewMetricsSink(s.recorder))
	}
	if s.db != nil {
		if err := s.createSession(ctx, sessionID, data, runs); err != nil {
			return nil, err
		}
		sinks = append(sinks, bench.NewRepositorySink(ctx, s.db.Samples, sessionID))
	}
	sinks = append(sinks, opts.Sinks...)

	runner, err := bench.NewRunner(data,
		bench.WithRuns(runs),
		bench.WithValidation(s.config.Bench.Validate),
		bench.WithKeepGoing(opts.KeepGoing),
		bench.WithClock(s.clock),
		bench.WithLogger(logger),
		bench.WithSinks(sinks...),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Running %d configurations x %d runs", opts.Plan.Len(), runs)
	_, sweepErr := timer.TimeFunc("runs", func() error {
		return s.profile(func() error {
			_, err := runner.Run(ctx, opts.Plan)
			return err
		})
	})

	report := builder.Finish(s.clock.Now(), runner.OracleTime(), sweepErr)

	if s.db != nil {
		if err := s.finishSession(ctx, sessionID, sweepErr); err != nil {
			logger.Error("Failed to finish session: %v", err)
		}
	}

	if _, err := timer.TimeFunc("report", func() error {
		return s.publish(ctx, report)
	}); err != nil && sweepErr == nil {
		return report, err
	}
	return report, sweepErr
}

func (s *Service) profile(fn func() error) error {
	if !s.config.Profiling.Enabled {
		return fn()
	}

	types, err := profiling.ParseProfileTypes(s.config.Profiling.Profiles...)
	if err != nil {
		return err
	}
	files, err := profiling.Run(profiling.Config{
		Dir:      s.config.Profiling.Dir,
		Profiles: types,
	}, s.logger, fn)
	for _, f := range files {
		s.logger.Info("Wrote profile %s", f)
	}
	return err
}

func (s *Service) createSession(ctx context.Context, sessionID string, data *dataset.Dataset, runs int) error {
	host, _ := os.Hostname()
	b := s.config.Bench
	params, err := json.Marshal(map[string]interface{}{
		"seed":          b.Seed,
		"runs":          runs,
		"thread_counts": b.ThreadCounts,
		"chunk_sizes":   b.ChunkSizes,
		"strategies":    b.Strategies,
		"policies":      b.Policies,
		"validate":      b.Validate,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session params: %w", err)
	}
	session := &repository.BenchSession{
		SessionID:   sessionID,
		Host:        host,
		Version:     s.version,
		GoMaxProcs:  runtime.GOMAXPROCS(0),
		DatasetSize: int64(data.Len()),
		Range:       data.Range(),
		Status:      repository.SessionRunning,
		Params:      repository.JSONField(params),
		StartedAt:   s.clock.Now(),
	}
	if err := s.db.Sessions.CreateSession(ctx, session); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create session", err)
	}
	return nil
}

func (s *Service) finishSession(ctx context.Context, sessionID string, sweepErr error) error {
	status := repository.SessionCompleted
	msg := ""
	if sweepErr != nil {
		status = repository.SessionFailed
		msg = sweepErr.Error()
	}
	return s.db.Sessions.FinishSession(ctx, sessionID, status, msg, s.clock.Now())
}

// publish writes the JSON report to the configured file and storage key.
func (s *Service) publish(ctx context.Context, report *bench.Report) error {
	rc := s.config.Report
	if rc.JSONPath == "" && s.storage == nil {
		return nil
	}

	ctype, err := compression.ParseType(rc.Compression)
	if err != nil {
		return err
	}
	comp, err := compression.New(ctype, compression.LevelDefault)
	if err != nil {
		return err
	}
	defer compression.Close(comp)
	w := writer.NewPrettyJSONWriter[*bench.Report]().WithCompressor(comp)

	if rc.JSONPath != "" {
		p := withExtension(rc.JSONPath, ctype)
		res, err := w.WriteToFile(report, p)
		if err != nil {
			return err
		}
		s.logger.Info("Wrote report %s (%d bytes, ratio %.2f)", p, res.CompressedSize, res.Ratio())
	}

	if s.storage != nil {
		key := reportKey(rc.StorageKey, report.SessionID, ctype)
		body, _, err := w.Encode(report)
		if err != nil {
			return err
		}
		if err := s.storage.Put(ctx, key, bytes.NewReader(body), storage.ContentType(key)); err != nil {
			return err
		}
		s.logger.Info("Uploaded report to %s", s.storage.URL(key))
	}
	return nil
}

// withExtension appends the compression suffix unless p already has it.
func withExtension(p string, t compression.Type) string {
	ext := t.Extension()
	if ext == "" || strings.HasSuffix(p, ext) {
		return p
	}
	return p + ext
}

// reportKey resolves the upload key. A key ending in "/" is a prefix and
// gets "<session>.json" appended.
func reportKey(key, sessionID string, t compression.Type) string {
	if strings.HasSuffix(key, "/") {
		key = path.Join(key, sessionID+".json")
	}
	return withExtension(key, t)
}
