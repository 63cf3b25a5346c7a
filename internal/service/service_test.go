package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/histobench/internal/bench"
	"github.com/histobench/internal/mock"
	"github.com/histobench/internal/repository"
	"github.com/histobench/pkg/compression"
	"github.com/histobench/pkg/config"
	apperrors "github.com/histobench/pkg/errors"
	"github.com/histobench/pkg/writer"
)

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Bench.DatasetSize = 1000
	cfg.Bench.Range = 16
	cfg.Bench.ThreadCounts = []int{1, 2}
	cfg.Bench.ChunkSizes = []int{64}
	cfg.Bench.Runs = 2
	cfg.Bench.Seed = 7
	cfg.Bench.GeneratorWorkers = 2
	return cfg
}

func TestService_New(t *testing.T) {
	t.Run("NilConfig", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.True(t, apperrors.IsInvalidConfig(err))
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := smallConfig(t)
		cfg.Bench.Runs = 0
		_, err := New(cfg, nil)
		assert.True(t, apperrors.IsInvalidConfig(err))
	})

	t.Run("WithoutLogger", func(t *testing.T) {
		svc, err := New(smallConfig(t), nil)
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.NoError(t, svc.HealthCheck(context.Background()))
	})
}

func TestService_Plan(t *testing.T) {
	svc, err := New(config.Default(), nil)
	require.NoError(t, err)

	plan, err := svc.Plan()
	require.NoError(t, err)
	// per strategy: 6 static + 3 chunks x 6 static_chunked + 3 chunks x 6 dynamic
	assert.Equal(t, 3*(6+18+18), plan.Len())
	require.Len(t, plan.Sections, 9)
	assert.Equal(t, "atomic", string(plan.Sections[0].Strategy))
	assert.Equal(t, "dynamic", string(plan.Sections[8].Policy))
}

func TestService_Dataset(t *testing.T) {
	svc, err := New(smallConfig(t), nil)
	require.NoError(t, err)

	d1, err := svc.Dataset()
	require.NoError(t, err)
	assert.Equal(t, 1000, d1.Len())
	assert.Equal(t, 16, d1.Range())

	d2, err := svc.Dataset()
	require.NoError(t, err)
	assert.Same(t, d1, d2)

	// same seed and worker count give the same values
	other, err := New(smallConfig(t), nil)
	require.NoError(t, err)
	d3, err := other.Dataset()
	require.NoError(t, err)
	assert.Equal(t, d1.Values(), d3.Values())
}

func TestService_SweepWithAllSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(t)
	cfg.Report.JSONPath = filepath.Join(dir, "out", "report.json")
	cfg.Report.Compression = "zstd"
	cfg.Report.StorageKey = "reports/"
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = filepath.Join(dir, "store")
	cfg.Database.Enabled = true
	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = filepath.Join(dir, "bench.db")

	var out bytes.Buffer
	svc, err := New(cfg, nil, WithOutput(&out), WithVersion("test"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))
	defer svc.Close(ctx)

	plan, err := svc.Plan()
	require.NoError(t, err)
	report, err := svc.Sweep(ctx, SweepOptions{Plan: plan})
	require.NoError(t, err)

	// 3 strategies x (2 static + 2 static_chunked + 2 dynamic)
	require.Len(t, report.Results, 18)
	for _, r := range report.Results {
		assert.Empty(t, r.Error, r.Key())
		assert.Len(t, r.Seconds, 2)
	}
	assert.Equal(t, "test", report.Version)
	assert.Equal(t, uint64(7), report.Seed)
	assert.True(t, report.Validated)
	assert.NotEmpty(t, report.Ranking)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "\n--- Histogram Computation using Atomic Updates ---\n"))
	assert.Contains(t, text, "\n--- Histogram Computation using Dynamic Scheduling + Reduction ---\n")
	assert.Contains(t, text, "\nThreads: 2 | Static Critical Execution Times (Chunk Size 64):\n")

	// report file carries the compression suffix
	path := cfg.Report.JSONPath + ".zst"
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, compression.TypeZstd, compression.DetectType(raw))
	decoded, err := writer.ReadFile[*bench.Report](path)
	require.NoError(t, err)
	assert.Equal(t, report.SessionID, decoded.SessionID)
	assert.Len(t, decoded.Results, 18)

	// uploaded copy
	uploaded := filepath.Join(cfg.Storage.LocalPath, "reports", report.SessionID+".json.zst")
	_, err = os.Stat(uploaded)
	assert.NoError(t, err)

	// persisted session and samples
	session, err := svc.db.Sessions.GetSession(ctx, report.SessionID)
	require.NoError(t, err)
	assert.Equal(t, repository.SessionCompleted, session.Status)
	assert.Equal(t, int64(1000), session.DatasetSize)
	assert.NotNil(t, session.FinishedAt)

	count, err := svc.db.Samples.CountSamples(ctx, report.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(36), count)
}

func TestService_SweepVerify(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Bench.Strategies = []string{"critical"}
	cfg.Bench.Policies = []string{"static", "dynamic"}

	var out bytes.Buffer
	svc, err := New(cfg, nil, WithOutput(&out))
	require.NoError(t, err)

	plan, err := svc.Plan()
	require.NoError(t, err)
	verify := bench.NewVerifyReporter(&out)
	report, err := svc.Sweep(context.Background(), SweepOptions{
		Plan:      plan,
		Runs:      1,
		KeepGoing: true,
		Quiet:     true,
		Sinks:     []bench.Sink{verify},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Runs)

	passed, failed := verify.Counts()
	assert.Equal(t, 4, passed)
	assert.Zero(t, failed)
	assert.Equal(t, "OK   critical/static/t1\n"+
		"OK   critical/static/t2\n"+
		"OK   critical/dynamic/t1/c64\n"+
		"OK   critical/dynamic/t2/c64\n", out.String())
}

func TestService_SweepSequential(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Bench.Runs = 3

	var out bytes.Buffer
	svc, err := New(cfg, nil, WithOutput(&out))
	require.NoError(t, err)

	report, err := svc.Sweep(context.Background(), SweepOptions{Plan: bench.SequentialPlan()})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Sequential Execution Times for 3 Runs:", lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "Run 3: "))
	assert.True(t, strings.HasSuffix(lines[3], " seconds"))
}

func TestService_SweepRequiresPlan(t *testing.T) {
	svc, err := New(smallConfig(t), nil)
	require.NoError(t, err)
	_, err = svc.Sweep(context.Background(), SweepOptions{})
	assert.True(t, apperrors.IsInvalidConfig(err))
}

func TestService_MetricsServer(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Bench.ThreadCounts = []int{2}
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:0"

	svc, err := New(cfg, nil, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx))

	plan, err := svc.Plan()
	require.NoError(t, err)
	_, err = svc.Sweep(ctx, SweepOptions{Plan: plan, Runs: 1})
	require.NoError(t, err)

	resp, err := http.Get("http://" + svc.metricsServer.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "histobench_runs_total")

	require.NoError(t, svc.Close(ctx))
	assert.Nil(t, svc.metricsServer)
}

func TestService_MetricsAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := smallConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ln.Addr().String()

	svc, err := New(cfg, nil, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	ctx := context.Background()
	defer svc.Close(ctx)

	err = svc.Initialize(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidConfig(err))
	assert.Contains(t, err.Error(), ln.Addr().String())
	assert.Nil(t, svc.recorder)
	assert.Nil(t, svc.metricsServer)
}

func TestService_Profiling(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Profiling.Enabled = true
	cfg.Profiling.Dir = t.TempDir()
	cfg.Profiling.Profiles = []string{"cpu", "mutex"}
	cfg.Bench.Strategies = []string{"critical"}
	cfg.Bench.Policies = []string{"static"}

	svc, err := New(cfg, nil, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	plan, err := svc.Plan()
	require.NoError(t, err)

	_, err = svc.Sweep(context.Background(), SweepOptions{Plan: plan})
	require.NoError(t, err)

	for _, name := range []string{"cpu.pprof", "mutex.pprof"} {
		_, err := os.Stat(filepath.Join(cfg.Profiling.Dir, name))
		assert.NoError(t, err, name)
	}
}

func TestReportKey(t *testing.T) {
	tests := []struct {
		key  string
		t    compression.Type
		want string
	}{
		{"reports/", compression.TypeNone, "reports/abc.json"},
		{"reports/", compression.TypeGzip, "reports/abc.json.gz"},
		{"latest.json", compression.TypeZstd, "latest.json.zst"},
		{"latest.json.gz", compression.TypeGzip, "latest.json.gz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reportKey(tt.key, "abc", tt.t))
	}
}

func TestService_PublishUpload(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Report.StorageKey = "runs/latest.json"
	cfg.Report.Compression = "gzip"

	svc, err := New(cfg, nil)
	require.NoError(t, err)

	store := &mock.MockStorage{}
	store.On("Put", testifymock.Anything, "runs/latest.json.gz",
		testifymock.MatchedBy(func(b []byte) bool { return compression.DetectType(b) == compression.TypeGzip }),
		"application/gzip").Return(nil).Once()
	store.On("URL", "runs/latest.json.gz").Return("cos://bucket/runs/latest.json.gz")
	svc.storage = store

	require.NoError(t, svc.publish(context.Background(), &bench.Report{SessionID: "abc"}))
	store.AssertExpectations(t)
}

func TestService_PublishUploadError(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Report.StorageKey = "runs/"

	svc, err := New(cfg, nil)
	require.NoError(t, err)

	store := &mock.MockStorage{}
	store.On("Put", testifymock.Anything, "runs/abc.json", testifymock.Anything, "application/json").
		Return(apperrors.Wrap(apperrors.CodeStorageError, "put runs/abc.json", errors.New("403")))
	svc.storage = store

	err = svc.publish(context.Background(), &bench.Report{SessionID: "abc"})
	assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err))
}

func TestService_SweepSessionError(t *testing.T) {
	svc, err := New(smallConfig(t), nil, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	sessions := &mock.MockSessionRepository{}
	sessions.On("CreateSession", testifymock.Anything, testifymock.Anything).Return(errors.New("table missing"))
	svc.db = &repository.Repositories{Sessions: sessions, Samples: &mock.MockSampleRepository{}}

	_, err = svc.Sweep(context.Background(), SweepOptions{Plan: bench.SequentialPlan()})
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	sessions.AssertExpectations(t)
}

func TestService_SweepFinishesFailedSession(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Bench.Strategies = []string{"atomic"}
	cfg.Bench.Policies = []string{"static"}
	cfg.Bench.ThreadCounts = []int{2}

	svc, err := New(cfg, nil, WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	sessions := &mock.MockSessionRepository{}
	sessions.On("CreateSession", testifymock.Anything, testifymock.Anything).Return(nil)
	sessions.On("FinishSession", testifymock.Anything, testifymock.Anything, repository.SessionFailed,
		testifymock.MatchedBy(func(msg string) bool { return strings.Contains(msg, "DATABASE_ERROR") }),
		testifymock.Anything).Return(nil).Once()
	samples := &mock.MockSampleRepository{}
	samples.ExpectSaveSamples(errors.New("disk full"))
	svc.db = &repository.Repositories{Sessions: sessions, Samples: samples}

	plan, err := svc.Plan()
	require.NoError(t, err)
	report, err := svc.Sweep(context.Background(), SweepOptions{Plan: plan})
	require.Error(t, err)
	assert.Contains(t, report.Error, "disk full")
	sessions.AssertExpectations(t)
}
