package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	r := NewRecorder()

	r.ObserveRun("atomic", "dynamic", 4, 32768, 80*time.Millisecond)
	r.ObserveRun("atomic", "dynamic", 4, 32768, 90*time.Millisecond)
	r.ObserveRun("critical", "static", 2, 0, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("atomic", "dynamic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("critical", "static")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.runDuration))
}

func TestObserveFailures(t *testing.T) {
	r := NewRecorder()

	r.ObserveFailure("reduction", "static", "WORKER_FAILURE")
	r.ObserveMismatch("critical")
	r.ObserveMismatch("critical")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("reduction", "static", "WORKER_FAILURE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.validationFailures.WithLabelValues("critical")))
}

func TestSetDataset(t *testing.T) {
	r := NewRecorder()
	r.SetDataset(1000, 4000)

	assert.Equal(t, 1000.0, testutil.ToFloat64(r.datasetElements))
	assert.Equal(t, 4000.0, testutil.ToFloat64(r.datasetBytes))
}

func TestRecordersAreIndependent(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()
	a.ObserveMismatch("atomic")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.validationFailures.WithLabelValues("atomic")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.validationFailures.WithLabelValues("atomic")))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun("atomic", "static", 2, 0, time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "histobench_runs_total")
	assert.Contains(t, string(body), `strategy="atomic"`)
}

func TestServeShutdown(t *testing.T) {
	r := NewRecorder()
	s, err := r.Serve("127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	for err := range s.Err() {
		assert.NoError(t, err)
	}
}

func TestServe_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s, err := NewRecorder().Serve(ln.Addr().String())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), ln.Addr().String())
}
