// Package metrics exposes benchmark observations as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so that several recorders (one per test,
// one per process) never collide on registration.
type Recorder struct {
	registry *prometheus.Registry

	runDuration        *prometheus.HistogramVec
	runsTotal          *prometheus.CounterVec
	failuresTotal      *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	datasetElements    prometheus.Gauge
	datasetBytes       prometheus.Gauge
}

// NewRecorder creates a recorder and registers its collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "histobench_run_duration_seconds",
			Help:    "Wall-clock time of one histogram run",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"strategy", "policy", "threads", "chunk_size"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "histobench_runs_total",
			Help: "Completed histogram runs",
		}, []string{"strategy", "policy"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "histobench_run_failures_total",
			Help: "Runs that ended with an error, by error code",
		}, []string{"strategy", "policy", "code"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "histobench_validation_failures_total",
			Help: "Runs whose histogram differed from the sequential oracle",
		}, []string{"strategy"}),
		datasetElements: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "histobench_dataset_elements",
			Help: "Number of elements in the current dataset",
		}),
		datasetBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "histobench_dataset_bytes",
			Help: "Memory held by the current dataset",
		}),
	}

	r.registry.MustRegister(
		r.runDuration,
		r.runsTotal,
		r.failuresTotal,
		r.validationFailures,
		r.datasetElements,
		r.datasetBytes,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records one successful run.
func (r *Recorder) ObserveRun(strategy, policy string, threads, chunkSize int, elapsed time.Duration) {
	r.runDuration.WithLabelValues(strategy, policy, strconv.Itoa(threads), strconv.Itoa(chunkSize)).Observe(elapsed.Seconds())
	r.runsTotal.WithLabelValues(strategy, policy).Inc()
}

// ObserveFailure records a failed run.
func (r *Recorder) ObserveFailure(strategy, policy, code string) {
	r.failuresTotal.WithLabelValues(strategy, policy, code).Inc()
}

// ObserveMismatch records a run that failed oracle validation.
func (r *Recorder) ObserveMismatch(strategy string) {
	r.validationFailures.WithLabelValues(strategy).Inc()
}

// SetDataset records the size of the dataset under test.
func (r *Recorder) SetDataset(elements int, bytes int64) {
	r.datasetElements.Set(float64(elements))
	r.datasetBytes.Set(float64(bytes))
}

// Handler returns an HTTP handler serving the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics in the background.
type Server struct {
	srv  *http.Server
	addr string
	errs chan error
}

// Serve binds addr and starts an HTTP server exposing /metrics on it. Each
// mount may register additional handlers on the same mux. A bind failure is
// returned directly; later serve errors arrive on Err.
func (r *Recorder) Serve(addr string, mounts ...func(*http.ServeMux)) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	for _, mount := range mounts {
		mount(mux)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s := &Server{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr: ln.Addr().String(),
		errs: make(chan error, 1),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()
	return s, nil
}

// Addr returns the bound address, with the port resolved when addr asked
// for any free one.
func (s *Server) Addr() string {
	return s.addr
}

// Err returns a channel that yields the listen error, if any, and is closed
// when the server stops.
func (s *Server) Err() <-chan error {
	return s.errs
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
