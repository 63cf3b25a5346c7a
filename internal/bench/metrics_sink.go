package bench

import (
	"github.com/histobench/internal/metrics"
	apperrors "github.com/histobench/pkg/errors"
)

// MetricsSink records samples and failures on a Prometheus recorder.
type MetricsSink struct {
	NopSink
	rec *metrics.Recorder
}

// NewMetricsSink creates a sink for rec.
func NewMetricsSink(rec *metrics.Recorder) *MetricsSink {
	return &MetricsSink{rec: rec}
}

func (m *MetricsSink) OnSample(s Sample) error {
	c := s.Config
	m.rec.ObserveRun(string(c.Strategy), string(c.Policy), c.Workers, c.ChunkSize, s.Elapsed)
	return nil
}

func (m *MetricsSink) OnResult(r *Result) error {
	if r.Err == nil {
		return nil
	}
	c := r.Config
	m.rec.ObserveFailure(string(c.Strategy), string(c.Policy), apperrors.GetErrorCode(r.Err))
	if apperrors.IsMismatch(r.Err) {
		m.rec.ObserveMismatch(string(c.Strategy))
	}
	return nil
}
