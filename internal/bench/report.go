package bench

import (
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/histobench/internal/statistics"
	apperrors "github.com/histobench/pkg/errors"
)

// Report is the machine-readable outcome of a sweep.
type Report struct {
	SessionID   string    `json:"session_id"`
	Version     string    `json:"version,omitempty"`
	Host        string    `json:"host"`
	GoVersion   string    `json:"go_version"`
	NumCPU      int       `json:"num_cpu"`
	GoMaxProcs  int       `json:"gomaxprocs"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DatasetSize int       `json:"dataset_size"`
	Range       int       `json:"range"`
	Seed        uint64    `json:"seed"`
	Runs        int       `json:"runs"`
	Validated   bool      `json:"validated"`

	// Baseline is the median duration of the single-goroutine oracle over
	// Runs passes, zero when validation was off.
	Baseline time.Duration `json:"baseline_ns"`

	Results []ResultRecord     `json:"results"`
	Ranking []statistics.Entry `json:"ranking,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ResultRecord is one configuration in a Report.
type ResultRecord struct {
	RunConfig
	Seconds []float64          `json:"seconds"`
	Summary statistics.Summary `json:"summary"`
	Speedup float64            `json:"speedup,omitempty"`
	Code    string             `json:"error_code,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ReportMeta carries the sweep parameters recorded in a Report.
type ReportMeta struct {
	SessionID   string
	Version     string
	DatasetSize int
	Range       int
	Seed        uint64
	Runs        int
	Validated   bool
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ReportBuilder is a sink that collects results into a Report.
type ReportBuilder struct {
	NopSink
	report Report
	topN   int
}

// NewReportBuilder starts a report. An empty session id is replaced by a
// new one.
func NewReportBuilder(meta ReportMeta, startedAt time.Time) *ReportBuilder {
	if meta.SessionID == "" {
		meta.SessionID = NewSessionID()
	}
	host, _ := os.Hostname()
	return &ReportBuilder{
		topN: 10,
		report: Report{
			SessionID:   meta.SessionID,
			Version:     meta.Version,
			Host:        host,
			GoVersion:   runtime.Version(),
			NumCPU:      runtime.NumCPU(),
			GoMaxProcs:  runtime.GOMAXPROCS(0),
			StartedAt:   startedAt,
			DatasetSize: meta.DatasetSize,
			Range:       meta.Range,
			Seed:        meta.Seed,
			Runs:        meta.Runs,
			Validated:   meta.Validated,
		},
	}
}

// SessionID returns the report's session id.
func (b *ReportBuilder) SessionID() string {
	return b.report.SessionID
}

func (b *ReportBuilder) OnResult(r *Result) error {
	rec := ResultRecord{
		RunConfig: r.Config,
		Seconds:   make([]float64, len(r.Samples)),
		Summary:   r.Summary,
	}
	for i, d := range r.Samples {
		rec.Seconds[i] = d.Seconds()
	}
	if r.Err != nil {
		rec.Code = apperrors.GetErrorCode(r.Err)
		rec.Error = apperrors.GetErrorMessage(r.Err)
	}
	b.report.Results = append(b.report.Results, rec)
	return nil
}

// Finish completes the report. baseline is the sequential reference time
// speedups are computed against; sweepErr is recorded when non-nil.
func (b *ReportBuilder) Finish(finishedAt time.Time, baseline time.Duration, sweepErr error) *Report {
	rep := b.report
	rep.FinishedAt = finishedAt
	rep.Baseline = baseline
	if sweepErr != nil {
		rep.Error = sweepErr.Error()
	}

	base := statistics.Summary{Median: baseline}
	entries := make([]statistics.Entry, 0, len(rep.Results))
	rep.Results = append([]ResultRecord(nil), rep.Results...)
	for i := range rep.Results {
		rec := &rep.Results[i]
		if rec.Error != "" || rec.Summary.Count == 0 {
			continue
		}
		if baseline > 0 {
			rec.Speedup = rec.Summary.Speedup(base)
		}
		entries = append(entries, statistics.Entry{Name: rec.Key(), Summary: rec.Summary})
	}
	rep.Ranking = statistics.NewRankingCalculator(statistics.WithTopN(b.topN)).Rank(entries, base)
	return &rep
}
