package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/histobench/internal/service"
	"github.com/histobench/pkg/config"
)

// benchFlags are the sweep parameters shared by run, verify and sequential.
// Only flags set on the command line override the loaded configuration.
type benchFlags struct {
	size       int
	rng        int
	threads    []int
	chunks     []int
	runs       int
	strategies []string
	policies   []string
	seed       uint64
	noValidate bool
	jsonReport string
	compress   string
	metrics    string
}

func (f *benchFlags) register(fs *pflag.FlagSet) {
	fs.IntVarP(&f.size, "size", "n", 100_000_000, "Number of dataset elements")
	fs.IntVarP(&f.rng, "range", "r", 256, "Number of histogram bins; values are drawn from [0, range)")
	fs.IntSliceVarP(&f.threads, "threads", "t", []int{2, 4, 6, 8, 12, 16}, "Thread counts to sweep")
	fs.IntSliceVar(&f.chunks, "chunks", []int{32768, 65536, 131072}, "Chunk sizes for static_chunked and dynamic scheduling")
	fs.IntVar(&f.runs, "runs", 10, "Repetitions per configuration")
	fs.StringSliceVar(&f.strategies, "strategies", []string{"atomic", "critical", "reduction"}, "Strategies: atomic, critical, reduction")
	fs.StringSliceVar(&f.policies, "policies", []string{"static", "static_chunked", "dynamic"}, "Scheduling policies: static, static_chunked, dynamic")
	fs.Uint64Var(&f.seed, "seed", 0, "Dataset seed (0 picks a time-based seed)")
	fs.BoolVar(&f.noValidate, "no-validate", false, "Skip comparing every run with the sequential histogram")
	fs.StringVar(&f.jsonReport, "json-report", "", "Write a JSON report to this path")
	fs.StringVar(&f.compress, "report-compression", "none", "JSON report compression: none, gzip, zstd")
	fs.StringVar(&f.metrics, "metrics-addr", "", "Serve Prometheus metrics on this address during the sweep")
}

// apply copies the flags set on the command line into c and validates it.
func (f *benchFlags) apply(fs *pflag.FlagSet, c *config.Config) error {
	b := &c.Bench
	if fs.Changed("size") {
		b.DatasetSize = f.size
	}
	if fs.Changed("range") {
		b.Range = f.rng
	}
	if fs.Changed("threads") {
		b.ThreadCounts = f.threads
	}
	if fs.Changed("chunks") {
		b.ChunkSizes = f.chunks
	}
	if fs.Changed("runs") {
		b.Runs = f.runs
	}
	if fs.Changed("strategies") {
		b.Strategies = f.strategies
	}
	if fs.Changed("policies") {
		b.Policies = f.policies
	}
	if fs.Changed("seed") {
		b.Seed = f.seed
	}
	if fs.Changed("no-validate") {
		b.Validate = !f.noValidate
	}
	if fs.Changed("json-report") {
		c.Report.JSONPath = f.jsonReport
	}
	if fs.Changed("report-compression") {
		c.Report.Compression = f.compress
	}
	if fs.Changed("metrics-addr") {
		c.Metrics.Enabled = f.metrics != ""
		c.Metrics.Addr = f.metrics
	}
	return c.Validate()
}

// newService builds and initializes a service writing to the command's
// output. The caller must Close it.
func newService(cmd *cobra.Command) (*service.Service, error) {
	svc, err := service.New(cfg, GetLogger(),
		service.WithOutput(cmd.OutOrStdout()),
		service.WithVersion(Version),
	)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(commandContext(cmd)); err != nil {
		svc.Close(context.Background())
		return nil, err
	}
	return svc, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
