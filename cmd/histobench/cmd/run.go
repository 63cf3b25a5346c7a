package cmd

import (
	"github.com/spf13/cobra"

	"github.com/histobench/internal/service"
)

var (
	runFlags  benchFlags
	keepGoing bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full benchmark sweep",
	Long: `Run every selected strategy under every selected scheduling policy, thread
count and chunk size, printing the elapsed seconds of each repetition.

Sections are printed in strategy order. Within a strategy the static
section comes first, followed by one block per chunk size for the
static_chunked and dynamic policies.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runFlags.register(runCmd.Flags())
	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Record failing configurations and continue the sweep")
}

func runSweep(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	if err := runFlags.apply(cmd.Flags(), cfg); err != nil {
		return err
	}

	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer svc.Close(ctx)

	plan, err := svc.Plan()
	if err != nil {
		return err
	}

	report, err := svc.Sweep(ctx, service.SweepOptions{Plan: plan, KeepGoing: keepGoing})
	if err != nil {
		return err
	}

	log.Info("Session %s: %d configurations, oracle %s", report.SessionID, len(report.Results), report.Baseline)
	for i, e := range report.Ranking {
		if i == 3 {
			break
		}
		log.Info("  #%d %s median=%s speedup=%.2fx", i+1, e.Name, e.Summary.Median, e.Speedup)
	}
	return nil
}
