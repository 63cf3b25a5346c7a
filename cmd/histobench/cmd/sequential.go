package cmd

import (
	"github.com/spf13/cobra"

	"github.com/histobench/internal/bench"
	"github.com/histobench/internal/service"
)

var seqFlags benchFlags

// sequentialCmd represents the sequential command
var sequentialCmd = &cobra.Command{
	Use:   "sequential",
	Short: "Time the single-goroutine baseline",
	Long:  `Time the sequential histogram over the dataset for the configured number of runs.`,
	RunE:  runSequential,
}

func init() {
	rootCmd.AddCommand(sequentialCmd)
	seqFlags.register(sequentialCmd.Flags())
}

func runSequential(cmd *cobra.Command, args []string) error {
	// chunk sizes are not used and must not be checked against --size
	cfg.Bench.ChunkSizes = nil
	cfg.Bench.Policies = []string{"static"}
	if err := seqFlags.apply(cmd.Flags(), cfg); err != nil {
		return err
	}

	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer svc.Close(ctx)

	_, err = svc.Sweep(ctx, service.SweepOptions{Plan: bench.SequentialPlan()})
	return err
}
