package cmd

import (
	"github.com/spf13/cobra"

	"github.com/histobench/internal/bench"
	"github.com/histobench/internal/service"
	apperrors "github.com/histobench/pkg/errors"
)

var verifyFlags benchFlags

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every configuration against the sequential histogram",
	Long: `Run each configuration of the sweep once and compare its histogram with the
sequential result, printing OK or FAIL per configuration. All
configurations are checked even when some fail; the command exits
non-zero if any did.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyFlags.register(verifyCmd.Flags())
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := verifyFlags.apply(cmd.Flags(), cfg); err != nil {
		return err
	}
	cfg.Bench.Validate = true

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

	rep := bench.NewVerifyReporter(cmd.OutOrStdout())
	if _, err := svc.Sweep(ctx, service.SweepOptions{
		Plan:      plan,
		Runs:      1,
		KeepGoing: true,
		Quiet:     true,
		Sinks:     []bench.Sink{rep},
	}); err != nil {
		return err
	}

	passed, failed := rep.Counts()
	if failed > 0 {
		return apperrors.Newf(apperrors.CodeMismatch, "%d of %d configurations failed", failed, passed+failed)
	}
	GetLogger().Info("All %d configurations match the sequential histogram", passed)
	return nil
}
