package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/histobench/pkg/config"
	"github.com/histobench/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Pprof flags
	pprofEnabled  bool
	pprofDir      string
	pprofProfiles []string

	logger utils.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "histobench",
	Short: "A parallel histogram benchmark",
	Long: `histobench times the computation of a fixed-range histogram over a large
integer dataset with several synchronization strategies:

  - atomic    : every worker increments the shared bins atomically
  - critical  : workers count privately and merge under a lock
  - reduction : private counts are combined pairwise after the join

Each strategy runs under static, static_chunked and dynamic scheduling for
every configured thread count and chunk size. Every run is checked against
a sequential reference histogram.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		flags := cmd.Flags()
		if flags.Changed("pprof") {
			cfg.Profiling.Enabled = pprofEnabled
		}
		if flags.Changed("pprof-dir") {
			cfg.Profiling.Dir = pprofDir
		}
		if flags.Changed("pprof-profiles") {
			cfg.Profiling.Profiles = pprofProfiles
		}

		l := utils.NewLoggerFromConfig(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		if verbose {
			l.SetLevel(utils.LevelDebug)
		}
		logger = l
		utils.SetGlobalLogger(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./histobench.yaml, ./configs, /etc/histobench)")

	// Pprof flags
	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Capture pprof profiles around the sweep")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof profiles")
	rootCmd.PersistentFlags().StringSliceVar(&pprofProfiles, "pprof-profiles", []string{"cpu", "mutex", "block", "heap"}, "Profile types: cpu,heap,goroutine,block,mutex,allocs")

	binName := BinName()
	rootCmd.Example = `  # Full sweep with the built-in defaults
  ` + binName + ` run

  # Small sweep over two strategies
  ` + binName + ` run --size 10000000 --threads 2,4,8 --strategies atomic,critical

  # Check every configuration against the sequential histogram
  ` + binName + ` verify --size 1000000

  # Sequential baseline
  ` + binName + ` sequential --runs 5

  # Record lock contention while sweeping
  ` + binName + ` run --strategies critical --pprof --pprof-profiles cpu,mutex`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	if logger == nil {
		return &utils.NullLogger{}
	}
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
