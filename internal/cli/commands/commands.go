package commands

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"ptd/internal/cli"
	"ptd/internal/config"
	"ptd/internal/discovery"
	"ptd/internal/execution"
	"ptd/internal/logging"
	"ptd/internal/parser"
	"ptd/internal/provision"
	"ptd/internal/storage"
	"ptd/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run      *RunCommand
	List     *ListCommand
	Prepare  *PrepareCommand
	Failures *FailuresCommand
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config) *Commands {
	collector := discovery.NewCollector(cfg)
	phpunitParser := parser.NewPHPUnitParser()
	runner := execution.NewRunner(cfg, phpunitParser)
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(cfg, os.Stdout)
	setup := provision.NewSetupRunner(cfg, provision.NewDatabaseManager(cfg), nil)
	errorViewer := ui.NewErrorViewer(cfg, jsonStorage)

	return &Commands{
		Run:      NewRunCommand(cfg, collector, runner, phpunitParser, jsonStorage, formatter, setup, errorViewer),
		List:     NewListCommand(cfg, collector, discovery.NewParser(), formatter, jsonStorage),
		Prepare:  NewPrepareCommand(cfg, setup),
		Failures: NewFailuresCommand(cfg, jsonStorage, errorViewer),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	// Settings come from the defaults, then the project's .env, then flags
	configure := func(cmd *cobra.Command, args []string) error {
		if err := cfg.LoadEnv(); err != nil {
			return err
		}
		cfg.Apply(flags.ToConfigFlags())
		return nil
	}

	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Controller log level: debug, info, warn or error (default warn)")

	// Run command
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run PHPUnit tests in parallel",
		Long:    "Discover PHPUnit test cases and distribute them over parallel workers",
		RunE:    c.Run.Execute,
		PreRunE: configure,
	}
	runCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of workers to use (default 4)")
	runCmd.Flags().StringVarP(&flags.Dist, "dist", "d", "", "Distribution mode: group or load (default group)")
	runCmd.Flags().IntVar(&flags.MaxWorkerRestart, "max-worker-restart", config.Unset, "Maximum number of crashed workers to replace, 0 disables (default 4 per worker)")
	runCmd.Flags().IntVar(&flags.MaxFail, "maxfail", 0, "Stop after this many failures")
	runCmd.Flags().BoolVarP(&flags.FailFast, "fail-fast", "x", false, "Stop on first test failure")
	runCmd.Flags().IntVar(&flags.MaxSchedChunk, "maxschedchunk", 0, "Maximum number of items sent to a worker at once in load mode (0 for no limit)")
	runCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test detection should start")
	runCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by name pattern (supports wildcards, e.g., '*UserTest.php' or '*Payment*')")
	runCmd.Flags().BoolVarP(&flags.Prepare, "prepare", "m", false, "Create and migrate the worker databases before executing tests")
	runCmd.Flags().BoolVar(&flags.NoFresh, "no-fresh", false, "Run migrations without fresh (only pending migrations)")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failures viewer when the run finishes with failures")
	runCmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run, e.g. :9090")
	runCmd.Flags().DurationVar(&flags.PollInterval, "poll-interval", 0, "How long the coordinator waits for a worker event before rescheduling (default 2s)")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List discovered tests",
		Long:    "Scan and list PHPUnit tests, their test cases or their scheduling groups without executing them",
		RunE:    c.List.Execute,
		PreRunE: configure,
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by name pattern (supports wildcards, e.g., '*UserTest.php' or '*Payment*')")
	listCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test detection should start")
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "List test cases instead of test files")
	listCmd.Flags().BoolVarP(&flags.Groups, "groups", "g", false, "List scheduling groups and the workers each may use")
	listCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of workers the groups are sized for (default 4)")
	rootCmd.AddCommand(listCmd)

	// Prepare command
	prepareCmd := &cobra.Command{
		Use:     "prepare",
		Short:   "Create and migrate the databases of all workers",
		Long:    "Create the per-worker test databases and run the setup command for each of them in parallel",
		RunE:    c.Prepare.Execute,
		PreRunE: configure,
	}
	prepareCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of workers to prepare (default 4)")
	prepareCmd.Flags().BoolVar(&flags.NoFresh, "no-fresh", false, "Run migrations without fresh (only pending migrations)")
	rootCmd.AddCommand(prepareCmd)

	// Failures command
	failuresCmd := &cobra.Command{
		Use:     "failures",
		Aliases: []string{"faills"},
		Short:   "View test failures interactively",
		Long:    "Display test failures from the last test run in an interactive viewer",
		RunE:    c.Failures.Execute,
		PreRunE: configure,
	}
	rootCmd.AddCommand(failuresCmd)
}

// newLogger builds the controller logger for the configured level
func newLogger(cfg *config.Config, w io.Writer) (log.Logger, error) {
	return logging.New(w, cfg.LogLevel)
}
