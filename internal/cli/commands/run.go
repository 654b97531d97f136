package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"ptd/internal/config"
	"ptd/internal/coordinator"
	"ptd/internal/discovery"
	"ptd/internal/domain"
	"ptd/internal/execution"
	"ptd/internal/parser"
	"ptd/internal/provision"
	"ptd/internal/scheduling"
	"ptd/internal/storage"
	"ptd/internal/ui"
)

// ErrTestsFailed is returned by run when at least one item failed
var ErrTestsFailed = errors.New("tests failed")

// RunCommand handles the run command
type RunCommand struct {
	config      *config.Config
	collector   *discovery.Collector
	executor    execution.Executor
	parser      parser.Parser
	storage     storage.Storage
	formatter   *ui.Formatter
	provisioner provision.Provisioner
	viewer      ui.Viewer
	out         io.Writer
	logOut      io.Writer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	collector *discovery.Collector,
	executor execution.Executor,
	parser parser.Parser,
	st storage.Storage,
	formatter *ui.Formatter,
	provisioner provision.Provisioner,
	viewer ui.Viewer,
) *RunCommand {
	return &RunCommand{
		config:      cfg,
		collector:   collector,
		executor:    executor,
		parser:      parser,
		storage:     st,
		formatter:   formatter,
		provisioner: provisioner,
		viewer:      viewer,
		out:         os.Stdout,
		logOut:      os.Stderr,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(rc.config, rc.logOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rc.config.Flags.Prepare {
		if err := rc.provisioner.Run(ctx, rc.config.Processors); err != nil {
			return fmt.Errorf("prepare failed: %w", err)
		}
		fmt.Fprintln(rc.out)
	}

	files, err := rc.collector.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.New(color.FgYellow).Fprintln(rc.out, "No tests to execute")
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if rc.config.MetricsAddr != "" {
		srv, err := serveMetrics(rc.config.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	pool := execution.NewPool(ctx, rc.config, rc.collector, rc.executor, logger)
	reporter := ui.NewConsoleReporter(rc.config, rc.out)
	session := coordinator.New(rc.config, pool, reporter,
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(coordinator.NewMetrics(reg)),
		coordinator.WithSchedulingMetrics(scheduling.NewMetrics(reg)),
	)

	startTime := time.Now()
	runErr := session.Run(ctx)
	reporter.Finish()

	output := rc.buildOutput(reporter.Results(), session.Stats(), time.Since(startTime))
	if err := rc.storage.Save(output); err != nil {
		level.Error(logger).Log("msg", "failed to save test results", "err", err)
		if runErr == nil {
			runErr = fmt.Errorf("failed to save test results: %w", err)
		}
	}
	rc.formatter.PrintMetaStats(output)

	if runErr != nil {
		return runErr
	}
	if output.Meta.FailedItems > 0 {
		if rc.config.Flags.OpenFailures && rc.viewer != nil {
			if err := rc.viewer.View(output); err != nil {
				return err
			}
		}
		return ErrTestsFailed
	}
	return nil
}

func (rc *RunCommand) buildOutput(results []domain.TestResult, stats coordinator.Stats, duration time.Duration) *domain.RunOutput {
	var failures []domain.TestFailure
	for _, result := range results {
		if result.Success || result.Skipped {
			continue
		}
		failures = append(failures, rc.parser.ParseFailure(result)...)
	}
	return storage.NewRunOutput(storage.RunInfo{
		RunID:          uuid.NewString(),
		Dist:           rc.config.Dist,
		Duration:       duration,
		Workers:        rc.config.Processors,
		CrashedWorkers: stats.CrashedWorkers,
		Summary:        stats.Summary,
	}, results, failures)
}

// ExitCode maps an error returned by a command to the process exit status
func ExitCode(err error) int {
	var interrupted *coordinator.InterruptedError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &interrupted):
		return 2
	}
	return 1
}
