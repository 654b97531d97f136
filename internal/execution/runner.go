package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"time"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/parser"
)

// Runner executes a single PHPUnit test method
type Runner struct {
	config *config.Config
	parser parser.Parser
}

// NewRunner creates a new Runner
func NewRunner(cfg *config.Config, p parser.Parser) *Runner {
	if p == nil {
		p = parser.NewPHPUnitParser()
	}
	return &Runner{config: cfg, parser: p}
}

// Run executes PHPUnit for one test case against the worker's database
func (r *Runner) Run(ctx context.Context, job Job) (domain.TestResult, error) {
	cmd := exec.CommandContext(ctx, r.config.GetPHPUnitPath(), "--filter", filterFor(job.Case.Name), job.Case.FilePath)

	// Set environment variables
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("DB_DATABASE=%s", r.config.GetDatabaseName(job.Slot)),
		fmt.Sprintf("PTD_WORKER=%s", job.Worker),
		fmt.Sprintf("PTD_WORKER_TOKEN=%s", job.Token),
	)
	for k, v := range job.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Dir = r.config.ProjectPath

	start := time.Now()
	output, err := cmd.CombinedOutput()
	result := domain.TestResult{
		ItemID:   job.Case.ID(),
		TestPath: job.Case.FilePath,
		Worker:   job.Worker,
		Success:  err == nil,
		Output:   string(output),
		Error:    err,
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return result, fmt.Errorf("start phpunit for %s: %w", result.ItemID, err)
	}

	outcome := r.parser.ParseOutcome(result.Output)
	if result.Success && outcome.Tests > 0 && outcome.Skipped >= outcome.Tests {
		result.Skipped = true
	}
	return result, nil
}

// filterFor selects exactly one method, data sets included
func filterFor(method string) string {
	return fmt.Sprintf("/::%s( with data set .*)?$/", regexp.QuoteMeta(method))
}
