package provision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/schollz/progressbar/v3"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/logging"
)

// Provisioner prepares the resources of every worker slot
type Provisioner interface {
	Run(ctx context.Context, slots int) error
}

// Databases reports which slots have a database to set up
type Databases interface {
	CheckAndCreateDatabases(ctx context.Context, slots int) ([]int, error)
}

// Lines printed by Laravel's migrator that are not a migration step
var skipPatterns = []string{"Dropping all tables", "Dropped all tables", "Nothing to migrate", "Migration table created", "INFO"}

// SetupRunner runs the configured setup command once per slot, in parallel,
// with DB_DATABASE pointing at the slot's database
type SetupRunner struct {
	config    *config.Config
	databases Databases
	out       io.Writer
	logger    log.Logger
}

// NewSetupRunner creates a SetupRunner. databases may be nil when the setup
// command creates its own resources.
func NewSetupRunner(cfg *config.Config, databases Databases, logger log.Logger) *SetupRunner {
	return &SetupRunner{
		config:    cfg,
		databases: databases,
		out:       os.Stderr,
		logger:    logging.With(logger, "provision"),
	}
}

// Run prepares slots 1..slots
func (sr *SetupRunner) Run(ctx context.Context, slots int) error {
	color.Cyan("\n╔════════════════════════════════════════════════════════════╗")
	color.Cyan("║               Preparing Worker Databases                   ║")
	color.Cyan("╚════════════════════════════════════════════════════════════╝\n")

	ready := make([]int, 0, slots)
	if sr.databases != nil {
		var err error
		if ready, err = sr.databases.CheckAndCreateDatabases(ctx, slots); err != nil {
			return fmt.Errorf("failed to check databases: %w", err)
		}
	} else {
		for slot := 1; slot <= slots; slot++ {
			ready = append(ready, slot)
		}
	}
	if len(ready) == 0 {
		return fmt.Errorf("no test databases available")
	}

	args := sr.command()
	if len(args) == 0 {
		return fmt.Errorf("no setup command configured")
	}

	// One step per migration file and slot when the project has them, else one per slot
	steps := len(sr.migrationFiles())
	if steps == 0 {
		steps = 1
	}
	total := len(ready) * steps
	color.White("Workers: %d | Steps per worker: %d | Command: %s\n\n", len(ready), steps, strings.Join(args, " "))

	bar := newSetupBar(sr.out, total)
	var (
		mu        sync.Mutex
		completed int
	)
	advance := func() {
		mu.Lock()
		defer mu.Unlock()
		if completed >= total {
			return
		}
		completed++
		_ = bar.Set(completed)
		bar.Describe(color.CyanString("Preparing: ") + color.GreenString("[completed: %d/%d]", completed, total))
	}

	var wg sync.WaitGroup
	results := make(chan domain.SetupResult, len(ready))
	startTime := time.Now()
	for _, slot := range ready {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results <- sr.runSlot(ctx, slot, args, steps > 1, advance)
		}(slot)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var failed []domain.SetupResult
	for result := range results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	_ = bar.Finish()
	duration := time.Since(startTime)

	fmt.Fprint(sr.out, "\n")
	if len(failed) > 0 {
		color.Red("✗ Setup failed for %d worker(s)\n", len(failed))
		for _, result := range failed {
			color.Red("  Slot %d (DB: %s): %v\n", result.Slot, sr.config.GetDatabaseName(result.Slot), result.Error)
			level.Debug(sr.logger).Log("msg", "setup output", "slot", result.Slot, "output", result.Output)
		}
		return fmt.Errorf("setup failed for %d worker(s)", len(failed))
	}
	color.Green("✓ Setup completed successfully for all %d workers\n", len(ready))
	color.White("Duration: %s\n", duration.Round(time.Millisecond))
	return nil
}

// command returns the setup command, downgraded from migrate:fresh to
// migrate with --no-fresh
func (sr *SetupRunner) command() []string {
	args := strings.Fields(sr.config.SetupCommand)
	if sr.config.Flags.NoFresh {
		for i, a := range args {
			if a == "migrate:fresh" {
				args[i] = "migrate"
			}
		}
	}
	return args
}

// runSlot runs the command for one slot, streaming its output. When
// perLine is set every meaningful output line counts as a step.
func (sr *SetupRunner) runSlot(ctx context.Context, slot int, args []string, perLine bool, advance func()) domain.SetupResult {
	projectAbsPath, err := filepath.Abs(sr.config.ProjectPath)
	if err != nil {
		return domain.SetupResult{Slot: slot, Error: fmt.Errorf("failed to get absolute project path: %w", err)}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("DB_DATABASE=%s", sr.config.GetDatabaseName(slot)))
	cmd.Dir = projectAbsPath

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.SetupResult{Slot: slot, Error: fmt.Errorf("failed to create stdout pipe: %w", err)}
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return domain.SetupResult{Slot: slot, Error: fmt.Errorf("failed to start command: %w", err)}
	}

	var output strings.Builder
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		output.WriteString(line)
		output.WriteString("\n")
		if perLine && isStep(line) {
			advance()
		}
	}
	err = cmd.Wait()
	if !perLine && err == nil {
		advance()
	}

	return domain.SetupResult{
		Slot:    slot,
		Success: err == nil,
		Output:  output.String(),
		Error:   err,
	}
}

func isStep(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, skip := range skipPatterns {
		if strings.Contains(line, skip) {
			return false
		}
	}
	return true
}

// migrationFiles lists database/migrations/*.php of the project
func (sr *SetupRunner) migrationFiles() []string {
	matches, err := filepath.Glob(filepath.Join(sr.config.ProjectPath, "database", "migrations", "*.php"))
	if err != nil {
		return nil
	}
	return matches
}

func newSetupBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(
			color.CyanString("Preparing: ")+
				color.GreenString("[completed: 0/%d]", total),
		),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
