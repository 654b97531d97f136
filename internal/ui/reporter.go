package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"

	"ptd/internal/config"
	"ptd/internal/domain"
	"ptd/internal/worker"
)

// ConsoleReporter prints a run as it happens: the worker status line while
// the pool starts, then a progress bar, with crashes and collection errors
// printed above it. It keeps every item result for the final report.
type ConsoleReporter struct {
	out     io.Writer
	barOut  io.Writer
	workers int

	mu        sync.Mutex
	ready     map[string]bool
	collected map[string]int
	started   bool
	bar       *ProgressBar

	results                 []domain.TestResult
	passed, failed, skipped int
	crashedWorkers          []string
}

// NewConsoleReporter creates a reporter for a pool of cfg.Processors workers
func NewConsoleReporter(cfg *config.Config, out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{
		out:       out,
		barOut:    os.Stderr,
		workers:   cfg.Processors,
		ready:     make(map[string]bool),
		collected: make(map[string]int),
	}
}

func (r *ConsoleReporter) WorkerReady(w worker.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready[w.ID()] = true
	if !r.started {
		r.statusLine()
	}
}

func (r *ConsoleReporter) WorkerDown(w worker.Handle, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crashedWorkers = append(r.crashedWorkers, w.ID())
	r.printf(color.New(color.FgRed), "[%s] node down: %v\n", w.ID(), err)
}

func (r *ConsoleReporter) CollectionFinished(w worker.Handle, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collected[w.ID()] = count
	if !r.started {
		r.statusLine()
	}
}

// CollectionComplete ends the status line and starts the progress bar
func (r *ConsoleReporter) CollectionComplete(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	fmt.Fprintln(r.out)
	r.bar = NewProgressBar(r.barOut, count)
}

func (r *ConsoleReporter) CollectionError(workerID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf(color.New(color.FgRed, color.Bold), "collection error on %s:\n", workerID)
	r.printf(color.New(color.FgRed), "%s\n", message)
}

func (r *ConsoleReporter) ItemReport(result domain.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	switch {
	case result.Crashed:
		r.failed++
		r.printf(color.New(color.FgRed), "[%s] CRASHED %s\n", result.Worker, result.ItemID)
	case result.Skipped:
		r.skipped++
	case result.Success:
		r.passed++
	default:
		r.failed++
	}
	if r.bar != nil {
		r.bar.Update(r.passed, r.failed, r.skipped)
	}
}

func (r *ConsoleReporter) Line(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf(color.New(color.FgYellow), "%s\n", message)
}

func (r *ConsoleReporter) Summary(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf(color.New(color.FgRed, color.Bold), "%s\n", message)
}

func (r *ConsoleReporter) InternalError(workerID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf(color.New(color.FgRed, color.Bold), "INTERNALERROR on %s> %s\n", workerID, message)
}

// Finish completes the progress bar
func (r *ConsoleReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}
}

// Results returns every item result received so far
func (r *ConsoleReporter) Results() []domain.TestResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TestResult(nil), r.results...)
}

// CrashedWorkers returns the workers that went down unexpectedly, in order
func (r *ConsoleReporter) CrashedWorkers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.crashedWorkers...)
}

// statusLine rewrites the startup line, e.g. "4 workers [120 items]" once
// every worker collected, "ready: 3/4 / collecting: 1/4" before
func (r *ConsoleReporter) statusLine() {
	var line string
	if len(r.collected) >= r.workers {
		counts := make([]int, 0, len(r.collected))
		for _, c := range r.collected {
			counts = append(counts, c)
		}
		sort.Ints(counts)
		items := fmt.Sprint(counts[len(counts)-1])
		if counts[0] != counts[len(counts)-1] {
			items = fmt.Sprintf("%d-%d", counts[0], counts[len(counts)-1])
		}
		line = fmt.Sprintf("%d workers [%s items]", r.workers, items)
	} else {
		line = fmt.Sprintf("created: %d/%d workers | ready: %d | collected: %d", r.workers, r.workers, len(r.ready), len(r.collected))
	}
	fmt.Fprintf(r.out, "\r%s%s", line, strings.Repeat(" ", 10))
}

// printf prints above the progress bar
func (r *ConsoleReporter) printf(c *color.Color, format string, args ...any) {
	if r.bar != nil {
		r.bar.Clear()
	}
	c.Fprintf(r.out, format, args...)
}
