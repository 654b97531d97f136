package commands

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ptd/internal/config"
	"ptd/internal/discovery"
	"ptd/internal/domain"
	"ptd/internal/storage"
	"ptd/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	collector *discovery.Collector
	parser    *discovery.Parser
	formatter *ui.Formatter
	storage   storage.Storage
	out       io.Writer
}

// NewListCommand creates a new ListCommand
func NewListCommand(
	cfg *config.Config,
	collector *discovery.Collector,
	parser *discovery.Parser,
	formatter *ui.Formatter,
	st storage.Storage,
) *ListCommand {
	return &ListCommand{
		config:    cfg,
		collector: collector,
		parser:    parser,
		formatter: formatter,
		storage:   st,
		out:       os.Stdout,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	if lc.config.Flags.Groups {
		collection, err := lc.collector.Collect()
		if err != nil {
			return err
		}
		for _, msg := range collection.Errors {
			color.New(color.FgRed).Fprintln(lc.out, msg)
		}
		if len(collection.Cases) == 0 {
			color.New(color.FgYellow).Fprintln(lc.out, "No tests found")
			return nil
		}
		lc.formatter.PrintGroups(collection.Cases, lc.config.Processors)
		return nil
	}

	files, err := lc.collector.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.New(color.FgYellow).Fprintln(lc.out, "No tests found")
		return nil
	}

	var cases map[string][]domain.TestCase
	if lc.config.Flags.TestCases {
		cases = make(map[string][]domain.TestCase, len(files))
		for _, file := range files {
			found, err := lc.parser.FindTestCases(file)
			if err != nil {
				color.New(color.FgRed).Fprintf(lc.out, "%v\n", err)
				continue
			}
			cases[file] = found
		}
	}

	// A missing results file just means there is no previous run to mark
	var last *domain.RunOutput
	if lc.storage != nil {
		last, _ = lc.storage.Load()
	}
	lc.formatter.PrintTestList(files, cases, ui.FailedPaths(lc.config.ProjectPath, last))
	return nil
}
