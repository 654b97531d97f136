package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ptd/internal/cli"
	"ptd/internal/cli/commands"
	"ptd/internal/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ptd",
		Short:         "Parallel PHPUnit test distributor",
		Long:          `Distributes the test cases of a PHPUnit suite over parallel workers, each with its own database. Test cases tagged with a "<name>_<workers>" group run together on at most that many workers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create initial config with defaults
	cfg := config.New()

	// Create flags struct (will be populated by command flags)
	flags := cli.Flags{MaxWorkerRestart: config.Unset}

	cmds := commands.NewCommands(cfg)
	cmds.Register(rootCmd, &flags, cfg)

	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, commands.ErrTestsFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(commands.ExitCode(err))
}
