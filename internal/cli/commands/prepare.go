package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ptd/internal/config"
	"ptd/internal/provision"
)

// PrepareCommand handles the prepare command
type PrepareCommand struct {
	config      *config.Config
	provisioner provision.Provisioner
}

// NewPrepareCommand creates a new PrepareCommand
func NewPrepareCommand(cfg *config.Config, provisioner provision.Provisioner) *PrepareCommand {
	return &PrepareCommand{
		config:      cfg,
		provisioner: provisioner,
	}
}

// Execute runs the command
func (pc *PrepareCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return pc.provisioner.Run(ctx, pc.config.Processors)
}
