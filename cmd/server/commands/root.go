package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CitroenGames/garden-framework-sub000/logger"
)

// RootCmd is the garden-server binary's top-level command.
var RootCmd = &cobra.Command{
	Use:   "garden-server",
	Short: "Authoritative game server: job scheduler, asset pipeline, replication core",
	Long: `garden-server hosts the authoritative simulation: a work-stealing job
scheduler, an async asset pipeline, and a bit-packed replication server
that client binaries connect to over WebSockets.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(VersionCmd)
}
