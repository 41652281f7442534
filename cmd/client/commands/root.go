package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CitroenGames/garden-framework-sub000/logger"
)

// RootCmd is the garden-client binary's top-level command.
var RootCmd = &cobra.Command{
	Use:   "garden-client",
	Short: "Sample replication client",
	Long: `garden-client connects to a garden-server over WebSocket, completes the
handshake, uploads input, and prints the replicated world state it
receives.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")
	RootCmd.AddCommand(ConnectCmd)
	RootCmd.AddCommand(VersionCmd)
}
