// Package cmd provides the CLI commands for vortex-cli.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/monishSR/vortex/internal/logging"
	"github.com/monishSR/vortex/pkg/vortex"
)

var dataDir string

// NewRootCmd creates the root command for the vortex-cli tool.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vortex-cli",
		Short: "Operate a local vortex vector database",
		Long: `vortex-cli creates, populates, searches, and snapshots
vortex collections directly against a data directory, without needing
a running server.`,
	}

	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./vortex-data", "Root directory holding collection data")

	root.AddCommand(newCreateCmd())
	root.AddCommand(newInsertCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newCheckpointCmd())
	root.AddCommand(newSnapshotCmd())
	root.AddCommand(newRestoreCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func openVortex() (*vortex.Vortex, error) {
	cfg := vortex.DefaultConfig(dataDir)
	cfg.Logger = logging.Default()
	return vortex.Open(cfg)
}
