package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot-dir> <collection>",
		Short: "Restore a collection from a snapshot directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshotDir, collectionName := args[0], args[1]

			v, err := openVortex()
			if err != nil {
				return err
			}
			defer v.Close()

			if _, err := v.Restore(snapshotDir, collectionName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %q from %s\n", collectionName, snapshotDir)
			return nil
		},
	}
}
