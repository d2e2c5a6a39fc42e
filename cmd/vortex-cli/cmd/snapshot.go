package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "snapshot <collection>",
		Short: "Create a point-in-time snapshot of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName := args[0]

			v, err := openVortex()
			if err != nil {
				return err
			}
			defer v.Close()

			dir, err := v.Snapshot(collectionName, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot written to %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "snapshot name (default: auto-generated)")

	return cmd
}
