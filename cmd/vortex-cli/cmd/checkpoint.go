package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint [collection]",
		Short: "Checkpoint one collection, or every open collection if none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVortex()
			if err != nil {
				return err
			}
			defer v.Close()

			if len(args) == 1 {
				col, ok := v.Collection(args[0])
				if !ok {
					return fmt.Errorf("collection %q not found", args[0])
				}
				if err := col.Checkpoint(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checkpointed %q\n", args[0])
				return nil
			}

			saved, failed := v.CheckpointAll()
			fmt.Fprintf(cmd.OutOrStdout(), "checkpointed %d collections (%d failed)\n", saved, failed)
			return nil
		},
	}
}
