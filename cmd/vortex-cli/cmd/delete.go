package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a vector and its payload from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName, id := args[0], args[1]

			v, err := openVortex()
			if err != nil {
				return err
			}
			defer v.Close()

			col, ok := v.Collection(collectionName)
			if !ok {
				return fmt.Errorf("collection %q not found", collectionName)
			}
			if err := col.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q from %q\n", id, collectionName)
			return nil
		},
	}
}
