package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInsertCmd() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "insert <collection> <id> <vector>",
		Short: "Insert a vector (and optional payload) into a collection",
		Long:  "vector is a comma-separated list of floats, e.g. 1.0,2.5,-3",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName, id, vectorStr := args[0], args[1], args[2]

			vec, err := parseVector(vectorStr)
			if err != nil {
				return err
			}

			v, err := openVortex()
			if err != nil {
				return err
			}
			defer v.Close()

			col, ok := v.Collection(collectionName)
			if !ok {
				return fmt.Errorf("collection %q not found", collectionName)
			}

			if payload != "" {
				err = col.InsertWithPayload(id, vec, []byte(payload))
			} else {
				err = col.Insert(id, vec)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "inserted %q into %q\n", id, collectionName)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "opaque payload bytes to store alongside the vector")

	return cmd
}
