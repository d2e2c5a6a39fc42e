package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var k, ef int

	cmd := &cobra.Command{
		Use:   "search <collection> <vector>",
		Short: "Find the k nearest neighbors of a query vector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionName, vectorStr := args[0], args[1]

			query, err := parseVector(vectorStr)
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

			results, err := col.Search(query, k, ef)
			if err != nil {
				return err
			}

			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. id=%s score=%.6f\n", i+1, r.ID, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&k, "k", 10, "number of neighbors to return")
	cmd.Flags().IntVar(&ef, "ef", 0, "candidates to explore during search (0 = collection default)")

	return cmd
}
