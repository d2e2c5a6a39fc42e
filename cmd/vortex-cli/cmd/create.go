package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monishSR/vortex/internal/distance"
	"github.com/monishSR/vortex/internal/hnsw"
)

func newCreateCmd() *cobra.Command {
	var dim int
	var metric string
	var m, efConstruction, efSearch int
	var capacity uint64

	cmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a new collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			met, err := distance.ParseMetric(metric)
			if err != nil {
				return err
			}

			v, err := openVortex()
			if err != nil {
				return err
			}
			defer v.Close()

			cfg := hnsw.DefaultConfig(dim)
			if m > 0 {
				cfg.M = m
				cfg.MMax0 = m * 2
			}
			if efConstruction > 0 {
				cfg.EfConstruction = efConstruction
			}
			if efSearch > 0 {
				cfg.EfSearch = efSearch
			}

			if _, err := v.CreateCollection(name, dim, met, cfg, capacity); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created collection %q (dim=%d, metric=%s, capacity=%d)\n", name, dim, metric, capacity)
			return nil
		},
	}

	cmd.Flags().IntVar(&dim, "dim", 0, "vector dimension (required)")
	cmd.Flags().StringVar(&metric, "metric", "l2", "distance metric: l2 or cosine")
	cmd.Flags().IntVar(&m, "m", 0, "HNSW M parameter (0 = default)")
	cmd.Flags().IntVar(&efConstruction, "ef-construction", 0, "HNSW efConstruction (0 = default)")
	cmd.Flags().IntVar(&efSearch, "ef-search", 0, "HNSW efSearch (0 = default)")
	cmd.Flags().Uint64Var(&capacity, "capacity", 10000, "maximum number of vectors")
	cmd.MarkFlagRequired("dim")

	return cmd
}
