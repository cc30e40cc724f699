package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Print a saved run's forward weights",
		Long: `Print the effective weight matrix of every forward mesh in a saved
run. Rows are receiving units and columns sending units; meshes are
square, padded to the larger of the two layers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			rr, err := restoreRun(cmd.Context(), s, runID)
			if err != nil {
				return err
			}
			names := forwardMeshNames(rr)

			if jsonOut {
				meshes := make([]map[string]any, 0, len(rr.Run.Weights))
				for i, w := range rr.Run.Weights {
					meshes = append(meshes, map[string]any{"name": names[i], "weights": rows(w)})
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"run_id": rr.Run.ID, "meshes": meshes})
			}
			out := cmd.OutOrStdout()
			for i, w := range rr.Run.Weights {
				fmt.Fprintf(out, "%s:\n%.4f\n\n", names[i], mat.Formatted(w, mat.Prefix(""), mat.Squeeze()))
			}
			return nil
		},
	}
	cmd.Flags().String("run", "", "Run ID (default: most recent run)")
	return cmd
}

// forwardMeshNames returns the name of each non-input layer's forward mesh,
// in the order the run's weights are stored.
func forwardMeshNames(rr *restoredRun) []string {
	layers := rr.Network.Layers()[1:]
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.ExcitatoryMeshes()[0].Name()
	}
	return names
}

func rows(w *mat.Dense) [][]float64 {
	r, _ := w.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, w)
	}
	return out
}
