package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Run a saved network on inputs",
		Long: `Settle a saved network on each input with only the input clamped and
print the output activities. Without --input the run's own training
inputs are used.

Examples:
  settle infer                          # latest run, training inputs
  settle infer --run <id> --input 0,1   # one input vector`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runID, _ := cmd.Flags().GetString("run")
			rawInputs, _ := cmd.Flags().GetStringArray("input")
			steps, _ := cmd.Flags().GetInt("steps")
			noReset, _ := cmd.Flags().GetBool("no-reset")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			rr, err := restoreRun(ctx, s, runID)
			if err != nil {
				return err
			}

			inputs := rr.Config.Data.Inputs
			if len(rawInputs) > 0 {
				inputs = make([][]float64, 0, len(rawInputs))
				for _, raw := range rawInputs {
					v, err := parseVector(raw)
					if err != nil {
						return err
					}
					inputs = append(inputs, v)
				}
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no inputs (use --input)")
			}

			outputs, err := rr.Network.Infer(ctx, inputs, steps, !noReset)
			if err != nil {
				return fmt.Errorf("infer: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":  rr.Run.ID,
					"inputs":  inputs,
					"outputs": outputs,
				})
			}
			out := cmd.OutOrStdout()
			for i := range inputs {
				fmt.Fprintf(out, "%s -> %s\n", formatVector(inputs[i]), formatVector(outputs[i]))
			}
			return nil
		},
	}
	cmd.Flags().String("run", "", "Run ID (default: most recent run)")
	cmd.Flags().StringArray("input", nil, "Comma-separated input vector (repeatable)")
	cmd.Flags().Int("steps", 0, "Settle steps per input (default: configured minus steps)")
	cmd.Flags().Bool("no-reset", false, "Keep activity between inputs")
	return cmd
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
