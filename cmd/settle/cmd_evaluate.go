package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a saved network on its data",
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

			ctx := cmd.Context()
			rr, err := restoreRun(ctx, s, runID)
			if err != nil {
				return err
			}
			data := rr.Config.Data
			if len(data.Inputs) == 0 {
				return fmt.Errorf("run %s has no data to evaluate", rr.Run.ID)
			}
			scores, err := rr.Network.Evaluate(ctx, data.Inputs, data.Targets)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":  rr.Run.ID,
					"samples": len(data.Inputs),
					"scores":  scores,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s (%d samples): %s\n", rr.Run.ID, len(data.Inputs), formatScores(scores))
			return nil
		},
	}
	cmd.Flags().String("run", "", "Run ID (default: most recent run)")
	return cmd
}
