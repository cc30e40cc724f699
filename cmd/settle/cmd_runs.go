package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/settle/internal/metrics"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved training runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"runs": runs, "count": len(runs)})
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNETWORK\tLAYERS\tEPOCHS\tRMSE\tCREATED")
			for _, r := range runs {
				epochs := fmt.Sprint(r.Epochs)
				if r.Cancelled {
					epochs += " (cancelled)"
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%.6f\t%s\n",
					r.ID, r.Network, r.Layers, epochs, r.Final(metrics.NameRMSE), humanize.RelTime(r.CreatedAt, time.Now(), "ago", "from now"))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's per-epoch scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run %s: %w", args[0], err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), run)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:       %s\n", run.ID)
			fmt.Fprintf(out, "Network:   %s %v\n", run.Network, run.Layers)
			fmt.Fprintf(out, "Seed:      %d\n", run.Seed)
			fmt.Fprintf(out, "Batch:     %d\n", run.BatchSize)
			fmt.Fprintf(out, "Created:   %s\n", run.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Cancelled: %v\n\n", run.Cancelled)
			for epoch := 0; epoch < run.Epochs; epoch++ {
				scores := make(map[string]float64, len(run.History))
				for name, vals := range run.History {
					if epoch < len(vals) {
						scores[name] = vals[epoch]
					}
				}
				fmt.Fprintf(out, "epoch %3d  %s\n", epoch, formatScores(scores))
			}
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete run %s: %w", args[0], err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "deleted", "id": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}
