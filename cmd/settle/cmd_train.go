package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nvandessel/settle/internal/logging"
	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/store"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the configured network and save the run",
		Long: `Train the network described by the configuration file on its data
section. Epoch 0 is a baseline that only scores the untrained network.

Ctrl-C stops training after the current sample; the completed epochs are
still saved and marked as cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			noSave, _ := cmd.Flags().GetBool("no-save")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("epochs") {
				cfg.Training.Epochs, _ = cmd.Flags().GetInt("epochs")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Network.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if len(cfg.Data.Inputs) == 0 {
				return fmt.Errorf("config has no training data")
			}

			netCfg, err := cfg.NetworkConfig()
			if err != nil {
				return err
			}
			opts := []network.Option{network.WithLogger(newLogger(cmd, cfg))}
			trace := logging.NewTraceLogger(cfg.Logging.TraceDir, cfg.Logging.Level)
			defer trace.Close()
			if trace != nil {
				opts = append(opts, network.WithMonitor(trace))
			}
			n, err := network.New(netCfg, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			train := cfg.TrainOptions()
			if !jsonOut {
				out := cmd.OutOrStdout()
				train.AfterEpoch = func(epoch int, scores map[string]float64) {
					fmt.Fprintf(out, "epoch %3d  %s\n", epoch, formatScores(scores))
				}
			}
			hist, trainErr := n.Learn(ctx, cfg.Data.Inputs, cfg.Data.Targets, train)
			if trainErr != nil && !errors.Is(trainErr, context.Canceled) {
				return fmt.Errorf("training failed: %w", trainErr)
			}
			cancelled := trainErr != nil

			var runID string
			if !noSave {
				raw, err := cfg.Marshal()
				if err != nil {
					return fmt.Errorf("encode config: %w", err)
				}
				s, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
				runID, err = s.SaveRun(context.WithoutCancel(ctx), &store.Run{
					Network:   n.Name(),
					Seed:      netCfg.Seed,
					Layers:    cfg.LayerSizes(),
					Epochs:    hist.Epochs(),
					BatchSize: cfg.Training.BatchSize,
					Cancelled: cancelled,
					Config:    string(raw),
					History:   hist,
					Weights:   n.Weights(),
					States:    storeStates(n.LayerStates()),
				})
				if err != nil {
					return fmt.Errorf("save run: %w", err)
				}
			}

			final := make(map[string]float64, len(hist))
			for name := range hist {
				final[name] = hist.Final(name)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":    runID,
					"network":   n.Name(),
					"epochs":    hist.Epochs(),
					"cancelled": cancelled,
					"final":     final,
					"history":   hist,
					"trace":     trace.Lines(),
				})
			}

			out := cmd.OutOrStdout()
			if cancelled {
				fmt.Fprintf(out, "\nTraining interrupted after %d epochs.\n", hist.Epochs())
			}
			fmt.Fprintf(out, "\nFinal: %s\n", formatScores(final))
			if runID != "" {
				fmt.Fprintf(out, "Saved run %s\n", runID)
			}
			return nil
		},
	}
	cmd.Flags().Int("epochs", 0, "Number of epochs (overrides config)")
	cmd.Flags().Uint64("seed", 0, "Weight initialization seed (overrides config)")
	cmd.Flags().Bool("no-save", false, "Do not save the run")
	return cmd
}

// formatScores renders metric scores in name order.
func formatScores(scores map[string]float64) string {
	parts := make([]string, 0, len(scores))
	for _, name := range slices.Sorted(maps.Keys(scores)) {
		parts = append(parts, fmt.Sprintf("%s=%.6f", name, scores[name]))
	}
	return strings.Join(parts, "  ")
}
