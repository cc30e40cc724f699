package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/settle/internal/config"
	"github.com/nvandessel/settle/internal/logging"
	"github.com/nvandessel/settle/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle - two-phase neural networks with local learning",
		Long: `settle trains layered networks whose units settle over discrete
time-steps, first with only the input clamped and then with the target
clamped too, and learn from the difference between the two phases.

Networks, data and training options are read from settle.yaml. Trained
runs are saved to a local SQLite database for later inference.`,
		SilenceUsage: true,
	}
	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newTrainCmd(),
		newInferCmd(),
		newEvaluateCmd(),
		newRunsCmd(),
		newWeightsCmd(),
		newGraphCmd(),
		newConfigCmd(),
		newBackupCmd(),
	)
	return rootCmd
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("json", false, "Output as JSON")
	cmd.PersistentFlags().String("config", config.DefaultFile, "Path to the configuration file")
	cmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn or error (overrides config)")
}

// loadConfig loads the file named by --config and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

func openStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
