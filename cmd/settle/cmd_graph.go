package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/settle/internal/network"
	"github.com/nvandessel/settle/internal/visualization"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Visualize the network topology",
		Long: `Output the network's layers and meshes in DOT (Graphviz), JSON, or
HTML format. With --run the saved run's network is drawn and the HTML
page includes its trained weights.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatFlag, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			open, _ := cmd.Flags().GetBool("open")
			runID, _ := cmd.Flags().GetString("run")

			format, err := visualization.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var n *network.Network
			var weights []*mat.Dense
			if runID != "" {
				s, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
				rr, err := restoreRun(cmd.Context(), s, runID)
				if err != nil {
					return err
				}
				n, weights = rr.Network, rr.Run.Weights
			} else {
				netCfg, err := cfg.NetworkConfig()
				if err != nil {
					return err
				}
				if n, err = network.New(netCfg); err != nil {
					return err
				}
				weights = n.Weights()
			}
			top := n.Topology()

			switch format {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(top))
			case visualization.FormatJSON:
				if err := writeJSON(cmd.OutOrStdout(), visualization.RenderJSON(top)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			case visualization.FormatHTML:
				page, err := visualization.RenderHTML(top, weights)
				if err != nil {
					return fmt.Errorf("render HTML: %w", err)
				}
				return writeHTML(cmd, page, output, open)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "dot", "Output format: dot, json, or html")
	cmd.Flags().StringP("output", "o", "", "Output file path (html format only)")
	cmd.Flags().Bool("open", false, "Open the HTML file in a browser")
	cmd.Flags().String("run", "", "Draw a saved run instead of the configured network")
	return cmd
}

func writeHTML(cmd *cobra.Command, page []byte, output string, open bool) error {
	outPath := output
	if outPath == "" {
		outPath = filepath.Join(os.TempDir(), "settle-graph.html")
	}
	if err := os.WriteFile(outPath, page, 0644); err != nil {
		return fmt.Errorf("write HTML file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", outPath)

	if open {
		if err := visualization.OpenFile(outPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
		}
	}
	return nil
}
