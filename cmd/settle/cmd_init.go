package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/settle/internal/config"
	"github.com/spf13/cobra"
)

const exampleHeader = `# settle configuration
#
# Run 'settle train' to train this network and save the run.
# Run 'settle runs' to list saved runs.
`

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example configuration",
		Long: `Write a runnable example configuration: a 2-3-1 network and four
training samples. The file named by --config is not overwritten unless
--force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := config.Example().Marshal()
			if err != nil {
				return fmt.Errorf("encode example config: %w", err)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("create config directory: %w", err)
				}
			}
			if err := os.WriteFile(path, append([]byte(exampleHeader), data...), 0644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "created", "path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	return cmd
}
