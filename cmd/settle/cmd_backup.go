package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/settle/internal/backup"
	"github.com/nvandessel/settle/internal/config"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive saved runs to a compressed file",
		Long: `Write every saved run, weights included, to a gzip-compressed archive
with a checksummed header. Archives go to a backups directory next to the
run database unless --output is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			output, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if output == "" {
				output = backup.GeneratePath(backupDir(cfg))
			}
			header, err := backup.Backup(cmd.Context(), s, output)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"path": output, "runs": header.RunCount, "checksum": header.Checksum})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d runs to %s\n", header.RunCount, output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Backup file path")
	cmd.AddCommand(newBackupListCmd(), newBackupRestoreCmd(), newBackupPruneCmd())
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup files",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			backups, err := backup.List(backupDir(cfg))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"backups": backups, "count": len(backups)})
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tRUNS\tSIZE\tCREATED")
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", b.Path, b.RunCount, humanize.Bytes(uint64(b.Size)), humanize.RelTime(b.CreatedAt, time.Now(), "ago", "from now"))
			}
			return w.Flush()
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			replace, _ := cmd.Flags().GetBool("replace")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			mode := backup.RestoreMerge
			if replace {
				mode = backup.RestoreReplace
			}
			result, err := backup.Restore(cmd.Context(), s, args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d runs (%d already present)\n", result.Restored, result.Skipped)
			return nil
		},
	}
	cmd.Flags().Bool("replace", false, "Overwrite runs that already exist")
	return cmd
}

func newBackupPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old backup files",
		Long: `Delete backups kept by neither --keep (most recent N) nor --max-age
(for example 30d or 2w).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			policy := &backup.CompositePolicy{Policies: []backup.RetentionPolicy{&backup.CountPolicy{MaxCount: keep}}}
			if maxAge != "" {
				d, err := backup.ParseDuration(maxAge)
				if err != nil {
					return err
				}
				policy.Policies = append(policy.Policies, &backup.AgePolicy{MaxAge: d})
			}

			deleted, err := backup.ApplyRetention(backupDir(cfg), policy)
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": deleted, "count": len(deleted)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d backups\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().Int("keep", 5, "Number of most recent backups to keep")
	cmd.Flags().String("max-age", "", "Also keep backups younger than this")
	return cmd
}

func backupDir(cfg *config.Config) string {
	return backup.Dir(cfg.Store.Path)
}
