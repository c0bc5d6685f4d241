package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and list database backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [database]",
	Short: "Write a verified copy of the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := argOr(args, 0, cfg.Ingest.DBPath)
		dir, _ := cmd.Flags().GetString("dir")
		name, _ := cmd.Flags().GetString("name")

		if _, err := os.Stat(dbPath); err != nil {
			return eris.Wrapf(err, "database not found: %s", dbPath)
		}
		db, _, err := openStore(dbPath)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		path, err := db.Backup(cmd.Context(), dir, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list [database]",
	Short: "List backups of the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			db, _, err := openStore(argOr(args, 0, cfg.Ingest.DBPath))
			if err != nil {
				return err
			}
			dir = db.BackupDir()
			_ = db.Close()
		}

		backups, err := storage.ListBackups(dir)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No backups in %s\n", dir)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tSHA256")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.12s\n", b.Name, b.Size, b.ModTime.Format("2006-01-02 15:04"), b.Checksum)
		}
		return tw.Flush()
	},
}

func init() {
	backupCmd.PersistentFlags().String("dir", "", "backup directory (default: backups next to the database)")
	backupCreateCmd.Flags().String("name", "", "backup file name (default: timestamp)")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd)
	rootCmd.AddCommand(backupCmd)
}
