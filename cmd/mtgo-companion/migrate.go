package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long:  "Applies, rolls back or reports the embedded SQL migrations of a database.",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up [database]",
	Short: "Apply all pending migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(argOr(args, 0, cfg.Ingest.DBPath), func(mm *storage.MigrationManager) error {
			if err := mm.Up(); err != nil {
				return eris.Wrap(err, "migrate up")
			}
			zap.L().Info("all migrations applied successfully")
			return printVersion(cmd.OutOrStdout(), mm)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [database]",
	Short: "Roll back all migrations, dropping every table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(argOr(args, 0, cfg.Ingest.DBPath), func(mm *storage.MigrationManager) error {
			if err := mm.Down(); err != nil {
				return eris.Wrap(err, "migrate down")
			}
			return printVersion(cmd.OutOrStdout(), mm)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version [database]",
	Short: "Print the current schema version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrations(argOr(args, 0, cfg.Ingest.DBPath), func(mm *storage.MigrationManager) error {
			return printVersion(cmd.OutOrStdout(), mm)
		})
	},
}

var migrateGotoCmd = &cobra.Command{
	Use:   "goto <version> [database]",
	Short: "Migrate up or down to a specific schema version",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateGoto(cmd.OutOrStdout(), argOr(args, 1, cfg.Ingest.DBPath), args[0])
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version> [database]",
	Short: "Set the schema version without running migrations",
	Long: "Marks the database as being at the given version and clears the dirty flag. " +
		"Use it to recover after a migration failed halfway, once the schema has been fixed by hand.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateForce(cmd.OutOrStdout(), argOr(args, 1, cfg.Ingest.DBPath), args[0])
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd, migrateGotoCmd, migrateForceCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateGoto(w io.Writer, dbPath, arg string) error {
	version, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return eris.Wrapf(err, "invalid schema version %q", arg)
	}
	return withMigrations(dbPath, func(mm *storage.MigrationManager) error {
		if err := mm.Goto(uint(version)); err != nil {
			return err
		}
		return printVersion(w, mm)
	})
}

func runMigrateForce(w io.Writer, dbPath, arg string) error {
	version, err := strconv.Atoi(arg)
	if err != nil || version < 0 {
		return eris.Errorf("invalid schema version %q", arg)
	}
	return withMigrations(dbPath, func(mm *storage.MigrationManager) error {
		if err := mm.Force(version); err != nil {
			return err
		}
		zap.L().Warn("schema version forced", zap.Int("version", version))
		return printVersion(w, mm)
	})
}

func withMigrations(dbPath string, fn func(mm *storage.MigrationManager) error) error {
	mm, err := storage.NewMigrationManager(dbPath)
	if err != nil {
		return err
	}
	defer mm.Close() //nolint:errcheck
	return fn(mm)
}

func printVersion(w io.Writer, mm *storage.MigrationManager) error {
	version, dirty, err := mm.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(w, "Schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(w, "Schema version: %d\n", version)
	return nil
}
