package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/ingest"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [log-folder] [database]",
	Short: "Import new MTGO game logs into the database",
	Long: "Scans the log folder for Match_GameLog files not yet recorded in the database, " +
		"parses them and stores every match from both players' perspectives. " +
		"Defaults come from the config file.",
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := argOr(args, 0, cfg.Ingest.LogDir)
		dbPath := argOr(args, 1, cfg.Ingest.DBPath)
		force, _ := cmd.Flags().GetBool("force")

		return runIngest(cmd.Context(), cmd.OutOrStdout(), dir, dbPath, force)
	},
}

func init() {
	ingestCmd.Flags().Bool("force", false, "re-read files already in the ledger")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(ctx context.Context, w io.Writer, dir, dbPath string, force bool) error {
	if err := requireDir(dir); err != nil {
		return err
	}

	db, store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	svc, err := newIngestService(store, ingest.Options{Reprocess: force})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Scanning for log files in: %s\n", dir)
	sum, err := svc.Run(ctx, dir)
	if err != nil {
		return err
	}

	printIngestSummary(w, sum)
	return nil
}

func printIngestSummary(w io.Writer, sum *ingest.Summary) {
	fmt.Fprintf(w, "Found %d game log files\n", sum.Found)
	fmt.Fprintf(w, "Already processed: %d files\n", sum.AlreadyProcessed)
	fmt.Fprintf(w, "New files to process: %d\n", sum.New)

	if sum.New == 0 {
		fmt.Fprintln(w, "No new game logs to process.")
	} else {
		for _, s := range sum.Skips {
			fmt.Fprintf(w, "  Skipped: %s - %s\n", s.Filename, s.Rejection)
		}
		for _, e := range sum.Errors {
			fmt.Fprintf(w, "  Error parsing %s: %v\n", e.Filename, e.Err)
		}
		fmt.Fprintf(w, "\nParsed %d new matches (%d errors, %d skipped)\n", sum.Parsed, sum.Errored, sum.Skipped)
		if sum.Committed != nil {
			// Every match is stored once per player.
			fmt.Fprintf(w, "Added %d new matches to database.\n", sum.Committed.Matches/2)
		}
	}

	if sum.Database != nil {
		printDatabaseSummary(w, sum.Database)
	}
}

func printDatabaseSummary(w io.Writer, db *models.DatabaseSummary) {
	rule := strings.Repeat("=", 40)
	fmt.Fprintf(w, "\n%s\nDATABASE SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "Log files processed: %d\n", db.ProcessedFiles)
	fmt.Fprintf(w, "Unique matches:      %d\n", db.UniqueMatches)
	fmt.Fprintf(w, "Game records:        %d\n", db.Games)
	fmt.Fprintf(w, "Play records:        %d\n", db.Plays)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Database location: %s\n", db.Location)
}
