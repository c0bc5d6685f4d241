package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/MTGO-Companion/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [database]",
	Short: "Export a player's matches to CSV or JSON",
	Long: "Writes every match of one player, seen from that player's side, oldest first. " +
		"Without --out the rows go to stdout.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := exportOptions{DBPath: argOr(args, 0, cfg.Ingest.DBPath)}
		format, _ := cmd.Flags().GetString("format")
		opts.Player, _ = cmd.Flags().GetString("player")
		opts.Out, _ = cmd.Flags().GetString("out")
		opts.Overwrite, _ = cmd.Flags().GetBool("overwrite")

		var err error
		if opts.Format, err = export.ParseFormat(format); err != nil {
			return err
		}
		return runExport(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format (csv or json)")
	exportCmd.Flags().String("player", "", "player to export (default: most matches)")
	exportCmd.Flags().String("out", "", "output file (default: stdout)")
	exportCmd.Flags().Bool("overwrite", false, "replace an existing output file")
	rootCmd.AddCommand(exportCmd)
}

type exportOptions struct {
	DBPath    string
	Player    string
	Format    export.Format
	Out       string
	Overwrite bool
}

func runExport(ctx context.Context, w io.Writer, opts exportOptions) error {
	db, store, err := openStore(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	player := opts.Player
	if player == "" {
		if player, err = store.TopPlayer(ctx); err != nil {
			return err
		}
	}

	matches, err := store.Matches().ForPlayer(ctx, player)
	if err != nil {
		return err
	}

	if opts.Out == "" {
		return export.Write(w, opts.Format, matches, true)
	}
	if err := export.ToFile(matches, export.Options{
		Format:     opts.Format,
		FilePath:   opts.Out,
		PrettyJSON: true,
		Overwrite:  opts.Overwrite,
	}); err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %d matches for %s to %s\n", len(matches), player, opts.Out)
	return nil
}
