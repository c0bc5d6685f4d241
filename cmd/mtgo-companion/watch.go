package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/ingest"
	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [log-folder] [database]",
	Short: "Ingest game logs as the MTGO client writes them",
	Long: "Runs an ingest at start and again whenever a game log is created or changed " +
		"under the log folder. Game logs modified within watch.settle are left until they " +
		"go quiet, so a match is stored once it has finished. Stops on interrupt.",
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir := argOr(args, 0, cfg.Ingest.LogDir)
		dbPath := argOr(args, 1, cfg.Ingest.DBPath)
		poll, _ := cmd.Flags().GetDuration("poll")

		if err := requireDir(dir); err != nil {
			return err
		}

		db, store, err := openStore(dbPath)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		// Validate has already checked the durations.
		debounce, _ := cfg.DebounceDuration()
		minInterval, _ := cfg.MinIntervalDuration()
		settle, _ := cfg.SettleDuration()

		svc, err := newIngestService(store, ingest.Options{Settle: settle})
		if err != nil {
			return err
		}

		log := zap.L().Named("watch")
		run := func(ctx context.Context) error {
			sum, err := svc.Run(ctx, dir)
			if err != nil {
				return err
			}
			if sum.Unsettled > 0 {
				log.Debug("game logs still being written", zap.Int("unsettled", sum.Unsettled))
			}
			if sum.New > 0 {
				log.Info("ingest run complete",
					zap.Int("parsed", sum.Parsed),
					zap.Int("errored", sum.Errored),
					zap.Int("skipped", sum.Skipped),
					zap.Int("unique_matches", sum.Database.UniqueMatches),
					svc.Metrics().Field(),
				)
			}
			return nil
		}

		log.Info("watching for game logs", zap.String("dir", dir), zap.String("db", db.Path()))
		w := watcher.New(dir, run, watcher.Options{
			Debounce:     debounce,
			MinInterval:  minInterval,
			Settle:       settle,
			PollInterval: poll,
			Logger:       log,
		})
		return w.Watch(ctx)
	},
}

func init() {
	watchCmd.Flags().Duration("poll", 0, "also rescan at this interval (0 disables)")
	rootCmd.AddCommand(watchCmd)
}
