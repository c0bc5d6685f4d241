package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ramonehamilton/MTGO-Companion/internal/charts"
	"github.com/ramonehamilton/MTGO-Companion/internal/stats"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats [database]",
	Short: "Show statistics for the main player",
	Long: "Prints match, game and card statistics for one player. Without --player the " +
		"player with the most matches in the database is used.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := statsOptions{DBPath: argOr(args, 0, cfg.Ingest.DBPath)}
		opts.Player, _ = cmd.Flags().GetString("player")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.MinGames, _ = cmd.Flags().GetInt("min-games")
		opts.Chart, _ = cmd.Flags().GetString("chart")
		opts.WinRateChart, _ = cmd.Flags().GetString("winrate-chart")
		opts.Open, _ = cmd.Flags().GetBool("open")

		return runStats(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	statsCmd.Flags().String("player", "", "player to report on (default: most matches)")
	statsCmd.Flags().Int("limit", 10, "rows per card and recent match listing")
	statsCmd.Flags().Int("min-games", 5, "minimum games for the card win rate listing")
	statsCmd.Flags().String("chart", "", "write a daily results chart to this HTML file")
	statsCmd.Flags().String("winrate-chart", "", "write a win rate chart to this HTML file")
	statsCmd.Flags().Bool("open", false, "open written charts in the browser")
	rootCmd.AddCommand(statsCmd)
}

type statsOptions struct {
	DBPath       string
	Player       string
	Limit        int
	MinGames     int
	Chart        string
	WinRateChart string
	Open         bool
}

func runStats(ctx context.Context, w io.Writer, opts statsOptions) error {
	if _, err := os.Stat(opts.DBPath); err != nil {
		return eris.Wrapf(err, "database not found: %s", opts.DBPath)
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}

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
		if player == "" {
			fmt.Fprintln(w, "No matches in database.")
			return nil
		}
	}

	r := &statsReport{ctx: ctx, w: w, store: store, player: player, opts: opts}
	sections := []func() error{
		r.overview,
		r.streaks,
		r.recent,
		r.castBy,
		r.castAgainst,
		r.cardWinRates,
		r.scores,
		r.daily,
		r.mulligans,
		r.gameLength,
	}
	for _, section := range sections {
		if err := section(); err != nil {
			return err
		}
	}
	return nil
}

// statsReport prints one report section per method.
type statsReport struct {
	ctx    context.Context
	w      io.Writer
	store  *storage.Service
	player string
	opts   statsOptions
}

func (r *statsReport) heading(title string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(r.w, "\n%s\n%s\n%s\n", rule, title, rule)
}

func (r *statsReport) table(header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func (r *statsReport) overview() error {
	rec, err := r.store.PlayerRecord(r.ctx, r.player)
	if err != nil {
		return err
	}

	r.heading("MTGO STATISTICS FOR " + r.player)
	fmt.Fprintf(r.w, "\nOVERALL RECORD: %d-%d (%.1f%% win rate)\n",
		rec.MatchWins, rec.MatchLosses, charts.WinRate(rec.MatchWins, rec.MatchWins+rec.MatchLosses))
	fmt.Fprintf(r.w, "Total Matches: %d\n", rec.Matches)
	fmt.Fprintf(r.w, "Game Record: %d-%d (%.1f%% win rate)\n",
		rec.GameWins, rec.GameLosses, charts.WinRate(rec.GameWins, rec.GameWins+rec.GameLosses))
	if rec.FirstDate != "" {
		fmt.Fprintf(r.w, "Date Range: %s to %s\n", rec.FirstDate, rec.LastDate)
	}
	return nil
}

func (r *statsReport) streaks() error {
	matches, err := r.store.Matches().ForPlayer(r.ctx, r.player)
	if err != nil {
		return err
	}
	s := stats.CalculateStreaks(matches)
	fmt.Fprintf(r.w, "Current Streak: %s\n", stats.FormatCurrentStreak(s.Current))
	fmt.Fprintf(r.w, "Longest Win Streak: %d\n", s.LongestWin)
	fmt.Fprintf(r.w, "Longest Loss Streak: %d\n", s.LongestLoss)
	return nil
}

func (r *statsReport) recent() error {
	matches, err := r.store.Matches().Recent(r.ctx, r.player, r.opts.Limit)
	if err != nil {
		return err
	}

	r.heading("RECENT MATCHES")
	for _, m := range matches {
		result := "Loss"
		if m.Won {
			result = "Win"
		}
		fmt.Fprintf(r.w, "  %s: vs %s - %s (%d-%d)\n", m.Date, m.Opponent, result, m.P1Wins, m.P2Wins)
	}
	return nil
}

func (r *statsReport) castBy() error {
	cards, err := r.store.Plays().CastBy(r.ctx, r.player, r.opts.Limit)
	if err != nil {
		return err
	}
	r.heading(fmt.Sprintf("MOST PLAYED CARDS (by %s)", r.player))
	r.cardCounts(cards)
	return nil
}

func (r *statsReport) castAgainst() error {
	cards, err := r.store.Plays().CastAgainst(r.ctx, r.player, r.opts.Limit)
	if err != nil {
		return err
	}
	r.heading("CARDS CAST AGAINST YOU (by opponents)")
	r.cardCounts(cards)
	return nil
}

func (r *statsReport) cardCounts(cards []models.CardCount) {
	r.table("Card\tTimes_Cast", func(tw *tabwriter.Writer) {
		for _, c := range cards {
			fmt.Fprintf(tw, "%s\t%d\n", c.Card, c.Count)
		}
	})
}

func (r *statsReport) cardWinRates() error {
	cards, err := r.store.Plays().WinRateByCard(r.ctx, r.player, r.opts.MinGames, r.opts.Limit)
	if err != nil {
		return err
	}
	r.heading("WIN RATE WHEN YOU CAST SPECIFIC CARDS")
	r.table("Card\tGames_Cast\tWins\tWin%", func(tw *tabwriter.Writer) {
		for _, c := range cards {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\n", c.Card, c.Games, c.Wins, charts.WinRate(c.Wins, c.Games))
		}
	})
	return nil
}

func (r *statsReport) scores() error {
	scores, err := r.store.Matches().Scores(r.ctx, r.player)
	if err != nil {
		return err
	}
	total := 0
	for _, s := range scores {
		total += s.Matches
	}

	r.heading("MATCH RESULTS SUMMARY")
	r.table("Score\tMatches\tPct", func(tw *tabwriter.Writer) {
		for _, s := range scores {
			fmt.Fprintf(tw, "%d-%d\t%d\t%.1f\n", s.Wins, s.Losses, s.Matches, charts.WinRate(s.Matches, total))
		}
	})
	return nil
}

func (r *statsReport) daily() error {
	days, err := r.store.Matches().Daily(r.ctx, r.player)
	if err != nil {
		return err
	}

	r.heading("RECORD BY DAY")
	r.table("Day\tMatches\tWins\tLosses\tWin%", func(tw *tabwriter.Writer) {
		for _, d := range days {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f\n", d.Day, d.Matches, d.Wins, d.Losses, charts.WinRate(d.Wins, d.Matches))
		}
	})

	return r.renderCharts(days)
}

func (r *statsReport) renderCharts(days []models.DailyRecord) error {
	if len(days) == 0 {
		return nil
	}
	chartCfg := charts.DefaultConfig()
	chartCfg.Subtitle = r.player

	var written []string
	if r.opts.Chart != "" {
		if err := charts.RenderDailyResults(days, chartCfg, r.opts.Chart); err != nil {
			return err
		}
		written = append(written, r.opts.Chart)
	}
	if r.opts.WinRateChart != "" {
		if err := charts.RenderWinRate(days, chartCfg, r.opts.WinRateChart); err != nil {
			return err
		}
		written = append(written, r.opts.WinRateChart)
	}

	for _, path := range written {
		fmt.Fprintf(r.w, "Chart written to %s\n", path)
		if r.opts.Open {
			if err := charts.OpenInBrowser(path); err != nil {
				fmt.Fprintf(r.w, "Could not open browser: %v\n", err)
			}
		}
	}
	return nil
}

func (r *statsReport) mulligans() error {
	recs, err := r.store.Games().ByMulligans(r.ctx, r.player)
	if err != nil {
		return err
	}

	r.heading("MULLIGAN STATISTICS")
	r.table("Mulligans\tGames\tWins\tWin%", func(tw *tabwriter.Writer) {
		for _, m := range recs {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%.1f\n", m.Mulligans, m.Games, m.Wins, charts.WinRate(m.Wins, m.Games))
		}
	})
	return nil
}

func (r *statsReport) gameLength() error {
	buckets, err := r.store.Games().ByLength(r.ctx, r.player)
	if err != nil {
		return err
	}

	r.heading("GAME LENGTH (TURNS)")
	r.table("Turns\tGames\tWins\tWin%", func(tw *tabwriter.Writer) {
		for _, b := range buckets {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f\n", b.Label, b.Games, b.Wins, charts.WinRate(b.Wins, b.Games))
		}
	})
	return nil
}
