// Package charts renders match history as interactive HTML charts.
package charts

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// Config holds chart presentation settings.
type Config struct {
	Title    string
	Subtitle string
	Width    string // e.g. "900px"
	Height   string
	Theme    string
	Colors   []string
}

// DefaultConfig returns the default chart settings.
func DefaultConfig() Config {
	return Config{
		Width:  "900px",
		Height: "500px",
		Theme:  "light",
		Colors: []string{"#3BA272", "#EE6666", "#5470C6"},
	}
}

type renderer interface {
	Render(w io.Writer) error
}

// chronological returns days oldest first. Repositories list newest first.
func chronological(days []models.DailyRecord) []models.DailyRecord {
	out := slices.Clone(days)
	slices.SortFunc(out, func(a, b models.DailyRecord) int {
		switch {
		case a.Day < b.Day:
			return -1
		case a.Day > b.Day:
			return 1
		}
		return 0
	})
	return out
}

func globalOptions(cfg Config) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  cfg.Width,
			Height: cfg.Height,
			Theme:  cfg.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    cfg.Title,
			Subtitle: cfg.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithColorsOpts(opts.Colors(cfg.Colors)),
	}
}

// RenderDailyResults writes a stacked bar chart of match wins and losses per
// day to outputPath.
func RenderDailyResults(days []models.DailyRecord, cfg Config, outputPath string) error {
	if len(days) == 0 {
		return eris.New("no matches to chart")
	}
	if cfg.Title == "" {
		cfg.Title = "Daily Match Results"
	}
	days = chronological(days)

	labels := make([]string, len(days))
	wins := make([]opts.BarData, len(days))
	losses := make([]opts.BarData, len(days))
	for i, d := range days {
		labels[i] = d.Day
		wins[i] = opts.BarData{Value: d.Wins}
		losses[i] = opts.BarData{Value: d.Losses}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(cfg)...)
	bar.SetXAxis(labels).
		AddSeries("Wins", wins).
		AddSeries("Losses", losses).
		SetSeriesOptions(
			charts.WithBarChartOpts(opts.BarChart{Stack: "results"}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	return renderTo(bar, outputPath)
}

// RenderWinRate writes a line chart of the cumulative match win rate, in
// percent, at the end of each day.
func RenderWinRate(days []models.DailyRecord, cfg Config, outputPath string) error {
	if len(days) == 0 {
		return eris.New("no matches to chart")
	}
	if cfg.Title == "" {
		cfg.Title = "Match Win Rate"
	}
	days = chronological(days)

	labels := make([]string, len(days))
	rates := make([]opts.LineData, len(days))
	var played, won int
	for i, d := range days {
		played += d.Matches
		won += d.Wins
		labels[i] = d.Day
		rates[i] = opts.LineData{Value: WinRate(won, played)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(globalOptions(cfg)...)
	line.SetXAxis(labels).
		AddSeries("Win Rate", rates).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	return renderTo(line, outputPath)
}

// WinRate returns wins as a percentage of played, rounded to one decimal.
func WinRate(wins, played int) float64 {
	if played == 0 {
		return 0
	}
	pct := float64(wins) * 100 / float64(played)
	return float64(int(pct*10+0.5)) / 10
}

func renderTo(r renderer, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create chart directory %s", dir)
		}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "failed to create chart file")
	}
	defer f.Close()

	if err := r.Render(f); err != nil {
		return eris.Wrap(err, "failed to render chart")
	}
	return nil
}

// OpenInBrowser opens the given file in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return eris.Wrap(err, "failed to get absolute path")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return eris.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
