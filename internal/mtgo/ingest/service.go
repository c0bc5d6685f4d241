// Package ingest turns a folder of MTGO game logs into committed database rows.
//
// A run scans the folder for files missing from the ledger, parses them in
// parallel, mirrors every parsed match to both players' perspectives and
// commits the rows together with the ledger entries in one transaction.
// Files that fail to parse are reported and left out of the ledger, so the
// next run retries them.
package ingest

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/MTGO-Companion/internal/archetype"
	"github.com/ramonehamilton/MTGO-Companion/internal/metrics"
	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/gamelog"
	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/perspective"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
)

// Options configures an ingest Service.
type Options struct {
	// Workers bounds the number of transcripts parsed at once. Default: NumCPU.
	Workers int

	// ActionLogLines is how many raw lines are kept per game. Default: 15.
	ActionLogLines int

	// Reprocess ignores the ledger when scanning. Rows already stored are
	// kept; only game action logs are rewritten.
	Reprocess bool

	// Settle leaves files modified less than this long ago for a later run.
	// The client appends to a game log while its match is in progress.
	Settle time.Duration

	// Classifier labels archetypes before commit. Nil disables classification.
	Classifier *archetype.Classifier

	// Logger defaults to zap.L().
	Logger *zap.Logger

	// Now stamps ledger entries. Default: time.Now.
	Now func() time.Time

	// Metrics accumulates timings across runs. Default: a new set.
	Metrics *metrics.IngestMetrics
}

// FileError is a transcript that could not be read or parsed.
type FileError struct {
	Filename string
	Err      error
}

// Skip is a transcript rejected by parser policy.
type Skip struct {
	Filename  string
	Rejection *gamelog.Rejection
}

// Summary reports what a run did.
type Summary struct {
	Found            int // Game log files in the folder
	AlreadyProcessed int // Ledger entries found at scan time
	New              int // Files selected for parsing
	Unsettled        int // Files still being written, left for a later run
	Parsed           int // Matches parsed and committed
	Errored          int
	Skipped          int

	Errors []FileError
	Skips  []Skip

	// Committed is nil when nothing was committed.
	Committed *storage.CommitResult

	// Database holds the totals after the run.
	Database *models.DatabaseSummary
}

// Service runs the ingest pipeline against one store.
type Service struct {
	store *storage.Service
	opts  Options
	log   *zap.Logger
}

// NewService creates a new ingest service.
func NewService(store *storage.Service, opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ActionLogLines < 1 {
		opts.ActionLogLines = gamelog.DefaultActionLogLines
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewIngestMetrics()
	}
	return &Service{store: store, opts: opts, log: opts.Logger}
}

// Metrics returns the metrics this service records into.
func (s *Service) Metrics() *metrics.IngestMetrics {
	return s.opts.Metrics
}

// outcome is the parse result for one candidate file.
type outcome struct {
	file   *gamelog.LogFileInfo
	result gamelog.Result
	err    error
}

// Run ingests every new game log under dir. Per-file failures are counted in
// the summary; an error is returned only when the folder or the store fails,
// in which case nothing from this run is committed.
func (s *Service) Run(ctx context.Context, dir string) (*Summary, error) {
	sum := &Summary{}
	s.opts.Metrics.Runs.Add(1)

	candidates, err := s.scan(ctx, dir, sum)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		outcomes, err := s.parseAll(ctx, candidates)
		if err != nil {
			return nil, err
		}

		batch, ledger := s.collect(outcomes, sum)
		if !batch.Empty() {
			if s.opts.Classifier != nil {
				s.opts.Classifier.ClassifyBatch(&batch)
			}
			inverted := perspective.Invert(batch)

			start := time.Now()
			sum.Committed, err = s.store.Commit(ctx, inverted, ledger)
			if err != nil {
				return nil, err
			}
			s.opts.Metrics.CommitLatency.Record(time.Since(start))
			s.opts.Metrics.MatchesStored.Add(uint64(sum.Parsed))
			s.log.Info("batch committed",
				zap.Int("matches", sum.Parsed),
				zap.Int64("match_rows", sum.Committed.Matches),
				zap.Int64("game_rows", sum.Committed.Games),
				zap.Int64("play_rows", sum.Committed.Plays),
			)
		}
	}

	sum.Database, err = s.store.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// scan lists game logs under dir that are not yet in the ledger.
func (s *Service) scan(ctx context.Context, dir string, sum *Summary) ([]*gamelog.LogFileInfo, error) {
	files, err := gamelog.DiscoverLogFiles(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "scan %s", dir)
	}
	sum.Found = len(files)

	processed, err := s.store.ProcessedFilenames(ctx)
	if err != nil {
		return nil, err
	}
	sum.AlreadyProcessed = len(processed)

	candidates := files
	if !s.opts.Reprocess {
		candidates = make([]*gamelog.LogFileInfo, 0, len(files))
		for _, f := range files {
			if _, ok := processed[f.Name]; !ok {
				candidates = append(candidates, f)
			}
		}
	}
	if s.opts.Settle > 0 {
		candidates = s.settled(candidates, sum)
	}
	sum.New = len(candidates)

	s.log.Info("scan complete",
		zap.String("dir", dir),
		zap.Int("found", sum.Found),
		zap.Int("already_processed", sum.AlreadyProcessed),
		zap.Int("new", sum.New),
		zap.Int("unsettled", sum.Unsettled),
	)
	return candidates, nil
}

// settled drops files modified within the settle window.
func (s *Service) settled(files []*gamelog.LogFileInfo, sum *Summary) []*gamelog.LogFileInfo {
	now := s.opts.Now()
	out := make([]*gamelog.LogFileInfo, 0, len(files))
	for _, f := range files {
		if now.Sub(f.ModTime) < s.opts.Settle {
			sum.Unsettled++
			continue
		}
		out = append(out, f)
	}
	return out
}

// parseAll parses candidates on a bounded worker pool. Results keep the
// order of candidates.
func (s *Service) parseAll(ctx context.Context, candidates []*gamelog.LogFileInfo) ([]outcome, error) {
	outcomes := make([]outcome, len(candidates))
	opts := gamelog.Options{ActionLogLines: s.opts.ActionLogLines}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, f := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			outcomes[i] = parseFile(f, opts)
			s.opts.Metrics.ParseLatency.Record(time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "parse transcripts")
	}
	return outcomes, nil
}

func parseFile(f *gamelog.LogFileInfo, opts gamelog.Options) outcome {
	t, err := gamelog.ReadTranscript(f)
	if err != nil {
		return outcome{file: f, err: err}
	}
	res, err := gamelog.ParseWithOptions(t, opts)
	return outcome{file: f, result: res, err: err}
}

// collect folds outcomes into one batch and its ledger entries.
func (s *Service) collect(outcomes []outcome, sum *Summary) (models.Batch, []models.ProcessedFile) {
	var batch models.Batch
	var ledger []models.ProcessedFile
	now := s.opts.Now()

	for _, o := range outcomes {
		log := s.log.With(zap.String("file", o.file.Name))

		switch {
		case o.err != nil:
			sum.Errored++
			s.opts.Metrics.FilesErrored.Add(1)
			sum.Errors = append(sum.Errors, FileError{Filename: o.file.Name, Err: o.err})
			log.Warn("failed to parse transcript", zap.Error(o.err))

		case o.result.Rejected():
			sum.Skipped++
			s.opts.Metrics.FilesSkipped.Add(1)
			sum.Skips = append(sum.Skips, Skip{Filename: o.file.Name, Rejection: o.result.Rejection})
			log.Info("skipped transcript", zap.Stringer("reason", o.result.Rejection))

		default:
			pm := o.result.Parsed
			sum.Parsed++
			s.opts.Metrics.FilesParsed.Add(1)
			batch.Append(pm)
			ledger = append(ledger, models.ProcessedFile{
				Filename:      o.file.Name,
				MatchID:       pm.Match.MatchID,
				ProcessedDate: now,
			})
			log.Debug("parsed transcript",
				zap.String("match_id", pm.Match.MatchID),
				zap.Int("games", len(pm.Games)),
				zap.Int("plays", len(pm.Plays)),
			)
		}
	}
	return batch, ledger
}
