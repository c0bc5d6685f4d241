// Package watcher re-runs ingestion when the MTGO client writes game logs.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/gamelog"
)

// settleMargin covers coarse file system timestamps.
const settleMargin = time.Second

// RunFunc performs one ingest run.
type RunFunc func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last file event before a run.
	Debounce time.Duration

	// MinInterval is the minimum time between two runs. Zero disables the limit.
	MinInterval time.Duration

	// Settle schedules one more run this long after the last game log event,
	// once files the run skipped as still being written have gone quiet.
	// Zero disables it.
	Settle time.Duration

	// PollInterval triggers a run periodically in case file events are
	// missed. Zero disables polling.
	PollInterval time.Duration

	// Logger defaults to zap.L().
	Logger *zap.Logger
}

// Watcher runs ingestion once at start and again after game log changes.
// Runs never overlap.
type Watcher struct {
	dir     string
	run     RunFunc
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a watcher for dir.
func New(dir string, run RunFunc, opts Options) *Watcher {
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Watcher{
		dir:     dir,
		run:     run,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     opts.Logger.With(zap.String("dir", dir)),
	}
}

// Watch blocks until ctx is canceled. Failed runs are logged and retried on
// the next trigger.
func (w *Watcher) Watch(ctx context.Context) (err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "create file watcher")
	}
	defer func() {
		if closeErr := fw.Close(); closeErr != nil && err == nil {
			err = eris.Wrap(closeErr, "close file watcher")
		}
	}()

	if err := w.addRecursive(fw, w.dir); err != nil {
		return err
	}

	w.trigger(ctx, "startup")

	// Stop and Reset never leave a stale tick in C on Go 1.23+.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()
	if w.opts.Settle > 0 {
		settle.Reset(w.opts.Settle + settleMargin)
	}

	var poll <-chan time.Time
	if w.opts.PollInterval > 0 {
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fw, event) {
				debounce.Reset(w.opts.Debounce)
				if w.opts.Settle > 0 {
					settle.Reset(w.opts.Settle + settleMargin)
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", zap.Error(err))

		case <-debounce.C:
			w.trigger(ctx, "file change")

		case <-settle.C:
			w.trigger(ctx, "settled")

		case <-poll:
			w.trigger(ctx, "poll")
		}
	}
}

// handleEvent starts watching new subdirectories and reports whether the
// event touched a game log.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fw, event.Name); err != nil {
				w.log.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return false
		}
	}
	if !gamelog.IsGameLogFile(filepath.Base(event.Name)) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

func (w *Watcher) trigger(ctx context.Context, reason string) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}
	w.log.Debug("starting ingest run", zap.String("reason", reason))
	if err := w.run(ctx); err != nil && ctx.Err() == nil {
		w.log.Error("ingest run failed", zap.Error(err))
	}
}

// addRecursive watches root and every directory below it. fsnotify does not
// recurse on its own.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return eris.Wrapf(err, "watch %s", root)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			if path == root {
				return eris.Wrapf(err, "watch %s", root)
			}
			w.log.Warn("failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}
