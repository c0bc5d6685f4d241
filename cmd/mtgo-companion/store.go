package main

import (
	"os"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/archetype"
	"github.com/ramonehamilton/MTGO-Companion/internal/mtgo/ingest"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage"
)

// argOr returns args[i] when present, otherwise def.
func argOr(args []string, i int, def string) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return def
}

// requireDir fails when dir is empty or does not exist.
func requireDir(dir string) error {
	if dir == "" {
		return eris.New("no log folder given and no default for this platform; pass one or set ingest.log_dir")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return eris.Wrapf(err, "log folder not found: %s", dir)
	}
	if !info.IsDir() {
		return eris.Errorf("log folder is not a directory: %s", dir)
	}
	return nil
}

// openStore opens (and migrates) the database at path.
func openStore(path string) (*storage.DB, *storage.Service, error) {
	db, err := storage.Open(storage.DefaultConfig(path))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "open database %s", path)
	}
	return db, storage.NewService(db), nil
}

// newIngestService builds an ingest service from the loaded config. opts
// carries the per-command settings.
func newIngestService(store *storage.Service, opts ingest.Options) (*ingest.Service, error) {
	opts.Workers = cfg.Ingest.Workers
	opts.ActionLogLines = cfg.Ingest.ActionLogLines
	if cfg.Ingest.ArchetypesFile != "" {
		rules, err := archetype.LoadRules(cfg.Ingest.ArchetypesFile)
		if err != nil {
			return nil, err
		}
		opts.Classifier = archetype.NewClassifier(rules)
	}
	return ingest.NewService(store, opts), nil
}
