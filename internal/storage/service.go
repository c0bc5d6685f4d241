package storage

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ramonehamilton/MTGO-Companion/internal/storage/models"
	"github.com/ramonehamilton/MTGO-Companion/internal/storage/repository"
)

// CommitResult counts the rows a commit actually added.
type CommitResult struct {
	Files   int64
	Matches int64
	Games   int64
	Plays   int64
	Actions int64
}

// Service provides high-level operations for storing and reading matches.
type Service struct {
	db      *DB
	ledger  repository.LedgerRepository
	matches repository.MatchRepository
	games   repository.GameRepository
	plays   repository.PlayRepository
	actions repository.GameActionRepository
}

// NewService creates a new storage service.
func NewService(db *DB) *Service {
	return &Service{
		db:      db,
		ledger:  repository.NewLedgerRepository(db.Conn()),
		matches: repository.NewMatchRepository(db.Conn()),
		games:   repository.NewGameRepository(db.Conn()),
		plays:   repository.NewPlayRepository(db.Conn()),
		actions: repository.NewGameActionRepository(db.Conn()),
	}
}

// DB returns the underlying database.
func (s *Service) DB() *DB {
	return s.db
}

// Matches returns the match repository.
func (s *Service) Matches() repository.MatchRepository { return s.matches }

// Games returns the game repository.
func (s *Service) Games() repository.GameRepository { return s.games }

// Plays returns the play repository.
func (s *Service) Plays() repository.PlayRepository { return s.plays }

// Actions returns the game action repository.
func (s *Service) Actions() repository.GameActionRepository { return s.actions }

// ProcessedFilenames returns the set of ledgered filenames.
func (s *Service) ProcessedFilenames(ctx context.Context) (map[string]struct{}, error) {
	return s.ledger.ProcessedFilenames(ctx)
}

// Commit writes an already inverted batch and its ledger entries in one
// transaction. Either every row and ledger entry becomes visible or none do.
func (s *Service) Commit(ctx context.Context, batch models.Batch, files []models.ProcessedFile) (*CommitResult, error) {
	res := &CommitResult{}
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		if res.Matches, err = s.matches.InsertTx(ctx, tx, batch.Matches); err != nil {
			return err
		}
		if res.Games, err = s.games.InsertTx(ctx, tx, batch.Games); err != nil {
			return err
		}
		if res.Plays, err = s.plays.InsertTx(ctx, tx, batch.Plays); err != nil {
			return err
		}
		if res.Actions, err = s.actions.UpsertTx(ctx, tx, batch.Actions); err != nil {
			return err
		}
		if res.Files, err = s.ledger.InsertTx(ctx, tx, files); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to commit batch")
	}
	return res, nil
}

// Summary returns the database totals.
func (s *Service) Summary(ctx context.Context) (*models.DatabaseSummary, error) {
	sum := &models.DatabaseSummary{Location: s.db.Path()}
	if abs, err := filepath.Abs(s.db.Path()); err == nil && s.db.Path() != ":memory:" {
		sum.Location = abs
	}

	var err error
	if sum.ProcessedFiles, err = s.ledger.Count(ctx); err != nil {
		return nil, err
	}
	if sum.UniqueMatches, err = s.matches.CountDistinct(ctx); err != nil {
		return nil, err
	}
	if sum.Games, err = s.games.Count(ctx); err != nil {
		return nil, err
	}
	if sum.Plays, err = s.plays.Count(ctx); err != nil {
		return nil, err
	}
	return sum, nil
}

// PlayerRecord returns the match and game record of player.
func (s *Service) PlayerRecord(ctx context.Context, player string) (*models.PlayerRecord, error) {
	rec, err := s.matches.Record(ctx, player)
	if err != nil {
		return nil, err
	}
	rec.GameWins, rec.GameLosses, err = s.games.Record(ctx, player)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// TopPlayer returns the player with the most matches, or "" for an empty database.
func (s *Service) TopPlayer(ctx context.Context) (string, error) {
	return s.matches.TopPlayer(ctx)
}
