package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// BackupInfo describes a backup file.
type BackupInfo struct {
	Path     string
	Name     string
	Size     int64
	ModTime  time.Time
	Checksum string
}

// BackupDir returns the default backup directory: "backups" next to the
// database file.
func (db *DB) BackupDir() string {
	return filepath.Join(filepath.Dir(db.path), "backups")
}

// Backup writes a consistent copy of the database to dir/name.db using
// VACUUM INTO, which does not block readers. An empty dir uses BackupDir and
// an empty name is derived from the current time. The copy is verified before
// its path is returned.
func (db *DB) Backup(ctx context.Context, dir, name string) (string, error) {
	if dir == "" {
		dir = db.BackupDir()
	}
	if name == "" {
		name = "backup_" + time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "failed to create backup directory")
	}

	path := filepath.Join(dir, strings.TrimSuffix(name, ".db")+".db")
	if _, err := os.Stat(path); err == nil {
		return "", eris.Errorf("backup already exists: %s", path)
	}

	if _, err := db.conn.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", eris.Wrapf(err, "failed to back up database to %s", path)
	}

	if err := VerifyBackup(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", eris.Wrap(err, "backup verification failed")
	}
	return path, nil
}

// VerifyBackup checks that path is an intact SQLite database holding the
// match tables.
func VerifyBackup(ctx context.Context, path string) (err error) {
	if _, err := os.Stat(path); err != nil {
		return eris.Wrapf(err, "backup file not found: %s", path)
	}

	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return eris.Wrap(err, "failed to open backup as database")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = eris.Wrap(closeErr, "failed to close backup")
		}
	}()

	var result string
	if err := conn.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return eris.Wrap(err, "failed to check backup integrity")
	}
	if result != "ok" {
		return eris.Errorf("backup integrity check failed: %s", result)
	}

	var n int
	if err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('Matches', 'Processed_Files')`,
	).Scan(&n); err != nil {
		return eris.Wrap(err, "failed to inspect backup schema")
	}
	if n != 2 {
		return eris.New("backup does not contain the match tables")
	}
	return nil
}

// ListBackups returns the .db files in dir, newest first. A missing
// directory yields no backups.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to read backup directory")
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		checksum, err := fileChecksum(path)
		if err != nil {
			checksum = "unknown"
		}
		backups = append(backups, BackupInfo{
			Path:     path,
			Name:     entry.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Checksum: checksum,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

// fileChecksum returns the hex SHA-256 of a file.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
