package gamelog

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

const (
	// FileToken marks MTGO game log files; the text after it is the match ID.
	FileToken = "Match_GameLog_"

	// FileExt is the extension of MTGO game log files.
	FileExt = ".dat"
)

// LogFileInfo contains information about a discovered game log file.
type LogFileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Transcript is one raw game log ready for parsing.
type Transcript struct {
	Filename string
	MatchID  string
	Text     string
	ModTime  time.Time
}

// IsGameLogFile returns true if the filename follows the MTGO game log naming convention.
func IsGameLogFile(name string) bool {
	return strings.Contains(name, FileToken) && strings.HasSuffix(name, FileExt)
}

// MatchIDFromFilename extracts the match identifier embedded in a game log filename.
func MatchIDFromFilename(name string) (string, bool) {
	name = filepath.Base(name)
	if !IsGameLogFile(name) {
		return "", false
	}
	_, rest, _ := strings.Cut(name, FileToken)
	id := strings.TrimSuffix(rest, FileExt)
	if id == "" {
		return "", false
	}
	return id, true
}

// DiscoverLogFiles walks root recursively and returns every game log file,
// oldest first. Unreadable subdirectories are skipped; an unreadable root is an error.
func DiscoverLogFiles(root string) ([]*LogFileInfo, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "stat log directory %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("log directory %s is not a directory", root)
	}

	var files []*LogFileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Skip directories we cannot read
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsGameLogFile(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, &LogFileInfo{
			Path:    path,
			Name:    d.Name(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "walk log directory %s", root)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Path < files[j].Path
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})

	return files, nil
}

// ReadTranscript loads a game log from disk. MTGO writes single-byte
// ISO-8859-1 text, which is decoded to UTF-8 here so the parser works on
// ordinary Go strings.
func ReadTranscript(file *LogFileInfo) (Transcript, error) {
	matchID, ok := MatchIDFromFilename(file.Name)
	if !ok {
		return Transcript{}, eris.Errorf("%s is not a game log file", file.Name)
	}

	raw, err := os.ReadFile(file.Path)
	if err != nil {
		return Transcript{}, eris.Wrapf(err, "read %s", file.Name)
	}

	text, err := DecodeLatin1(raw)
	if err != nil {
		return Transcript{}, eris.Wrapf(err, "decode %s", file.Name)
	}

	return Transcript{
		Filename: file.Name,
		MatchID:  matchID,
		Text:     text,
		ModTime:  file.ModTime,
	}, nil
}

// DecodeLatin1 converts ISO-8859-1 bytes to a UTF-8 string.
func DecodeLatin1(raw []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
