package store

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Ledger tracks which input files have already been fully ingested.
// Implementations must survive restarts: once a file id is marked it is
// never reprocessed.
type Ledger interface {
	IsProcessed(fileID string) bool
	MarkProcessed(fileID string) error
	Close() error
}

// FileLedger is an append-only, line-oriented log of processed file ids.
// The whole log is loaded into memory at open for O(1) membership checks.
type FileLedger struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	processed map[string]struct{}
}

// OpenFileLedger opens (or creates) the ledger at path and loads all entries.
// An unreadable ledger is treated as empty: reprocessing is safe, silently
// skipping is not.
func OpenFileLedger(path string) (*FileLedger, error) {
	processed := make(map[string]struct{})

	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				processed[line] = struct{}{}
			}
		}
	} else if !os.IsNotExist(err) {
		slog.Warn("ledger unreadable, treating all files as unprocessed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		processed = make(map[string]struct{})
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ledger %s", path)
	}

	return &FileLedger{
		path:      path,
		file:      file,
		processed: processed,
	}, nil
}

// IsProcessed reports whether fileID has been marked in this or any earlier run.
func (l *FileLedger) IsProcessed(fileID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[fileID]
	return ok
}

// MarkProcessed durably appends fileID to the log. Callers must only mark a
// file after all of its records have been committed (write-then-mark).
func (l *FileLedger) MarkProcessed(fileID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.processed[fileID]; ok {
		return nil
	}

	w := bufio.NewWriter(l.file)
	if _, err := w.WriteString(fileID + "\n"); err != nil {
		return errors.Wrapf(err, "failed to append ledger entry for %s", fileID)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush ledger")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync ledger")
	}

	l.processed[fileID] = struct{}{}
	return nil
}

// Len returns the number of marked files.
func (l *FileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.processed)
}

func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
