package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateEntry is returned when the content hash is already
	// recorded. Callers check ProcessedByPath/ProcessedByHash first; the
	// ledger enforces uniqueness as the final guard.
	ErrDuplicateEntry = errors.New("ledger: duplicate entry")
	// ErrEmptyFilePath is returned when the file path is empty.
	ErrEmptyFilePath = errors.New("ledger: empty file path")
	// ErrEmptyContentHash is returned when the content hash is empty.
	ErrEmptyContentHash = errors.New("ledger: empty content hash")
	// ErrInvalidProcessedAt is returned when the processed timestamp is zero.
	ErrInvalidProcessedAt = errors.New("ledger: invalid processed_at")
)

// Entry records one committed file. Entries are written once, after the
// file's readings are durably persisted, and never mutated.
type Entry struct {
	FilePath    string
	SourceZip   string
	ContentHash string
	ProcessedAt time.Time
}

// Validate checks entry invariants before persistence.
func (e Entry) Validate() error {
	if e.FilePath == "" {
		return ErrEmptyFilePath
	}
	if e.ContentHash == "" {
		return ErrEmptyContentHash
	}
	if e.ProcessedAt.IsZero() {
		return ErrInvalidProcessedAt
	}
	return nil
}

// Ledger answers whether a file has already been committed. A file counts as
// handled when its (path, source zip) pair or its content hash is recorded:
// the path match catches re-runs over the same location, the hash match
// catches identical content re-delivered under a different name.
type Ledger interface {
	ProcessedByPath(ctx context.Context, filePath, sourceZip string) (bool, error)
	ProcessedByHash(ctx context.Context, contentHash string) (bool, error)
}
