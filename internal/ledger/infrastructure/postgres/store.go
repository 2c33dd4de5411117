package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"sensor-ingest/internal/ledger"
)

const defaultLedgerTable = "processed_files"

const pgUniqueViolation = "23505"

// LedgerStore is a Postgres implementation of the processed-file ledger.
type LedgerStore struct {
	db    *sql.DB
	table string
}

// NewLedgerStore constructs a ledger store with the default table name.
func NewLedgerStore(db *sql.DB, opts ...Option) *LedgerStore {
	store := &LedgerStore{db: db, table: defaultLedgerTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Option configures the ledger store.
type Option func(*LedgerStore)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(store *LedgerStore) {
		if table != "" {
			store.table = table
		}
	}
}

// ProcessedByPath reports whether the (path, source zip) pair is recorded.
func (s *LedgerStore) ProcessedByPath(ctx context.Context, filePath, sourceZip string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("ledger store: nil db")
	}
	if filePath == "" {
		return false, ledger.ErrEmptyFilePath
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s WHERE file_path = $1 AND source_zip = $2
)`, s.table)
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, filePath, sourceZip).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ProcessedByHash reports whether the content hash is recorded.
func (s *LedgerStore) ProcessedByHash(ctx context.Context, contentHash string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("ledger store: nil db")
	}
	if contentHash == "" {
		return false, ledger.ErrEmptyContentHash
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s WHERE content_hash = $1
)`, s.table)
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, contentHash).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessedTx records the entry within the caller's transaction. The
// entry is the commit marker for the whole file, so it must share the
// transaction that persisted the file's readings. Any recorded content hash
// is refused with ledger.ErrDuplicateEntry; re-marking the same
// (path, source zip) with changed content replaces the entry, which is what
// a forced reprocess needs.
func (s *LedgerStore) MarkProcessedTx(ctx context.Context, tx *sql.Tx, entry ledger.Entry) error {
	if s == nil {
		return errors.New("ledger store: nil store")
	}
	if tx == nil {
		return errors.New("ledger store: nil tx")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	existsQuery := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s WHERE content_hash = $1
)`, s.table)
	var exists bool
	if err := tx.QueryRowContext(ctx, existsQuery, entry.ContentHash).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: hash %s", ledger.ErrDuplicateEntry, entry.ContentHash)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (file_path, source_zip, content_hash, processed_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (file_path, source_zip) DO UPDATE SET
	content_hash = EXCLUDED.content_hash,
	processed_at = EXCLUDED.processed_at`, s.table)
	if _, err := tx.ExecContext(ctx, query, entry.FilePath, entry.SourceZip, entry.ContentHash, entry.ProcessedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateEntry, entry.FilePath)
		}
		return err
	}
	return nil
}
