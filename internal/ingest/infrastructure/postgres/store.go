package postgres

import (
	"context"
	"database/sql"
	"errors"

	"sensor-ingest/internal/ledger"
	ledgerpg "sensor-ingest/internal/ledger/infrastructure/postgres"
	reading "sensor-ingest/internal/readings/domain"
	readingpg "sensor-ingest/internal/readings/infrastructure/postgres"
)

// Store binds the readings repository and the file ledger to one Postgres
// database so a file's readings and its ledger entry commit atomically.
type Store struct {
	db       *sql.DB
	readings *readingpg.ReadingRepository
	ledger   *ledgerpg.LedgerStore
}

// NewStore constructs an ingestion store.
func NewStore(db *sql.DB, readings *readingpg.ReadingRepository, ledgerStore *ledgerpg.LedgerStore) (*Store, error) {
	if db == nil {
		return nil, errors.New("ingest store: nil db")
	}
	if readings == nil {
		return nil, errors.New("ingest store: nil reading repository")
	}
	if ledgerStore == nil {
		return nil, errors.New("ingest store: nil ledger store")
	}
	return &Store{db: db, readings: readings, ledger: ledgerStore}, nil
}

// ProcessedByPath reports whether the (path, source zip) pair is recorded.
func (s *Store) ProcessedByPath(ctx context.Context, filePath, sourceZip string) (bool, error) {
	return s.ledger.ProcessedByPath(ctx, filePath, sourceZip)
}

// ProcessedByHash reports whether the content hash is recorded.
func (s *Store) ProcessedByHash(ctx context.Context, contentHash string) (bool, error) {
	return s.ledger.ProcessedByHash(ctx, contentHash)
}

// CommitFile persists a file's readings and its ledger entry in one
// transaction. Either both land or neither does; a crash mid-commit leaves
// no partial ledger entry, so the file is retried on the next run.
func (s *Store) CommitFile(ctx context.Context, readings []reading.Reading, entry ledger.Entry) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("ingest store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	written, err := s.readings.InsertReadingsTx(ctx, tx, readings)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := s.ledger.MarkProcessedTx(ctx, tx, entry); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}
