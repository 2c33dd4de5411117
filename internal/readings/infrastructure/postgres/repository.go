package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	reading "sensor-ingest/internal/readings/domain"
)

const defaultReadingsTable = "sensor_readings"

// ReadingRepository is a Postgres implementation for long-format readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with the default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertReadingsTx appends readings within the caller's transaction. Readings
// are append-only facts; the caller commits them together with the ledger
// entry for their source file.
func (r *ReadingRepository) InsertReadingsTx(ctx context.Context, tx *sql.Tx, readings []reading.Reading) (int, error) {
	if r == nil {
		return 0, errors.New("reading repo: nil repository")
	}
	if tx == nil {
		return 0, errors.New("reading repo: nil tx")
	}
	if len(readings) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	plant_name,
	machine_no,
	ts,
	sensor_id,
	sensor_name,
	sensor_unit,
	value,
	source_file,
	source_zip,
	data_label
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)`, r.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, rec := range readings {
		if rec.PlantName == "" {
			return 0, reading.ErrEmptyPlantName
		}
		if rec.MachineNo == "" {
			return 0, reading.ErrEmptyMachineNo
		}
		if rec.Time.IsZero() {
			return 0, errors.New("reading repo: zero timestamp")
		}
		if _, err := stmt.ExecContext(
			ctx,
			rec.PlantName,
			rec.MachineNo,
			rec.Time,
			rec.SensorID,
			rec.SensorName,
			rec.SensorUnit,
			rec.Value,
			rec.SourceFile,
			rec.SourceZip,
			rec.DataLabel,
		); err != nil {
			return 0, err
		}
	}
	return len(readings), nil
}
