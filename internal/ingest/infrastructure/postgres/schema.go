package postgres

import (
	"context"
	"database/sql"
	"errors"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sensor_readings (
	id BIGSERIAL PRIMARY KEY,
	plant_name TEXT NOT NULL,
	machine_no TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	sensor_id TEXT NOT NULL DEFAULT '',
	sensor_name TEXT NOT NULL,
	sensor_unit TEXT NOT NULL,
	value TEXT NOT NULL,
	source_file TEXT NOT NULL DEFAULT '',
	source_zip TEXT NOT NULL DEFAULT '',
	data_label TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_readings_selection
	ON sensor_readings (plant_name, machine_no, ts)`,
	`CREATE TABLE IF NOT EXISTS processed_files (
	file_path TEXT NOT NULL,
	source_zip TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (file_path, source_zip)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_processed_files_hash
	ON processed_files (content_hash)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	actor TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL DEFAULT '',
	resource_id TEXT NOT NULL DEFAULT '',
	metadata JSONB,
	payload_digest TEXT NOT NULL DEFAULT '',
	ip TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`,
}

// EnsureSchema creates the readings fact table, the processed-file ledger and
// the audit log when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("ingest store: nil db")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
