package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	reading "sensor-ingest/internal/readings/domain"
)

// ReadingQuery is a Postgres query implementation for the pivot path.
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query with the default table name.
func NewReadingQuery(db *sql.DB, opts ...QueryOption) *ReadingQuery {
	query := &ReadingQuery{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the reading query.
type QueryOption func(*ReadingQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *ReadingQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// QueryRange returns readings matching the selection within [start, end),
// timestamps ascending, persisted insertion order within equal timestamps.
func (q *ReadingQuery) QueryRange(ctx context.Context, sel reading.Selection) ([]reading.Reading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	if sel.PlantName == "" || sel.MachineNo == "" {
		return nil, errors.New("reading query: plant name and machine number required")
	}
	if sel.Start.IsZero() || sel.End.IsZero() {
		return nil, errors.New("reading query: start and end required")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `
SELECT ts, sensor_id, sensor_name, sensor_unit, value
FROM %s
WHERE plant_name = $1
	AND machine_no = $2
	AND ts >= $3
	AND ts < $4`, q.table)
	args := []any{sel.PlantName, sel.MachineNo, sel.Start, sel.End}

	if len(sel.SensorNames) > 0 {
		placeholders := make([]string, 0, len(sel.SensorNames))
		for _, name := range sel.SensorNames {
			args = append(args, name)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		fmt.Fprintf(&sb, "\n\tAND sensor_name IN (%s)", strings.Join(placeholders, ", "))
	}
	sb.WriteString("\nORDER BY ts ASC, id ASC")

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]reading.Reading, 0)
	for rows.Next() {
		rec := reading.Reading{PlantName: sel.PlantName, MachineNo: sel.MachineNo}
		if err := rows.Scan(&rec.Time, &rec.SensorID, &rec.SensorName, &rec.SensorUnit, &rec.Value); err != nil {
			return nil, err
		}
		readings = append(readings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}
