package parse

import (
	"encoding/csv"
	"fmt"
	"strings"

	reading "sensor-ingest/internal/readings/domain"
)

const headerRowCount = 3

// Table is the structural decomposition of one sensor CSV file: the three
// metadata rows folded into per-column sensor descriptors, plus the raw data
// rows. The timestamp column is excluded from Columns; data rows keep it as
// their first cell.
type Table struct {
	TimeLabel string
	Columns   []reading.SensorColumn
	Rows      [][]string
}

// ParseTable decodes one CSV body. The first three rows are sensor ids,
// sensor names and sensor units, cell-aligned with every data row. The
// filename is used for diagnostics only.
func ParseTable(text, filename string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", filename, reading.ErrMalformedHeader, err)
	}
	for i, record := range records {
		records[i] = stripTrailingEmpty(record)
	}
	if len(records) < headerRowCount {
		return nil, fmt.Errorf("parse %s: %w: %d header rows, need %d",
			filename, reading.ErrMalformedHeader, len(records), headerRowCount)
	}

	ids, names, units := records[0], records[1], records[2]
	width := len(ids)
	if len(names) != width || len(units) != width {
		return nil, fmt.Errorf("parse %s: %w: header widths %d/%d/%d",
			filename, reading.ErrMalformedHeader, len(ids), len(names), len(units))
	}
	if width == 0 {
		return nil, fmt.Errorf("parse %s: %w: empty header rows", filename, reading.ErrMalformedHeader)
	}

	columns := make([]reading.SensorColumn, 0, width-1)
	for i := 1; i < width; i++ {
		columns = append(columns, reading.SensorColumn{
			SensorID:   ids[i],
			SensorName: names[i],
			SensorUnit: units[i],
		})
	}

	rows := records[headerRowCount:]
	for i, row := range rows {
		// Ragged rows wider than the header cannot be aligned with a
		// sensor column; the excess cells are dropped.
		if len(row) > width {
			rows[i] = row[:width]
		}
	}
	return &Table{TimeLabel: ids[0], Columns: columns, Rows: rows}, nil
}

// FilterColumns returns the indices of valid sensor columns in original
// left-to-right order. The index set is applied uniformly to every data row.
// Zero valid columns is not an error.
func FilterColumns(columns []reading.SensorColumn) []int {
	keep := make([]int, 0, len(columns))
	for i, col := range columns {
		if col.Valid() {
			keep = append(keep, i)
		}
	}
	return keep
}

// stripTrailingEmpty removes trailing empty cells left by a dangling
// delimiter at line end, so a ragged trailing comma never shifts column
// alignment.
func stripTrailingEmpty(record []string) []string {
	end := len(record)
	for end > 0 && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}
