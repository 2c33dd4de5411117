package query

import (
	"sort"
	"time"

	reading "sensor-ingest/internal/readings/domain"
)

// Table is a wide view over long-format readings: one row per distinct
// timestamp ascending, one column per distinct sensor name in
// first-encountered order.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row holds the readings of one timestamp. A sensor with no reading at this
// timestamp is simply absent from Values.
type Row struct {
	Time   time.Time
	Values map[string]string
}

// Pivot reshapes readings into a wide table. Duplicate (time, sensor name)
// pairs are resolved last-write-wins in input order; the input is expected in
// persisted insertion order.
func Pivot(readings []reading.Reading) *Table {
	table := &Table{Columns: make([]string, 0), Rows: make([]Row, 0)}
	seenColumn := make(map[string]struct{})
	rowIndex := make(map[time.Time]int)

	for _, rec := range readings {
		if _, ok := seenColumn[rec.SensorName]; !ok {
			seenColumn[rec.SensorName] = struct{}{}
			table.Columns = append(table.Columns, rec.SensorName)
		}
		idx, ok := rowIndex[rec.Time]
		if !ok {
			idx = len(table.Rows)
			rowIndex[rec.Time] = idx
			table.Rows = append(table.Rows, Row{Time: rec.Time, Values: make(map[string]string)})
		}
		table.Rows[idx].Values[rec.SensorName] = rec.Value
	}

	sort.Slice(table.Rows, func(i, j int) bool {
		return table.Rows[i].Time.Before(table.Rows[j].Time)
	})
	return table
}

// Unpivot is the inverse reshape: one reading per present cell, row-major.
// Sensor id/unit metadata is not recoverable from a wide table.
func Unpivot(table *Table, plantName, machineNo string) []reading.Reading {
	if table == nil {
		return nil
	}
	readings := make([]reading.Reading, 0)
	for _, row := range table.Rows {
		for _, column := range table.Columns {
			value, ok := row.Values[column]
			if !ok {
				continue
			}
			readings = append(readings, reading.Reading{
				PlantName:  plantName,
				MachineNo:  machineNo,
				Time:       row.Time,
				SensorName: column,
				Value:      value,
			})
		}
	}
	return readings
}
