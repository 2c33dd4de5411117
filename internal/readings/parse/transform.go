package parse

import (
	"strings"
	"time"

	reading "sensor-ingest/internal/readings/domain"
)

// timeLayouts are the accepted timestamp cell formats, source system format
// first.
var timeLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Meta carries the per-file constants stamped onto every emitted reading.
type Meta struct {
	PlantName  string
	MachineNo  string
	SourceFile string
	SourceZip  string
	DataLabel  string
}

// Result is the outcome of one wide-to-long transformation.
type Result struct {
	Readings    []reading.Reading
	RowsSkipped int
}

// Transform reshapes the wide table into one reading per (data row, retained
// column). A row whose timestamp cell fails to parse is skipped and counted;
// it never fails the file. Values are carried as verbatim cell text. Output
// order is row-major then column-major and is not an external contract.
func Transform(table *Table, keep []int, meta Meta) (Result, error) {
	if strings.TrimSpace(meta.PlantName) == "" {
		return Result{}, reading.ErrEmptyPlantName
	}
	if strings.TrimSpace(meta.MachineNo) == "" {
		return Result{}, reading.ErrEmptyMachineNo
	}

	result := Result{Readings: make([]reading.Reading, 0, len(table.Rows)*len(keep))}
	for _, row := range table.Rows {
		if len(row) == 0 {
			continue
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			result.RowsSkipped++
			continue
		}
		for _, idx := range keep {
			cell := idx + 1 // data rows carry the timestamp at index 0
			if cell >= len(row) {
				continue
			}
			col := table.Columns[idx]
			result.Readings = append(result.Readings, reading.Reading{
				PlantName:  meta.PlantName,
				MachineNo:  meta.MachineNo,
				Time:       ts,
				SensorID:   col.SensorID,
				SensorName: col.SensorName,
				SensorUnit: col.SensorUnit,
				Value:      row[cell],
				SourceFile: meta.SourceFile,
				SourceZip:  meta.SourceZip,
				DataLabel:  meta.DataLabel,
			})
		}
	}
	return result, nil
}

func parseTimestamp(cell string) (time.Time, error) {
	trimmed := strings.TrimSpace(cell)
	var lastErr error
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, trimmed)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
