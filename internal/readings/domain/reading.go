package reading

import (
	"context"
	"strings"
	"time"
)

// AbsentSentinel marks a header cell whose sensor is not wired.
const AbsentSentinel = "-"

// SensorColumn is one physical CSV column described by the three header rows.
type SensorColumn struct {
	SensorID   string
	SensorName string
	SensorUnit string
}

// Valid reports whether the column carries a real sensor. A column is valid
// when name and unit are both present and neither is the absent sentinel.
func (c SensorColumn) Valid() bool {
	name := strings.TrimSpace(c.SensorName)
	unit := strings.TrimSpace(c.SensorUnit)
	return name != "" && unit != "" && name != AbsentSentinel && unit != AbsentSentinel
}

// Reading is one long-format fact: a single sensor value at a point in time.
// Value keeps the verbatim source cell text; numeric interpretation is the
// consumer's job.
type Reading struct {
	PlantName  string
	MachineNo  string
	Time       time.Time
	SensorID   string
	SensorName string
	SensorUnit string
	Value      string

	SourceFile string
	SourceZip  string
	DataLabel  string
}

// Selection filters stored readings for the pivot query. End is exclusive.
// An empty SensorNames slice means all sensors.
type Selection struct {
	PlantName   string
	MachineNo   string
	Start       time.Time
	End         time.Time
	SensorNames []string
}

// Query loads readings matching a selection, timestamps ascending, persisted
// insertion order within equal timestamps.
type Query interface {
	QueryRange(ctx context.Context, sel Selection) ([]Reading, error)
}
