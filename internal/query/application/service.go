package application

import (
	"context"
	"errors"

	"sensor-ingest/internal/query"
	reading "sensor-ingest/internal/readings/domain"
)

// Service answers pivot queries over stored readings.
type Service struct {
	source reading.Query
}

// NewService constructs a query service.
func NewService(source reading.Query) (*Service, error) {
	if source == nil {
		return nil, errors.New("query: nil reading source")
	}
	return &Service{source: source}, nil
}

// Pivot loads the readings matching the selection and reshapes them into a
// wide table. An empty match yields an empty table, not an error.
func (s *Service) Pivot(ctx context.Context, sel reading.Selection) (*query.Table, error) {
	if s == nil || s.source == nil {
		return nil, errors.New("query: nil service")
	}
	if sel.PlantName == "" {
		return nil, reading.ErrEmptyPlantName
	}
	if sel.MachineNo == "" {
		return nil, reading.ErrEmptyMachineNo
	}
	if sel.Start.IsZero() || sel.End.IsZero() || !sel.End.After(sel.Start) {
		return nil, errors.New("query: end must be after start")
	}

	readings, err := s.source.QueryRange(ctx, sel)
	if err != nil {
		return nil, err
	}
	return query.Pivot(readings), nil
}
