package memory

import (
	"context"
	"fmt"
	"sync"

	"sensor-ingest/internal/ledger"
	reading "sensor-ingest/internal/readings/domain"
)

type pathKey struct {
	filePath  string
	sourceZip string
}

// Store is an in-memory ingestion store for demo/testing. It mirrors the
// Postgres store's atomicity: readings and the ledger entry land together or
// not at all.
type Store struct {
	mu       sync.RWMutex
	readings []reading.Reading
	byPath   map[pathKey]ledger.Entry
	byHash   map[string]struct{}
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		byPath: make(map[pathKey]ledger.Entry),
		byHash: make(map[string]struct{}),
	}
}

// ProcessedByPath reports whether the (path, source zip) pair is recorded.
func (s *Store) ProcessedByPath(ctx context.Context, filePath, sourceZip string) (bool, error) {
	_ = ctx
	if filePath == "" {
		return false, ledger.ErrEmptyFilePath
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPath[pathKey{filePath, sourceZip}]
	return ok, nil
}

// ProcessedByHash reports whether the content hash is recorded.
func (s *Store) ProcessedByHash(ctx context.Context, contentHash string) (bool, error) {
	_ = ctx
	if contentHash == "" {
		return false, ledger.ErrEmptyContentHash
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[contentHash]
	return ok, nil
}

// CommitFile stores readings and the ledger entry atomically. Any recorded
// content hash is refused; re-committing a (path, source zip) with changed
// content replaces its ledger entry, mirroring the Postgres store.
func (s *Store) CommitFile(ctx context.Context, readings []reading.Reading, entry ledger.Entry) (int, error) {
	_ = ctx
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[entry.ContentHash]; ok {
		return 0, fmt.Errorf("%w: hash %s", ledger.ErrDuplicateEntry, entry.ContentHash)
	}
	key := pathKey{entry.FilePath, entry.SourceZip}
	if prior, ok := s.byPath[key]; ok {
		delete(s.byHash, prior.ContentHash)
	}
	s.readings = append(s.readings, readings...)
	s.byPath[key] = entry
	s.byHash[entry.ContentHash] = struct{}{}
	return len(readings), nil
}

// Readings returns a copy of all committed readings in insertion order.
func (s *Store) Readings() []reading.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reading.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// QueryRange implements reading.Query over the in-memory fact slice.
func (s *Store) QueryRange(ctx context.Context, sel reading.Selection) ([]reading.Reading, error) {
	_ = ctx
	wanted := make(map[string]struct{}, len(sel.SensorNames))
	for _, name := range sel.SensorNames {
		wanted[name] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]reading.Reading, 0)
	for _, rec := range s.readings {
		if sel.PlantName != "" && rec.PlantName != sel.PlantName {
			continue
		}
		if sel.MachineNo != "" && rec.MachineNo != sel.MachineNo {
			continue
		}
		if !sel.Start.IsZero() && rec.Time.Before(sel.Start) {
			continue
		}
		if !sel.End.IsZero() && !rec.Time.Before(sel.End) {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[rec.SensorName]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
