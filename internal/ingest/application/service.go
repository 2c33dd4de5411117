package application

import (
	"context"
	"errors"
	"log"
	"time"

	"sensor-ingest/internal/ingest/source"
	"sensor-ingest/internal/ledger"
	"sensor-ingest/internal/observability/metrics"
	reading "sensor-ingest/internal/readings/domain"
	"sensor-ingest/internal/readings/parse"
)

// FileStatus is the terminal state of one file's pipeline.
type FileStatus string

const (
	StatusProcessed FileStatus = "processed"
	StatusSkipped   FileStatus = "skipped"
	StatusFailed    FileStatus = "failed"
)

// FileResult is the per-file outcome surfaced to callers.
type FileResult struct {
	Path           string     `json:"path"`
	SourceZip      string     `json:"source_zip,omitempty"`
	Status         FileStatus `json:"status"`
	RecordsWritten int        `json:"records_written"`
	RowsSkipped    int        `json:"rows_skipped"`
	Error          string     `json:"error,omitempty"`
}

// BatchStats aggregates one run over a folder.
type BatchStats struct {
	FilesFound     int `json:"files_found"`
	SkippedByPath  int `json:"skipped_by_path"`
	SkippedByHash  int `json:"skipped_by_hash"`
	Processed      int `json:"processed"`
	Failed         int `json:"failed"`
	RecordsWritten int `json:"records_written"`
	RowsSkipped    int `json:"rows_skipped"`
}

// Store persists a file's readings together with its ledger entry. CommitFile
// is all-or-nothing: the ledger entry is the commit marker for the file.
type Store interface {
	ledger.Ledger
	CommitFile(ctx context.Context, readings []reading.Reading, entry ledger.Entry) (int, error)
}

// Source discovers and loads candidate CSV files.
type Source interface {
	FindCSVFiles(root string) ([]source.Candidate, error)
	Load(candidate source.Candidate) (source.File, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service sequences discover → hash → duplicate check → parse → transform →
// persist+mark for each file in a run. One file's failure never aborts the
// batch.
type Service struct {
	store  Store
	src    Source
	cfg    Config
	clock  Clock
	logger *log.Logger
}

// NewService constructs an ingestion service.
func NewService(store Store, src Source, cfg Config, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if src == nil {
		return nil, errors.New("ingest: nil source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	svc := &Service{store: store, src: src, cfg: cfg, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(svc *Service) {
		if clock != nil {
			svc.clock = clock
		}
	}
}

// Run processes every candidate file under the configured folder. The run may
// be cancelled between files; each file is a self-contained unit of work.
func (s *Service) Run(ctx context.Context) (BatchStats, []FileResult, error) {
	candidates, err := s.src.FindCSVFiles(s.cfg.Folder)
	if err != nil {
		return BatchStats{}, nil, err
	}

	stats := BatchStats{FilesFound: len(candidates)}
	results := make([]FileResult, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, results, err
		}
		result := s.processFile(ctx, candidate)
		results = append(results, result)
		stats.RecordsWritten += result.RecordsWritten
		stats.RowsSkipped += result.RowsSkipped
		switch result.Status {
		case StatusProcessed:
			stats.Processed++
		case StatusFailed:
			stats.Failed++
			s.logger.Printf("ingest: %s failed: %s", result.Path, result.Error)
		}
	}
	stats.SkippedByPath, stats.SkippedByHash = countSkips(results)
	return stats, results, nil
}

func countSkips(results []FileResult) (byPath, byHash int) {
	for _, result := range results {
		if result.Status != StatusSkipped {
			continue
		}
		if result.Error == skipReasonHash {
			byHash++
		} else {
			byPath++
		}
	}
	return byPath, byHash
}

const (
	skipReasonPath = "already processed by path"
	skipReasonHash = "already processed by hash"
)

func (s *Service) processFile(ctx context.Context, candidate source.Candidate) FileResult {
	start := s.clock.Now()
	result := FileResult{Path: candidate.Path, SourceZip: candidate.SourceZip}

	if !s.cfg.ForceReprocess {
		known, err := s.store.ProcessedByPath(ctx, candidate.Path, candidate.SourceZip)
		if err != nil {
			return s.fail(result, start, err)
		}
		if known {
			result.Status = StatusSkipped
			result.Error = skipReasonPath
			metrics.ObserveIngestFile(metrics.IngestResultSkippedPath, s.clock.Now().Sub(start))
			return result
		}
	}

	file, err := s.src.Load(candidate)
	if err != nil {
		return s.fail(result, start, err)
	}

	// ForceReprocess does not bypass this check: byte-identical content is
	// never re-ingested, only files whose content changed.
	known, err := s.store.ProcessedByHash(ctx, file.ContentHash)
	if err != nil {
		return s.fail(result, start, err)
	}
	if known {
		result.Status = StatusSkipped
		result.Error = skipReasonHash
		metrics.ObserveIngestFile(metrics.IngestResultSkippedHash, s.clock.Now().Sub(start))
		return result
	}

	table, err := parse.ParseTable(file.Text, candidate.Path)
	if err != nil {
		return s.fail(result, start, err)
	}
	keep := parse.FilterColumns(table.Columns)
	transformed, err := parse.Transform(table, keep, parse.Meta{
		PlantName:  s.cfg.PlantName,
		MachineNo:  s.cfg.MachineNo,
		SourceFile: candidate.Path,
		SourceZip:  candidate.SourceZip,
		DataLabel:  s.cfg.DataLabel,
	})
	if err != nil {
		return s.fail(result, start, err)
	}
	result.RowsSkipped = transformed.RowsSkipped

	entry := ledger.Entry{
		FilePath:    candidate.Path,
		SourceZip:   candidate.SourceZip,
		ContentHash: file.ContentHash,
		ProcessedAt: s.clock.Now(),
	}
	written, err := s.store.CommitFile(ctx, transformed.Readings, entry)
	if err != nil {
		return s.fail(result, start, err)
	}

	result.Status = StatusProcessed
	result.RecordsWritten = written
	metrics.ObserveIngestFile(metrics.IngestResultProcessed, s.clock.Now().Sub(start))
	metrics.AddIngestRecords(written)
	metrics.AddIngestRowsSkipped(transformed.RowsSkipped)
	return result
}

func (s *Service) fail(result FileResult, start time.Time, err error) FileResult {
	result.Status = StatusFailed
	result.Error = err.Error()
	metrics.ObserveIngestFile(metrics.IngestResultFailed, s.clock.Now().Sub(start))
	return result
}
