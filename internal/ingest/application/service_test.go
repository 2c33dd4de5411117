package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"sort"
	"testing"
	"time"

	"sensor-ingest/internal/ingest/infrastructure/memory"
	"sensor-ingest/internal/ingest/source"
	"sensor-ingest/internal/ledger"
)

const goodCSV = "Time,S1,S2\n" +
	"label,Temp,Press\n" +
	"unit,C,kPa\n" +
	"2024/01/01 00:00:00,23.5,101.2\n" +
	"2024/01/01 00:00:10,23.6,101.1\n"

type stubSource struct {
	files map[source.Candidate]string
}

func (s stubSource) FindCSVFiles(root string) ([]source.Candidate, error) {
	_ = root
	candidates := make([]source.Candidate, 0, len(s.files))
	for c := range s.files {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SourceZip != candidates[j].SourceZip {
			return candidates[i].SourceZip < candidates[j].SourceZip
		}
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

func (s stubSource) Load(candidate source.Candidate) (source.File, error) {
	text, ok := s.files[candidate]
	if !ok {
		return source.File{}, errors.New("stub: unknown candidate")
	}
	sum := sha256.Sum256([]byte(text))
	return source.File{
		Candidate:   candidate,
		Text:        text,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func testConfig() Config {
	return Config{
		Folder:    "data",
		Pattern:   "Cond",
		Encoding:  "utf-8",
		PlantName: "AAA",
		MachineNo: "No.1",
		DataLabel: "inspection",
	}
}

func newTestService(t *testing.T, store Store, src Source, cfg Config) *Service {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	svc, err := NewService(store, src, cfg, logger,
		WithClock(fixedClock{at: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunProcessesFiles(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: goodCSV,
	}}
	svc := newTestService(t, store, src, testConfig())

	stats, results, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.FilesFound != 1 || stats.Processed != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.RecordsWritten != 4 {
		t.Fatalf("expected 2 rows x 2 columns = 4 records, got %d", stats.RecordsWritten)
	}
	if len(results) != 1 || results[0].Status != StatusProcessed {
		t.Fatalf("unexpected results: %+v", results)
	}
	if got := len(store.Readings()); got != 4 {
		t.Fatalf("expected 4 stored readings, got %d", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: goodCSV,
	}}
	svc := newTestService(t, store, src, testConfig())

	if _, _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, results, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Processed != 0 || stats.SkippedByPath != 1 || stats.RecordsWritten != 0 {
		t.Fatalf("expected one path skip and zero new records, got %+v", stats)
	}
	if results[0].Status != StatusSkipped {
		t.Fatalf("expected skipped status, got %+v", results[0])
	}
	if got := len(store.Readings()); got != 4 {
		t.Fatalf("expected unchanged 4 readings, got %d", got)
	}
}

func TestRunDedupsByHash(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}:  goodCSV,
		{Path: "data/Cond_copy.csv"}: goodCSV,
	}}
	svc := newTestService(t, store, src, testConfig())

	stats, _, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 || stats.SkippedByHash != 1 {
		t.Fatalf("expected 1 processed and 1 hash skip, got %+v", stats)
	}
	if got := len(store.Readings()); got != 4 {
		t.Fatalf("expected a single commitment of data, got %d readings", got)
	}
}

func TestRunContinuesAfterFileFailure(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_bad.csv"}:  "Time,S1\nlabel,Temp\n",
		{Path: "data/Cond_good.csv"}: goodCSV,
	}}
	svc := newTestService(t, store, src, testConfig())

	stats, results, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Failed != 1 || stats.Processed != 1 {
		t.Fatalf("expected 1 failed and 1 processed, got %+v", stats)
	}
	for _, result := range results {
		if result.Path != "data/Cond_bad.csv" {
			continue
		}
		if result.Status != StatusFailed || result.Error == "" {
			t.Fatalf("expected bad file failed with reason, got %+v", result)
		}
	}
}

func TestRunCountsRowSkips(t *testing.T) {
	csv := "Time,S1\n" +
		"label,Temp\n" +
		"unit,C\n" +
		"broken,1.0\n" +
		"2024/01/01 00:00:10,2.0\n"
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_rows.csv"}: csv,
	}}
	svc := newTestService(t, store, src, testConfig())

	stats, results, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 || stats.RowsSkipped != 1 || stats.RecordsWritten != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if results[0].RowsSkipped != 1 {
		t.Fatalf("expected per-file skip count 1, got %+v", results[0])
	}
}

func TestRunZipCandidateKeepsSourceZip(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "inner/Cond_010.csv", SourceZip: "data/batch.zip"}: goodCSV,
	}}
	svc := newTestService(t, store, src, testConfig())

	if _, _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	readings := store.Readings()
	if len(readings) == 0 || readings[0].SourceZip != "data/batch.zip" {
		t.Fatalf("expected source zip carried onto readings, got %+v", readings)
	}
	known, err := store.ProcessedByPath(context.Background(), "inner/Cond_010.csv", "data/batch.zip")
	if err != nil || !known {
		t.Fatalf("expected ledger keyed by (path, zip), got known=%v err=%v", known, err)
	}
}

type duplicateStore struct {
	*memory.Store
}

func (s duplicateStore) ProcessedByPath(ctx context.Context, filePath, sourceZip string) (bool, error) {
	_ = ctx
	_ = filePath
	_ = sourceZip
	return false, nil
}

func (s duplicateStore) ProcessedByHash(ctx context.Context, contentHash string) (bool, error) {
	_ = ctx
	_ = contentHash
	return false, nil
}

func TestRunDuplicateEntryIsFileFatal(t *testing.T) {
	inner := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: goodCSV,
	}}
	svc := newTestService(t, duplicateStore{Store: inner}, src, testConfig())

	if _, _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// The duplicate check is blinded, so the second run reaches CommitFile
	// and trips the ledger's final uniqueness guard.
	stats, results, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected duplicate commit to fail the file, got %+v", stats)
	}
	if results[0].Status != StatusFailed {
		t.Fatalf("expected failed result, got %+v", results[0])
	}
	if got := len(inner.Readings()); got != 4 {
		t.Fatalf("expected no duplicate rows committed, got %d", got)
	}
}

func TestRunForceReprocessChangedContent(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: goodCSV,
	}}

	svc := newTestService(t, store, src, testConfig())
	if _, _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The file was rewritten in place with an extra row.
	src.files[source.Candidate{Path: "data/Cond_001.csv"}] = goodCSV +
		"2024/01/01 00:00:20,23.7,101.0\n"

	cfg := testConfig()
	cfg.ForceReprocess = true
	forced := newTestService(t, store, src, cfg)
	stats, _, err := forced.Run(context.Background())
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("expected changed file to be reprocessed, got %+v", stats)
	}
	if got := len(store.Readings()); got != 10 {
		t.Fatalf("expected 4 + 6 readings after reprocess, got %d", got)
	}
}

func TestRunForceReprocessUnchangedContentSkipsByHash(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: goodCSV,
	}}

	svc := newTestService(t, store, src, testConfig())
	if _, _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg := testConfig()
	cfg.ForceReprocess = true
	forced := newTestService(t, store, src, cfg)
	stats, _, err := forced.Run(context.Background())
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if stats.SkippedByHash != 1 || stats.Processed != 0 {
		t.Fatalf("expected unchanged file to be skipped by hash, got %+v", stats)
	}
	if got := len(store.Readings()); got != 4 {
		t.Fatalf("expected no duplicate rows, got %d", got)
	}
}

func TestRunCancelledBetweenFiles(t *testing.T) {
	store := memory.NewStore()
	src := stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: goodCSV,
	}}
	svc := newTestService(t, store, src, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := len(store.Readings()); got != 0 {
		t.Fatalf("expected no readings after cancelled run, got %d", got)
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	entry := ledger.Entry{FilePath: "a.csv", ContentHash: "h", ProcessedAt: time.Now()}
	if err := entry.Validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}
	if err := (ledger.Entry{ContentHash: "h", ProcessedAt: time.Now()}).Validate(); !errors.Is(err, ledger.ErrEmptyFilePath) {
		t.Fatalf("expected ErrEmptyFilePath, got %v", err)
	}
	if err := (ledger.Entry{FilePath: "a.csv", ProcessedAt: time.Now()}).Validate(); !errors.Is(err, ledger.ErrEmptyContentHash) {
		t.Fatalf("expected ErrEmptyContentHash, got %v", err)
	}
}
