package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"sensor-ingest/internal/audit"
	ingestapp "sensor-ingest/internal/ingest/application"
	"sensor-ingest/internal/ingest/infrastructure/memory"
	"sensor-ingest/internal/ingest/source"
)

const sampleCSV = "Time,S1,S2\n" +
	"id,Temp,Press\n" +
	"unit,C,kPa\n" +
	"2024-01-01 00:00:00,1.0,2.0\n" +
	"2024-01-01 00:00:01,1.1,2.1\n"

type stubSource struct {
	files map[source.Candidate]string
}

func (s *stubSource) FindCSVFiles(root string) ([]source.Candidate, error) {
	candidates := make([]source.Candidate, 0, len(s.files))
	for candidate := range s.files {
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })
	return candidates, nil
}

func (s *stubSource) Load(candidate source.Candidate) (source.File, error) {
	text := s.files[candidate]
	sum := sha256.Sum256([]byte(text))
	return source.File{Candidate: candidate, Text: text, ContentHash: hex.EncodeToString(sum[:])}, nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Log(ctx context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func newTestHandler(t *testing.T, auditLog audit.Logger) *RunHandler {
	t.Helper()
	src := &stubSource{files: map[source.Candidate]string{
		{Path: "data/Cond_001.csv"}: sampleCSV,
	}}
	cfg := ingestapp.Config{
		Folder:    "data",
		Pattern:   "(Cond|User|test)",
		Encoding:  "utf-8",
		PlantName: "plant-a",
		MachineNo: "m-01",
	}
	service, err := ingestapp.NewService(memory.NewStore(), src, cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewRunHandler(service, auditLog, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestRunHandler_ProcessesBatch(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Stats   ingestapp.BatchStats   `json:"stats"`
		Results []ingestapp.FileResult `json:"results"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Stats.Processed != 1 {
		t.Fatalf("expected 1 processed file, got %d", body.Stats.Processed)
	}
	if body.Stats.RecordsWritten != 4 {
		t.Fatalf("expected 4 records, got %d", body.Stats.RecordsWritten)
	}
	if len(body.Results) != 1 || body.Results[0].Status != ingestapp.StatusProcessed {
		t.Fatalf("unexpected results: %+v", body.Results)
	}
}

func TestRunHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ingest/run", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestRunHandler_WritesAuditEntry(t *testing.T) {
	recorder := &recordingAudit{}
	handler := newTestHandler(t, recorder)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/run", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Action != "ingest.run" {
		t.Fatalf("unexpected audit action %q", entry.Action)
	}
	var stats ingestapp.BatchStats
	if err := json.Unmarshal(entry.Metadata, &stats); err != nil {
		t.Fatalf("decode audit metadata: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("expected audit metadata with 1 processed file, got %+v", stats)
	}
}
