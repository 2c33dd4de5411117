package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sensor-ingest/internal/ingest/infrastructure/memory"
	"sensor-ingest/internal/ledger"
	queryapp "sensor-ingest/internal/query/application"
	reading "sensor-ingest/internal/readings/domain"
)

func seededHandler(t *testing.T) *PivotHandler {
	t.Helper()
	store := memory.NewStore()
	readings := []reading.Reading{
		{PlantName: "AAA", MachineNo: "No.1", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), SensorName: "Temp", SensorUnit: "C", Value: "23.5"},
		{PlantName: "AAA", MachineNo: "No.1", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), SensorName: "Press", SensorUnit: "kPa", Value: "101.2"},
		{PlantName: "AAA", MachineNo: "No.1", Time: time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC), SensorName: "Temp", SensorUnit: "C", Value: "23.6"},
	}
	entry := ledger.Entry{FilePath: "seed.csv", ContentHash: "seed-hash", ProcessedAt: time.Now()}
	if _, err := store.CommitFile(context.Background(), readings, entry); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	service, err := queryapp.NewService(store)
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}
	handler, err := NewPivotHandler(service, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestPivotHandlerJSON(t *testing.T) {
	handler := seededHandler(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload pivotResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Columns) != 2 || payload.Columns[0] != "Temp" {
		t.Fatalf("unexpected columns: %v", payload.Columns)
	}
	if len(payload.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(payload.Rows))
	}
	if payload.Rows[0].Values["Press"] != "101.2" {
		t.Fatalf("unexpected first row: %+v", payload.Rows[0])
	}
	if _, ok := payload.Rows[1].Values["Press"]; ok {
		t.Fatal("expected absent Press cell in second row")
	}
}

func TestPivotHandlerSensorFilter(t *testing.T) {
	handler := seededHandler(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00&sensors=Press", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var payload pivotResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Columns) != 1 || payload.Columns[0] != "Press" {
		t.Fatalf("expected only Press column, got %v", payload.Columns)
	}
}

func TestPivotHandlerUnknownSensorEmptyTable(t *testing.T) {
	handler := seededHandler(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00&sensors=Nope", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty result, got %d", resp.Code)
	}
	var payload pivotResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Rows) != 0 || len(payload.Columns) != 0 {
		t.Fatalf("expected empty table, got %+v", payload)
	}
}

func TestPivotHandlerCSV(t *testing.T) {
	handler := seededHandler(t)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00&format=csv", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "time,Temp,Press" {
		t.Fatalf("unexpected csv header: %q", lines[0])
	}
	if !strings.HasSuffix(lines[2], ",") {
		t.Fatalf("expected empty trailing cell for absent reading, got %q", lines[2])
	}
}

func TestPivotHandlerValidation(t *testing.T) {
	handler := seededHandler(t)
	cases := []string{
		"/api/v1/readings/pivot?machine=No.1&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00",
		"/api/v1/readings/pivot?plant=AAA&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00",
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=bad&to=2024-01-02+00:00:00",
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=2024-01-02+00:00:00&to=2024-01-01+00:00:00",
		"/api/v1/readings/pivot?plant=AAA&machine=No.1&from=2024-01-01+00:00:00&to=2024-01-02+00:00:00&format=yaml",
	}
	for _, target := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", target, resp.Code)
		}
	}
}

func TestPivotHandlerMethodNotAllowed(t *testing.T) {
	handler := seededHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings/pivot", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
