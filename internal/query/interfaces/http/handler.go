package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"sensor-ingest/internal/observability/metrics"
	queryapp "sensor-ingest/internal/query/application"
	"sensor-ingest/internal/query/interfaces"
	reading "sensor-ingest/internal/readings/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// PivotHandler serves GET /api/v1/readings/pivot.
type PivotHandler struct {
	service *queryapp.Service
	logger  *log.Logger
}

// NewPivotHandler constructs a pivot query handler.
func NewPivotHandler(service *queryapp.Service, logger *log.Logger) (*PivotHandler, error) {
	if service == nil {
		return nil, errors.New("query http: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PivotHandler{service: service, logger: logger}, nil
}

type pivotRow struct {
	Time   string            `json:"time"`
	Values map[string]string `json:"values"`
}

type pivotResponse struct {
	Columns []string   `json:"columns"`
	Rows    []pivotRow `json:"rows"`
}

// ServeHTTP answers pivot queries as JSON, CSV, XLSX or PDF.
func (h *PivotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	sel, err := parseSelection(r)
	if err != nil {
		metrics.ObserveQuery(format, metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	table, err := h.service.Pivot(r.Context(), sel)
	if err != nil {
		h.logger.Printf("query http: pivot error: %v", err)
		metrics.ObserveQuery(format, metrics.ResultError, time.Since(start))
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	switch format {
	case "json":
		rows := make([]pivotRow, 0, len(table.Rows))
		for _, row := range table.Rows {
			rows = append(rows, pivotRow{Time: row.Time.Format(timeLayout), Values: row.Values})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pivotResponse{Columns: table.Columns, Rows: rows})
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="readings.csv"`)
		if err := interfaces.WriteTableCSV(w, table); err != nil {
			h.logger.Printf("query http: csv export error: %v", err)
		}
	case "xlsx":
		payload, err := interfaces.BuildTableXLSX(table)
		if err != nil {
			h.logger.Printf("query http: xlsx export error: %v", err)
			metrics.ObserveQuery(format, metrics.ResultError, time.Since(start))
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="readings.xlsx"`)
		_, _ = w.Write(payload)
	case "pdf":
		payload, err := interfaces.BuildTablePDF(table)
		if err != nil {
			h.logger.Printf("query http: pdf export error: %v", err)
			metrics.ObserveQuery(format, metrics.ResultError, time.Since(start))
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="readings.pdf"`)
		_, _ = w.Write(payload)
	default:
		metrics.ObserveQuery(format, metrics.ResultError, time.Since(start))
		http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}
	metrics.ObserveQuery(format, metrics.ResultSuccess, time.Since(start))
}

func parseSelection(r *http.Request) (reading.Selection, error) {
	q := r.URL.Query()
	sel := reading.Selection{
		PlantName: q.Get("plant"),
		MachineNo: q.Get("machine"),
	}
	if sel.PlantName == "" {
		return sel, errors.New("plant is required")
	}
	if sel.MachineNo == "" {
		return sel, errors.New("machine is required")
	}

	start, err := parseTimeParam(q.Get("from"))
	if err != nil {
		return sel, fmt.Errorf("invalid from: %v", err)
	}
	end, err := parseTimeParam(q.Get("to"))
	if err != nil {
		return sel, fmt.Errorf("invalid to: %v", err)
	}
	if !end.After(start) {
		return sel, errors.New("to must be after from")
	}
	sel.Start, sel.End = start, end

	if sensors := q.Get("sensors"); sensors != "" {
		for _, name := range strings.Split(sensors, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				sel.SensorNames = append(sel.SensorNames, name)
			}
		}
	}
	return sel, nil
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing")
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
