package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"sensor-ingest/internal/audit"
	"sensor-ingest/internal/auth"
	ingestapp "sensor-ingest/internal/ingest/application"
)

// RunHandler serves POST /api/v1/ingest/run.
type RunHandler struct {
	service  *ingestapp.Service
	auditLog audit.Logger
	logger   *log.Logger
}

// NewRunHandler constructs an ingestion trigger handler. The audit logger may
// be nil.
func NewRunHandler(service *ingestapp.Service, auditLog audit.Logger, logger *log.Logger) (*RunHandler, error) {
	if service == nil {
		return nil, errors.New("ingest http: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RunHandler{service: service, auditLog: auditLog, logger: logger}, nil
}

type runResponse struct {
	Stats   ingestapp.BatchStats   `json:"stats"`
	Results []ingestapp.FileResult `json:"results"`
}

// ServeHTTP runs one batch over the configured folder.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, results, err := h.service.Run(r.Context())
	if err != nil {
		h.logger.Printf("ingest http: run error: %v", err)
		http.Error(w, "ingest run error", http.StatusInternalServerError)
		return
	}

	h.writeAudit(r, stats)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runResponse{Stats: stats, Results: results})
}

func (h *RunHandler) writeAudit(r *http.Request, stats ingestapp.BatchStats) {
	if h.auditLog == nil {
		return
	}
	metadata, _ := json.Marshal(stats)
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "ingest.run",
		ResourceType: "ingest_batch",
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Metadata:     metadata,
	}
	if err := h.auditLog.Log(r.Context(), entry); err != nil {
		h.logger.Printf("ingest http: audit error: %v", err)
	}
}
