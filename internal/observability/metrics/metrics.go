package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "sensor_ingest_"

	resultSuccess = "success"
	resultError   = "error"

	ingestResultProcessed   = "processed"
	ingestResultSkippedPath = "skipped_path"
	ingestResultSkippedHash = "skipped_hash"
	ingestResultFailed      = "failed"
)

var (
	registerOnce sync.Once

	ingestFiles       *prometheus.CounterVec
	ingestFileLatency *prometheus.HistogramVec
	ingestRecords     prometheus.Counter
	ingestRowsSkipped prometheus.Counter

	queryRequests *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
)

// Init registers observability metrics and DB pool gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestFiles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "files_total",
				Help: "Total ingested files by result",
			},
			[]string{"result"},
		)
		ingestFileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "file_latency_seconds",
				Help:    "Per-file ingestion latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		ingestRecords = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_written_total",
				Help: "Total long-format records written",
			},
		)
		ingestRowsSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_skipped_total",
				Help: "Total data rows skipped for unparseable timestamps",
			},
		)

		queryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_requests_total",
				Help: "Total pivot query requests by format and result",
			},
			[]string{"format", "result"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "query_latency_seconds",
				Help:    "Pivot query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestFiles,
			ingestFileLatency,
			ingestRecords,
			ingestRowsSkipped,
			queryRequests,
			queryLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngestFile records one file's terminal result and latency.
func ObserveIngestFile(result string, duration time.Duration) {
	if result == "" {
		result = ingestResultProcessed
	}
	if ingestFiles != nil {
		ingestFiles.WithLabelValues(result).Inc()
	}
	if ingestFileLatency != nil {
		ingestFileLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddIngestRecords increments the written-record counter.
func AddIngestRecords(count int) {
	if count <= 0 {
		return
	}
	if ingestRecords != nil {
		ingestRecords.Add(float64(count))
	}
}

// AddIngestRowsSkipped increments the skipped-row counter.
func AddIngestRowsSkipped(count int) {
	if count <= 0 {
		return
	}
	if ingestRowsSkipped != nil {
		ingestRowsSkipped.Add(float64(count))
	}
}

// ObserveQuery records a pivot query request.
func ObserveQuery(format, result string, duration time.Duration) {
	if format == "" {
		format = "json"
	}
	if result == "" {
		result = resultSuccess
	}
	if queryRequests != nil {
		queryRequests.WithLabelValues(format, result).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	IngestResultProcessed   = ingestResultProcessed
	IngestResultSkippedPath = ingestResultSkippedPath
	IngestResultSkippedHash = ingestResultSkippedHash
	IngestResultFailed      = ingestResultFailed
)
