package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"sensor-ingest/internal/audit"
	"sensor-ingest/internal/auth"
	ingestapp "sensor-ingest/internal/ingest/application"
	ingestpg "sensor-ingest/internal/ingest/infrastructure/postgres"
	ingesthttp "sensor-ingest/internal/ingest/interfaces/http"
	"sensor-ingest/internal/ingest/source"
	ledgerpg "sensor-ingest/internal/ledger/infrastructure/postgres"
	"sensor-ingest/internal/observability/metrics"
	queryapp "sensor-ingest/internal/query/application"
	queryhttp "sensor-ingest/internal/query/interfaces/http"
	readingpg "sensor-ingest/internal/readings/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	ctx := context.Background()
	if err := ingestpg.EnsureSchema(ctx, db); err != nil {
		logger.Fatalf("schema error: %v", err)
	}

	metrics.Init(db, logger)

	ingestCfg, err := ingestapp.LoadConfig()
	if err != nil {
		logger.Fatalf("ingest config error: %v", err)
	}

	finder, err := source.NewFinder(ingestCfg.Pattern, ingestCfg.Encoding)
	if err != nil {
		logger.Fatalf("source finder error: %v", err)
	}

	readingRepo := readingpg.NewReadingRepository(db)
	ledgerStore := ledgerpg.NewLedgerStore(db)
	store, err := ingestpg.NewStore(db, readingRepo, ledgerStore)
	if err != nil {
		logger.Fatalf("ingest store error: %v", err)
	}
	ingestService, err := ingestapp.NewService(store, finder, ingestCfg, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	auditRepo := audit.NewRepository(db)
	runHandler, err := ingesthttp.NewRunHandler(ingestService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	readingQuery := readingpg.NewReadingQuery(db)
	queryService, err := queryapp.NewService(readingQuery)
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}
	pivotHandler, err := queryhttp.NewPivotHandler(queryService, logger)
	if err != nil {
		logger.Fatalf("pivot handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/readings/pivot", pivotHandler)
	mux.Handle("/api/v1/ingest/run", runHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
