package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	ingestapp "sensor-ingest/internal/ingest/application"
	ingestpg "sensor-ingest/internal/ingest/infrastructure/postgres"
	"sensor-ingest/internal/ingest/source"
	ledgerpg "sensor-ingest/internal/ledger/infrastructure/postgres"
	readingpg "sensor-ingest/internal/readings/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL   string
	folder  string
	pattern string
	enc     string
	plant   string
	machine string
	label   string
	force   bool
	asJSON  bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	if err := ingestpg.EnsureSchema(ctx, db); err != nil {
		fmt.Fprintln(os.Stderr, "schema:", err)
		os.Exit(2)
	}

	runCfg := ingestapp.Config{
		Folder:         cfg.folder,
		Pattern:        cfg.pattern,
		Encoding:       cfg.enc,
		PlantName:      cfg.plant,
		MachineNo:      cfg.machine,
		DataLabel:      cfg.label,
		ForceReprocess: cfg.force,
	}

	finder, err := source.NewFinder(runCfg.Pattern, runCfg.Encoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, "source:", err)
		os.Exit(2)
	}
	store, err := ingestpg.NewStore(db, readingpg.NewReadingRepository(db), ledgerpg.NewLedgerStore(db))
	if err != nil {
		fmt.Fprintln(os.Stderr, "store:", err)
		os.Exit(2)
	}
	service, err := ingestapp.NewService(store, finder, runCfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "service:", err)
		os.Exit(2)
	}

	stats, results, err := service.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(2)
	}

	if cfg.asJSON {
		out := struct {
			Stats   ingestapp.BatchStats   `json:"stats"`
			Results []ingestapp.FileResult `json:"results"`
		}{Stats: stats, Results: results}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(2)
		}
	} else {
		for _, result := range results {
			line := fmt.Sprintf("%-9s %s", result.Status, result.Path)
			if result.SourceZip != "" {
				line += " (in " + result.SourceZip + ")"
			}
			if result.Error != "" {
				line += ": " + result.Error
			}
			fmt.Println(line)
		}
		fmt.Printf("found=%d processed=%d skipped_path=%d skipped_hash=%d failed=%d records=%d rows_skipped=%d\n",
			stats.FilesFound, stats.Processed, stats.SkippedByPath, stats.SkippedByHash, stats.Failed, stats.RecordsWritten, stats.RowsSkipped)
	}

	if stats.Failed > 0 {
		os.Exit(1)
	}
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.folder, "folder", getenvDefault("INGEST_FOLDER", "data"), "folder to scan for CSV files and zip archives")
	flag.StringVar(&cfg.pattern, "pattern", getenvDefault("INGEST_PATTERN", "(Cond|User|test)"), "file name pattern")
	flag.StringVar(&cfg.enc, "encoding", getenvDefault("INGEST_ENCODING", "shift-jis"), "source file encoding (shift-jis or utf-8)")
	flag.StringVar(&cfg.plant, "plant", getenvDefault("PLANT_NAME", ""), "plant name")
	flag.StringVar(&cfg.machine, "machine", getenvDefault("MACHINE_NO", ""), "machine number")
	flag.StringVar(&cfg.label, "label", getenvDefault("DATA_LABEL", ""), "data label attached to every reading (optional)")
	flag.BoolVar(&cfg.force, "force", false, "reprocess files already recorded by path")
	flag.BoolVar(&cfg.asJSON, "json", false, "print the run report as JSON")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.plant == "" {
		return cfg, errors.New("missing --plant or PLANT_NAME")
	}
	if cfg.machine == "" {
		return cfg, errors.New("missing --machine or MACHINE_NO")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
