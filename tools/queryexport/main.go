package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	queryapp "sensor-ingest/internal/query/application"
	"sensor-ingest/internal/query/interfaces"
	reading "sensor-ingest/internal/readings/domain"
	readingpg "sensor-ingest/internal/readings/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL   string
	plant   string
	machine string
	from    string
	to      string
	sensors string
	format  string
	outPath string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	sel, err := buildSelection(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	service, err := queryapp.NewService(readingpg.NewReadingQuery(db))
	if err != nil {
		fmt.Fprintln(os.Stderr, "service:", err)
		os.Exit(2)
	}

	table, err := service.Pivot(context.Background(), sel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(2)
	}

	out := os.Stdout
	if cfg.outPath != "" {
		file, err := os.Create(cfg.outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create output:", err)
			os.Exit(2)
		}
		defer file.Close()
		out = file
	}

	switch cfg.format {
	case "csv":
		err = interfaces.WriteTableCSV(out, table)
	case "xlsx":
		var data []byte
		data, err = interfaces.BuildTableXLSX(table)
		if err == nil {
			_, err = out.Write(data)
		}
	case "pdf":
		var data []byte
		data, err = interfaces.BuildTablePDF(table)
		if err == nil {
			_, err = out.Write(data)
		}
	default:
		err = fmt.Errorf("unsupported format %q", cfg.format)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(2)
	}

	if cfg.outPath != "" {
		fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(table.Rows), cfg.outPath)
	}
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.plant, "plant", getenvDefault("PLANT_NAME", ""), "plant name")
	flag.StringVar(&cfg.machine, "machine", getenvDefault("MACHINE_NO", ""), "machine number")
	flag.StringVar(&cfg.from, "from", "", "range start, inclusive (YYYY-MM-DD HH:MM:SS or RFC3339)")
	flag.StringVar(&cfg.to, "to", "", "range end, exclusive")
	flag.StringVar(&cfg.sensors, "sensors", "", "comma-separated sensor names (empty selects all)")
	flag.StringVar(&cfg.format, "format", "csv", "output format: csv, xlsx or pdf")
	flag.StringVar(&cfg.outPath, "out", "", "output file (default stdout)")
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
	if cfg.from == "" || cfg.to == "" {
		return cfg, errors.New("missing --from or --to")
	}
	return cfg, nil
}

func buildSelection(cfg config) (reading.Selection, error) {
	from, err := parseTime(cfg.from)
	if err != nil {
		return reading.Selection{}, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseTime(cfg.to)
	if err != nil {
		return reading.Selection{}, fmt.Errorf("invalid --to: %w", err)
	}
	if !to.After(from) {
		return reading.Selection{}, errors.New("--to must be after --from")
	}

	var names []string
	for _, name := range strings.Split(cfg.sensors, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}

	return reading.Selection{
		PlantName:   cfg.plant,
		MachineNo:   cfg.machine,
		Start:       from,
		End:         to,
		SensorNames: names,
	}, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", value)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
