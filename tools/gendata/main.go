package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const timeLayout = "2006/01/02 15:04:05"

type config struct {
	outDir   string
	prefix   string
	files    int
	rows     int
	sensors  int
	start    string
	interval time.Duration
	enc      string
	seed     int64
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	start, err := time.Parse("2006-01-02 15:04:05", cfg.start)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid --start:", err)
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	for i := 0; i < cfg.files; i++ {
		name := fmt.Sprintf("%s_%03d.csv", cfg.prefix, i+1)
		path := filepath.Join(cfg.outDir, name)
		fileStart := start.Add(time.Duration(i*cfg.rows) * cfg.interval)
		if err := writeFile(path, cfg, fileStart, rng); err != nil {
			fmt.Fprintln(os.Stderr, "write", name+":", err)
			os.Exit(2)
		}
		fmt.Printf("wrote %s (%d rows, %d sensors)\n", path, cfg.rows, cfg.sensors)
	}
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.outDir, "out", "data", "output directory")
	flag.StringVar(&cfg.prefix, "prefix", "Cond", "file name prefix, should match the ingest pattern")
	flag.IntVar(&cfg.files, "files", 1, "number of files to generate")
	flag.IntVar(&cfg.rows, "rows", 60, "data rows per file")
	flag.IntVar(&cfg.sensors, "sensors", 5, "sensor columns per file")
	flag.StringVar(&cfg.start, "start", "2024-01-01 00:00:00", "timestamp of the first row (YYYY-MM-DD HH:MM:SS)")
	flag.DurationVar(&cfg.interval, "interval", time.Second, "step between rows")
	flag.StringVar(&cfg.enc, "encoding", "shift-jis", "output encoding (shift-jis or utf-8)")
	flag.Int64Var(&cfg.seed, "seed", 1, "random seed")
	flag.Parse()

	if cfg.files <= 0 {
		return cfg, errors.New("--files must be > 0")
	}
	if cfg.rows <= 0 {
		return cfg, errors.New("--rows must be > 0")
	}
	if cfg.sensors <= 0 {
		return cfg, errors.New("--sensors must be > 0")
	}
	switch cfg.enc {
	case "shift-jis", "utf-8":
	default:
		return cfg, fmt.Errorf("unsupported encoding %q", cfg.enc)
	}
	return cfg, nil
}

func writeFile(path string, cfg config, start time.Time, rng *rand.Rand) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var writer *csv.Writer
	if cfg.enc == "shift-jis" {
		writer = csv.NewWriter(transform.NewWriter(file, japanese.ShiftJIS.NewEncoder()))
	} else {
		writer = csv.NewWriter(file)
	}
	defer writer.Flush()

	ids := make([]string, 0, cfg.sensors+1)
	names := make([]string, 0, cfg.sensors+1)
	units := make([]string, 0, cfg.sensors+1)
	ids = append(ids, "Time")
	names = append(names, "-")
	units = append(units, "-")
	for i := 0; i < cfg.sensors; i++ {
		ids = append(ids, fmt.Sprintf("S%03d", i+1))
		names = append(names, fmt.Sprintf("センサ%03d", i+1))
		units = append(units, pickUnit(i))
	}
	for _, record := range [][]string{ids, names, units} {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	for row := 0; row < cfg.rows; row++ {
		record := make([]string, 0, cfg.sensors+1)
		record = append(record, start.Add(time.Duration(row)*cfg.interval).Format(timeLayout))
		for i := 0; i < cfg.sensors; i++ {
			value := 20 + 10*rng.Float64()
			record = append(record, strconv.FormatFloat(value, 'f', 2, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func pickUnit(index int) string {
	units := []string{"℃", "kPa", "rpm", "A", "V"}
	return units[index%len(units)]
}
