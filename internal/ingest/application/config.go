package application

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines one ingestion run.
type Config struct {
	Folder         string `yaml:"folder"`
	Pattern        string `yaml:"pattern"`
	Encoding       string `yaml:"encoding"`
	PlantName      string `yaml:"plant_name"`
	MachineNo      string `yaml:"machine_no"`
	DataLabel      string `yaml:"data_label"`
	ForceReprocess bool   `yaml:"force_reprocess"`
}

// LoadConfig loads the run configuration from env, optionally overlaid by a
// YAML file named in INGEST_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		Folder:    getenvDefault("INGEST_FOLDER", "data"),
		Pattern:   getenvDefault("INGEST_PATTERN", "(Cond|User|test)"),
		Encoding:  getenvDefault("INGEST_ENCODING", "shift-jis"),
		PlantName: getenvDefault("PLANT_NAME", ""),
		MachineNo: getenvDefault("MACHINE_NO", ""),
		DataLabel: getenvDefault("DATA_LABEL", ""),
	}

	if path := os.Getenv("INGEST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the fields every run needs.
func (c Config) Validate() error {
	if c.Folder == "" {
		return errors.New("ingest: folder required")
	}
	if c.Pattern == "" {
		return errors.New("ingest: pattern required")
	}
	if c.PlantName == "" {
		return errors.New("ingest: plant name required")
	}
	if c.MachineNo == "" {
		return errors.New("ingest: machine number required")
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
