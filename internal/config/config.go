// Package config defines the JSON-serializable configuration for the loader.
// It is intentionally small and dependency-free: decoding is performed by
// the standard library and the file mirrors what operators keep under
// configs/*.json.
//
// Credentials never live here or in source. The DSN in a config file may be
// a placeholder; the DATABASE_URL environment variable overrides it at load
// time so secrets stay in the environment or a secret store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level loader configuration.
type Config struct {
	// Job names the run for metrics labeling.
	Job string `json:"job"`

	// Storage selects and configures the store backend.
	Storage Storage `json:"storage"`

	// Parser configures snapshot parsing.
	Parser Parser `json:"parser"`

	// FailLog is the path of the append-only failure log.
	FailLog string `json:"fail_log"`

	// BatchSize caps the number of rows per write transaction.
	BatchSize int `json:"batch_size"`
}

// Storage selects the store backend.
type Storage struct {
	// Kind is a registered backend: "postgres", "sqlite" or "mssql".
	Kind string `json:"kind"`

	// DSN is the backend connection string. Overridden by DATABASE_URL.
	DSN string `json:"dsn"`
}

// Parser holds snapshot parsing options.
type Parser struct {
	// Comma is the field delimiter; "," when empty.
	Comma string `json:"comma"`

	// Latin1 decodes snapshots from ISO 8859-1, the encoding the upstream
	// files ship in.
	Latin1 bool `json:"latin1"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		Job:       "scorecard_load",
		Storage:   Storage{Kind: "postgres"},
		Parser:    Parser{Latin1: true},
		FailLog:   "error_log.txt",
		BatchSize: 500,
	}
}

// Load reads the JSON config at path (or the defaults when path is empty),
// applies defaults for unset fields, and applies the DATABASE_URL override.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if cfg.Job == "" {
		cfg.Job = "scorecard_load"
	}
	if cfg.FailLog == "" {
		cfg.FailLog = "error_log.txt"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	return cfg, nil
}
