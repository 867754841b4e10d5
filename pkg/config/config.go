// Package config loads txdetect's configuration from built-in defaults, an optional
// YAML or JSON file and TXDETECT_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ArionMiles/txdetect/pkg/logging"
)

// EnvPrefix is stripped from environment variable names. A double underscore separates
// nesting levels: TXDETECT_STATE__BACKEND sets state.backend.
const EnvPrefix = "TXDETECT_"

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "data/client_secret.json"

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Platform  PlatformConfig  `koanf:"platform"`
	Detection DetectionConfig `koanf:"detection"`
	State     StateConfig     `koanf:"state"`
	Export    ExportConfig    `koanf:"export"`
	HTTP      HTTPConfig      `koanf:"http"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// PlatformConfig selects and tunes the OS capability implementation.
type PlatformConfig struct {
	// Mode is auto, termux or disabled.
	Mode           string        `koanf:"mode"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	ExecAttempts   uint          `koanf:"exec_attempts"`
	ExecRetryDelay time.Duration `koanf:"exec_retry_delay"`
	// Timezone interprets the local timestamps the device prints. Empty means the
	// host's local zone.
	Timezone string `koanf:"timezone"`
}

// DetectionConfig tunes the SMS reader and the store's persistence retries.
type DetectionConfig struct {
	ScanLookback   time.Duration `koanf:"scan_lookback"`
	ScanMaxCount   int           `koanf:"scan_max_count"`
	WatchInterval  time.Duration `koanf:"watch_interval"`
	WatchLookback  time.Duration `koanf:"watch_lookback"`
	WatchMaxCount  int           `koanf:"watch_max_count"`
	SaveAttempts   uint          `koanf:"save_attempts"`
	SaveRetryDelay time.Duration `koanf:"save_retry_delay"`
}

// StateConfig selects where resolved ids and settings are persisted.
type StateConfig struct {
	// Backend is json, sqlite, postgres or memory.
	Backend  string         `koanf:"backend"`
	Path     string         `koanf:"path"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

// ExportConfig selects the writer that receives confirmed transactions.
type ExportConfig struct {
	// Writer is none, csv, json, sheets or postgres.
	Writer        string         `koanf:"writer"`
	FilePath      string         `koanf:"file_path"`
	BatchSize     int            `koanf:"batch_size"`
	FlushInterval time.Duration  `koanf:"flush_interval"`
	Sheets        SheetsConfig   `koanf:"sheets"`
	Postgres      PostgresConfig `koanf:"postgres"`
}

// SheetsConfig configures the Google Sheets writer.
type SheetsConfig struct {
	ClientSecretFile string `koanf:"client_secret_file"`
	SheetID          string `koanf:"sheet_id"`
	SheetTitle       string `koanf:"sheet_title"`
	SheetName        string `koanf:"sheet_name"`
}

// HTTPConfig configures the control surface. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in configuration as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"log.level":                        "info",
		"log.json":                         false,
		"platform.mode":                    "auto",
		"platform.poll_interval":           "2s",
		"platform.exec_attempts":           3,
		"platform.exec_retry_delay":        "500ms",
		"platform.timezone":                "",
		"detection.scan_lookback":          "48h",
		"detection.scan_max_count":         100,
		"detection.watch_interval":         "30s",
		"detection.watch_lookback":         "1h",
		"detection.watch_max_count":        20,
		"detection.save_attempts":          3,
		"detection.save_retry_delay":       "100ms",
		"state.backend":                    "json",
		"state.path":                       "data/state.json",
		"state.postgres.port":              5432,
		"state.postgres.sslmode":           "disable",
		"export.writer":                    "none",
		"export.file_path":                 "data/confirmed.csv",
		"export.batch_size":                10,
		"export.flush_interval":            "30s",
		"export.sheets.client_secret_file": ClientSecretFile,
		"export.postgres.port":             5432,
		"export.postgres.sslmode":          "disable",
		"export.sheets.sheet_title":        "txdetect",
		"export.sheets.sheet_name":         "Transactions",
		"http.addr":                        "127.0.0.1:8787",
	}
}

// Load builds the configuration. path may be empty; otherwise its extension selects
// the YAML or JSON parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = kjson.Parser()
		default:
			return nil, fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TXDETECT_STATE__POSTGRES__HOST to state.postgres.host.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate rejects unknown backend, writer, mode and log level names.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	switch c.Platform.Mode {
	case "auto", "termux", "disabled":
	default:
		return fmt.Errorf("platform.mode: unknown mode %q", c.Platform.Mode)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("platform.timezone: %w", err)
	}

	switch c.State.Backend {
	case "json", "sqlite":
		if c.State.Path == "" {
			return fmt.Errorf("state.path is required for the %s backend", c.State.Backend)
		}
	case "postgres":
		if c.State.Postgres.URL == "" && c.State.Postgres.Host == "" {
			return fmt.Errorf("state.postgres.url or state.postgres.host is required")
		}
	case "memory":
	default:
		return fmt.Errorf("state.backend: unknown backend %q", c.State.Backend)
	}

	switch c.Export.Writer {
	case "none", "sheets":
	case "postgres":
		if c.Export.Postgres.URL == "" && c.Export.Postgres.Host == "" {
			return fmt.Errorf("export.postgres.url or export.postgres.host is required")
		}
	case "csv", "json":
		if c.Export.FilePath == "" {
			return fmt.Errorf("export.file_path is required for the %s writer", c.Export.Writer)
		}
	default:
		return fmt.Errorf("export.writer: unknown writer %q", c.Export.Writer)
	}

	return nil
}

// Location resolves Platform.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Platform.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Platform.Timezone)
}
