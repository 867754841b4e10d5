package plugins

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/client"
	"github.com/ArionMiles/txdetect/pkg/config"
	jsonstate "github.com/ArionMiles/txdetect/pkg/state/json"
	pgstate "github.com/ArionMiles/txdetect/pkg/state/postgres"
	sqlitestate "github.com/ArionMiles/txdetect/pkg/state/sqlite"
	csvwriter "github.com/ArionMiles/txdetect/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/txdetect/pkg/writer/json"
	pgwriter "github.com/ArionMiles/txdetect/pkg/writer/postgres"
	sheetswriter "github.com/ArionMiles/txdetect/pkg/writer/sheets"
)

// JSONState keeps the persisted record in a JSON file.
type JSONState struct{}

func (p *JSONState) Name() string        { return "json" }
func (p *JSONState) Description() string { return "Persist resolved ids and settings to a JSON file" }

func (p *JSONState) NewStore(_ context.Context, cfg config.StateConfig, logger *slog.Logger) (api.StateStore, error) {
	return jsonstate.New(cfg.Path, logger)
}

// SQLiteState keeps the persisted record in a SQLite database.
type SQLiteState struct{}

func (p *SQLiteState) Name() string        { return "sqlite" }
func (p *SQLiteState) Description() string { return "Persist resolved ids and settings to SQLite" }

func (p *SQLiteState) NewStore(_ context.Context, cfg config.StateConfig, logger *slog.Logger) (api.StateStore, error) {
	return sqlitestate.New(cfg.Path, logger)
}

// PostgresState keeps the persisted record in PostgreSQL.
type PostgresState struct{}

func (p *PostgresState) Name() string        { return "postgres" }
func (p *PostgresState) Description() string { return "Persist resolved ids and settings to PostgreSQL" }

func (p *PostgresState) NewStore(ctx context.Context, cfg config.StateConfig, logger *slog.Logger) (api.StateStore, error) {
	return pgstate.New(ctx, pgConfig(cfg.Postgres), logger)
}

func pgConfig(pg config.PostgresConfig) pgstate.Config {
	return pgstate.Config{
		URL:      pg.URL,
		Host:     pg.Host,
		Port:     pg.Port,
		Database: pg.Database,
		User:     pg.User,
		Password: pg.Password,
		SSLMode:  pg.SSLMode,
	}
}

// MemoryState keeps the persisted record in process memory only.
type MemoryState struct{}

func (p *MemoryState) Name() string        { return "memory" }
func (p *MemoryState) Description() string { return "Keep resolved ids and settings in memory (lost on exit)" }

func (p *MemoryState) NewStore(context.Context, config.StateConfig, *slog.Logger) (api.StateStore, error) {
	return &memoryStore{}, nil
}

type memoryStore struct {
	mu    sync.Mutex
	state *api.PersistedState
}

func (m *memoryStore) Load(context.Context) (api.PersistedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return api.PersistedState{}, api.ErrNoState
	}
	return *m.state, nil
}

func (m *memoryStore) Save(_ context.Context, state api.PersistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
	return nil
}

func (m *memoryStore) Close() error { return nil }

// CSVWriter appends confirmed transactions to a CSV file.
type CSVWriter struct{}

func (p *CSVWriter) Name() string             { return "csv" }
func (p *CSVWriter) Description() string      { return "Append confirmed transactions to a CSV file" }
func (p *CSVWriter) RequiredScopes() []string { return nil }

func (p *CSVWriter) NewWriter(_ *http.Client, cfg config.ExportConfig, logger *slog.Logger) (api.Writer, error) {
	return csvwriter.New(csvwriter.Config{
		FilePath:      cfg.FilePath,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)
}

// JSONWriter keeps confirmed transactions in a JSON array file.
type JSONWriter struct{}

func (p *JSONWriter) Name() string             { return "json" }
func (p *JSONWriter) Description() string      { return "Write confirmed transactions to a JSON file" }
func (p *JSONWriter) RequiredScopes() []string { return nil }

func (p *JSONWriter) NewWriter(_ *http.Client, cfg config.ExportConfig, logger *slog.Logger) (api.Writer, error) {
	return jsonwriter.New(jsonwriter.Config{
		FilePath:      cfg.FilePath,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)
}

// SheetsWriter appends confirmed transactions to a Google Sheet.
type SheetsWriter struct{}

func (p *SheetsWriter) Name() string             { return "sheets" }
func (p *SheetsWriter) Description() string      { return "Append confirmed transactions to Google Sheets" }
func (p *SheetsWriter) RequiredScopes() []string { return []string{client.SheetsScope} }

func (p *SheetsWriter) NewWriter(httpClient *http.Client, cfg config.ExportConfig, logger *slog.Logger) (api.Writer, error) {
	if httpClient == nil {
		return nil, errors.New("sheets writer requires an authorized http client")
	}
	return sheetswriter.New(httpClient, sheetswriter.Config{
		SheetTitle:    cfg.Sheets.SheetTitle,
		SheetID:       cfg.Sheets.SheetID,
		SheetName:     cfg.Sheets.SheetName,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)
}

// PostgresWriter upserts confirmed transactions into PostgreSQL.
type PostgresWriter struct{}

func (p *PostgresWriter) Name() string             { return "postgres" }
func (p *PostgresWriter) Description() string      { return "Upsert confirmed transactions into PostgreSQL" }
func (p *PostgresWriter) RequiredScopes() []string { return nil }

func (p *PostgresWriter) NewWriter(_ *http.Client, cfg config.ExportConfig, logger *slog.Logger) (api.Writer, error) {
	return pgwriter.New(context.Background(), pgwriter.Config{
		Conn:          pgConfig(cfg.Postgres),
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger)
}
