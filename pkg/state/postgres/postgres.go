// Package postgres persists detection state in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/txdetect/pkg/api"
)

//go:embed 001_create_detection_state.sql
var migrationSQL string

// Config holds the PostgreSQL connection settings.
type Config struct {
	// URL is a full connection string. When set, the individual fields are ignored.
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

func (c Config) connString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Store keeps the persisted state in the resolved_ids and detection_settings tables.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool with cfg's defaults applied and checks it with a ping.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)
	return pool, nil
}

// New connects to PostgreSQL and runs the migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	s.logger.Info("running database migrations")

	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	s.logger.Info("migrations completed successfully")
	return nil
}

// Load reads the persisted state. A database that was never saved to yields
// api.ErrNoState.
func (s *Store) Load(ctx context.Context) (api.PersistedState, error) {
	var state api.PersistedState

	err := s.pool.QueryRow(ctx, `
		SELECT notification_listener_enabled, sms_reader_enabled, auto_show_prompt,
		       notification_permission_granted, sms_permission_granted
		FROM detection_settings WHERE singleton = 1
	`).Scan(
		&state.Settings.NotificationListenerEnabled,
		&state.Settings.SmsReaderEnabled,
		&state.Settings.AutoShowPrompt,
		&state.Settings.NotificationPermissionGranted,
		&state.Settings.SmsPermissionGranted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.PersistedState{}, api.ErrNoState
	}
	if err != nil {
		return api.PersistedState{}, fmt.Errorf("querying settings: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT kind, id FROM resolved_ids ORDER BY kind, position`)
	if err != nil {
		return api.PersistedState{}, fmt.Errorf("querying resolved ids: %w", err)
	}
	defer rows.Close()

	state.ProcessedIDs = []string{}
	state.DismissedIDs = []string{}
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return api.PersistedState{}, fmt.Errorf("scanning resolved id: %w", err)
		}
		switch kind {
		case "processed":
			state.ProcessedIDs = append(state.ProcessedIDs, id)
		case "dismissed":
			state.DismissedIDs = append(state.DismissedIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		return api.PersistedState{}, fmt.Errorf("iterating resolved ids: %w", err)
	}

	return state, nil
}

// Save replaces the persisted state in one transaction.
func (s *Store) Save(ctx context.Context, state api.PersistedState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM resolved_ids`)
	for i, id := range state.ProcessedIDs {
		batch.Queue(`INSERT INTO resolved_ids (kind, position, id) VALUES ('processed', $1, $2)`, i, id)
	}
	for i, id := range state.DismissedIDs {
		batch.Queue(`INSERT INTO resolved_ids (kind, position, id) VALUES ('dismissed', $1, $2)`, i, id)
	}

	settings := state.Settings
	batch.Queue(`
		INSERT INTO detection_settings (
			singleton, notification_listener_enabled, sms_reader_enabled, auto_show_prompt,
			notification_permission_granted, sms_permission_granted
		) VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton) DO UPDATE SET
			notification_listener_enabled = EXCLUDED.notification_listener_enabled,
			sms_reader_enabled = EXCLUDED.sms_reader_enabled,
			auto_show_prompt = EXCLUDED.auto_show_prompt,
			notification_permission_granted = EXCLUDED.notification_permission_granted,
			sms_permission_granted = EXCLUDED.sms_permission_granted,
			updated_at = NOW()
	`,
		settings.NotificationListenerEnabled,
		settings.SmsReaderEnabled,
		settings.AutoShowPrompt,
		settings.NotificationPermissionGranted,
		settings.SmsPermissionGranted,
	)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("executing statement %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}
