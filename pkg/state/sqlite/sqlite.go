// Package sqlite persists detection state in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ArionMiles/txdetect/pkg/api"
)

const schema = `
CREATE TABLE IF NOT EXISTS resolved_ids (
	kind     TEXT    NOT NULL CHECK (kind IN ('processed', 'dismissed')),
	position INTEGER NOT NULL,
	id       TEXT    NOT NULL,
	PRIMARY KEY (kind, position)
);

CREATE TABLE IF NOT EXISTS detection_settings (
	singleton                       INTEGER PRIMARY KEY CHECK (singleton = 1),
	notification_listener_enabled   INTEGER NOT NULL,
	sms_reader_enabled              INTEGER NOT NULL,
	auto_show_prompt                INTEGER NOT NULL,
	notification_permission_granted INTEGER NOT NULL,
	sms_permission_granted          INTEGER NOT NULL,
	updated_at                      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const (
	kindProcessed = "processed"
	kindDismissed = "dismissed"
)

// Store keeps the persisted state in two tables: the ordered id logs and a single
// settings row.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// New opens (creating if needed) the database at path and applies the schema.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("sqlite state store initialized", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// Load reads the persisted state. A database that was never saved to yields
// api.ErrNoState.
func (s *Store) Load(ctx context.Context) (api.PersistedState, error) {
	var state api.PersistedState

	err := s.db.QueryRowContext(ctx, `
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
	if errors.Is(err, sql.ErrNoRows) {
		return api.PersistedState{}, api.ErrNoState
	}
	if err != nil {
		return api.PersistedState{}, fmt.Errorf("querying settings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, id FROM resolved_ids ORDER BY kind, position`)
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
		case kindProcessed:
			state.ProcessedIDs = append(state.ProcessedIDs, id)
		case kindDismissed:
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resolved_ids`); err != nil {
		return fmt.Errorf("clearing resolved ids: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO resolved_ids (kind, position, id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for kind, ids := range map[string][]string{
		kindProcessed: state.ProcessedIDs,
		kindDismissed: state.DismissedIDs,
	} {
		for i, id := range ids {
			if _, err := stmt.ExecContext(ctx, kind, i, id); err != nil {
				return fmt.Errorf("inserting %s id %s: %w", kind, id, err)
			}
		}
	}

	settings := state.Settings
	_, err = tx.ExecContext(ctx, `
		INSERT INTO detection_settings (
			singleton, notification_listener_enabled, sms_reader_enabled, auto_show_prompt,
			notification_permission_granted, sms_permission_granted, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (singleton) DO UPDATE SET
			notification_listener_enabled = excluded.notification_listener_enabled,
			sms_reader_enabled = excluded.sms_reader_enabled,
			auto_show_prompt = excluded.auto_show_prompt,
			notification_permission_granted = excluded.notification_permission_granted,
			sms_permission_granted = excluded.sms_permission_granted,
			updated_at = CURRENT_TIMESTAMP
	`,
		settings.NotificationListenerEnabled,
		settings.SmsReaderEnabled,
		settings.AutoShowPrompt,
		settings.NotificationPermissionGranted,
		settings.SmsPermissionGranted,
	)
	if err != nil {
		return fmt.Errorf("upserting settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	s.logger.Info("closed sqlite state store", "path", s.path)
	return nil
}
