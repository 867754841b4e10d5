// Package postgres provides a PostgreSQL writer for confirmed transactions.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/txdetect/pkg/api"
	pgstate "github.com/ArionMiles/txdetect/pkg/state/postgres"
	"github.com/ArionMiles/txdetect/pkg/writer/buffered"
)

//go:embed 001_create_confirmed_transactions.sql
var migrationSQL string

const upsertSQL = `
	INSERT INTO confirmed_transactions (
		id, source, source_app, kind, amount, merchant, upi_id,
		account_number, bank_name, reference_id, raw_text, detected_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		source = EXCLUDED.source,
		source_app = EXCLUDED.source_app,
		kind = EXCLUDED.kind,
		amount = EXCLUDED.amount,
		merchant = EXCLUDED.merchant,
		upi_id = EXCLUDED.upi_id,
		account_number = EXCLUDED.account_number,
		bank_name = EXCLUDED.bank_name,
		reference_id = EXCLUDED.reference_id,
		raw_text = EXCLUDED.raw_text,
		detected_at = EXCLUDED.detected_at,
		updated_at = NOW()
`

// Config holds the PostgreSQL writer configuration.
type Config struct {
	Conn pgstate.Config

	// BatchSize is the number of transactions to buffer before writing.
	BatchSize int
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration
}

// Writer writes confirmed transactions to a PostgreSQL database.
type Writer struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	buffered *buffered.Writer
}

// New connects to PostgreSQL and runs the migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgstate.Connect(ctx, cfg.Conn, logger)
	if err != nil {
		return nil, err
	}

	w := &Writer{pool: pool, logger: logger}
	if err := w.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	w.buffered = buffered.New(w.writeBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "postgres_buffer"))
	return w, nil
}

func (w *Writer) runMigrations(ctx context.Context) error {
	w.logger.Info("running database migrations")

	if _, err := w.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	w.logger.Info("migrations completed successfully")
	return nil
}

// Write consumes transactions from the channel until it closes, then closes the pool.
func (w *Writer) Write(ctx context.Context, in <-chan *api.DetectedTransaction) error {
	defer w.Close()
	return w.buffered.Write(ctx, in)
}

// writeBatch upserts a batch in one database transaction. Exporting the same
// transaction twice leaves a single row.
func (w *Writer) writeBatch(transactions []*api.DetectedTransaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range transactions {
		batch.Queue(upsertSQL, args(t)...)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range transactions {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting transaction %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	w.logger.Info("wrote transaction batch", "count", len(transactions))
	return nil
}

// args orders t's columns for upsertSQL. Amounts go over the wire as text so NUMERIC
// keeps the exact decimal.
func args(t *api.DetectedTransaction) []any {
	return []any{
		t.ID,
		string(t.Source),
		t.SourceApp,
		string(t.Kind),
		t.Amount.StringFixed(2),
		t.Merchant,
		t.UpiID,
		t.AccountNumber,
		t.BankName,
		t.ReferenceID,
		t.RawText,
		t.Timestamp,
	}
}

// Close closes the database connection pool.
func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
		w.pool = nil
		w.logger.Info("closed PostgreSQL connection pool")
	}
}
