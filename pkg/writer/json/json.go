// Package json implements a Writer that keeps confirmed transactions in a JSON array file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/writer/buffered"
)

// Writer writes transactions to a JSON file with buffered batching.
type Writer struct {
	filePath     string
	transactions []*api.DetectedTransaction
	mu           sync.Mutex
	buffered     *buffered.Writer
	logger       *slog.Logger
}

// Config holds configuration for the JSON writer.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
	// BatchSize is the number of transactions to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
}

// New creates a JSON writer, loading any transactions already in the file.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{
		filePath:     cfg.FilePath,
		transactions: make([]*api.DetectedTransaction, 0),
		logger:       logger,
	}

	if err := w.loadExisting(); err != nil {
		logger.Warn("could not load existing transactions", "error", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "json_buffer"))

	logger.Info("json writer initialized", "file", cfg.FilePath, "existing_count", len(w.transactions))
	return w, nil
}

func (w *Writer) loadExisting() error {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, &w.transactions)
}

// Write consumes transactions from the input channel and writes them to JSON.
func (w *Writer) Write(ctx context.Context, in <-chan *api.DetectedTransaction) error {
	return w.buffered.Write(ctx, in)
}

// flushBatch appends a batch and rewrites the whole array.
func (w *Writer) flushBatch(transactions []*api.DetectedTransaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.transactions = append(w.transactions, transactions...)

	data, err := json.MarshalIndent(w.transactions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	w.logger.Debug("wrote transactions to json",
		"batch_count", len(transactions),
		"total_count", len(w.transactions),
	)
	return nil
}

// TransactionCount returns the total number of transactions written.
func (w *Writer) TransactionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.transactions)
}
