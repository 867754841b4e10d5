// Package json persists detection state as a single JSON document on disk.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ArionMiles/txdetect/pkg/api"
)

// Store reads and writes the persisted state file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a store backed by the file at path. The parent directory is created if
// needed; the file itself is only written on the first Save.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New("state file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	logger.Info("json state store initialized", "file", path)
	return &Store{path: path, logger: logger}, nil
}

// Load reads the state file. A missing or empty file yields api.ErrNoState.
func (s *Store) Load(_ context.Context) (api.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return api.PersistedState{}, api.ErrNoState
	}
	if err != nil {
		return api.PersistedState{}, fmt.Errorf("reading state file: %w", err)
	}
	if len(data) == 0 {
		return api.PersistedState{}, api.ErrNoState
	}

	var state api.PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return api.PersistedState{}, fmt.Errorf("decoding state file: %w", err)
	}
	return state, nil
}

// Save replaces the state file. The new content is written to a sibling temp file and
// renamed into place so a crash never leaves a truncated document.
func (s *Store) Save(_ context.Context, state api.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}

	s.logger.Debug("saved detection state",
		"processed", len(state.ProcessedIDs),
		"dismissed", len(state.DismissedIDs),
	)
	return nil
}

// Close is a no-op; every Save is complete when it returns.
func (s *Store) Close() error { return nil }
