// Package detection implements the detection store: the dedup gate every detected
// transaction passes through, the pending confirmation queue, the resolved id logs and
// the lifecycle of the two source adapters.
//
// Locks are always taken in the order lifecycle, persist, data. The data lock is never
// held while calling into an adapter, and adapters may call AddDetectedTransaction
// while holding their own lock.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/reader/notification"
	"github.com/ArionMiles/txdetect/pkg/reader/sms"
)

// Retention limits and the fuzzy duplicate window.
const (
	MaxPending      = 50
	MaxResolved     = 200
	DuplicateWindow = 2 * time.Minute
)

const saveTimeout = 10 * time.Second

// NotificationListener is the notification source adapter.
type NotificationListener interface {
	Init()
	SetCallback(cb notification.Callback)
	CheckPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) bool
	Start(ctx context.Context) bool
	Stop()
	IsListening() bool
}

// SmsReader is the SMS source adapter.
type SmsReader interface {
	CheckPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) bool
	Scan(ctx context.Context, opts sms.ScanOptions) []api.DetectedTransaction
	StartWatching(ctx context.Context, cb sms.Callback) bool
	StopWatching()
	IsWatching() bool
}

// Config holds configuration for the store.
type Config struct {
	// State persists resolved ids and settings. Nil keeps everything in memory.
	State api.StateStore
	// ScanOptions bounds ScanRecentSms.
	ScanOptions sms.ScanOptions
	// OnProcessed, when set, receives every pending transaction the user confirms.
	// It is called without any store lock held.
	OnProcessed func(api.DetectedTransaction)
	// SaveAttempts is the number of tries for a failing save. Defaults to 3.
	SaveAttempts uint
	// SaveRetryDelay is the base delay between save tries. Defaults to 100ms.
	SaveRetryDelay time.Duration
}

// Store aggregates detected transactions from both sources.
type Store struct {
	listener NotificationListener
	reader   SmsReader
	cfg      Config
	logger   *slog.Logger

	lifecycleMu sync.Mutex
	persistMu   sync.Mutex

	mu            sync.Mutex
	pending       []api.DetectedTransaction
	processed     idLog
	dismissed     idLog
	settings      api.DetectionSettings
	isListening   bool
	isSmsWatching bool
	subscribers   map[int]chan api.Snapshot
	nextSub       int
}

// New creates a store with default settings and wires itself as the callback of both
// adapters.
func New(listener NotificationListener, reader SmsReader, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SaveAttempts == 0 {
		cfg.SaveAttempts = 3
	}
	if cfg.SaveRetryDelay <= 0 {
		cfg.SaveRetryDelay = 100 * time.Millisecond
	}

	s := &Store{
		listener:    listener,
		reader:      reader,
		cfg:         cfg,
		logger:      logger,
		processed:   newIDLog(MaxResolved),
		dismissed:   newIDLog(MaxResolved),
		settings:    api.DefaultSettings(),
		subscribers: make(map[int]chan api.Snapshot),
	}

	listener.Init()
	listener.SetCallback(s.onDetected)
	return s
}

func (s *Store) onDetected(t api.DetectedTransaction) {
	s.AddDetectedTransaction(t)
}

// Load restores resolved ids and settings from the state store. A store that has never
// saved leaves the defaults in place.
func (s *Store) Load(ctx context.Context) error {
	if s.cfg.State == nil {
		return nil
	}

	state, err := s.cfg.State.Load(ctx)
	if errors.Is(err, api.ErrNoState) {
		s.logger.Info("no persisted detection state, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading detection state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed = newIDLog(MaxResolved, state.ProcessedIDs...)
	s.dismissed = newIDLog(MaxResolved, state.DismissedIDs...)
	s.settings = state.Settings
	s.publishLocked()

	s.logger.Info("loaded detection state",
		"processed", s.processed.len(),
		"dismissed", s.dismissed.len(),
	)
	return nil
}

// AddDetectedTransaction runs t through the dedup gate and queues it. It returns false
// when t was already resolved or duplicates a pending transaction.
func (s *Store) AddDetectedTransaction(t api.DetectedTransaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processed.contains(t.ID) || s.dismissed.contains(t.ID) {
		s.logger.Debug("dropping resolved transaction", "id", t.ID)
		return false
	}
	for _, p := range s.pending {
		if reason, dup := duplicate(p, t); dup {
			s.logger.Debug("dropping duplicate transaction", "id", t.ID, "pending_id", p.ID, "reason", reason)
			return false
		}
	}

	t.IsProcessed, t.IsDismissed = false, false
	s.pending = append([]api.DetectedTransaction{t}, s.pending...)
	if len(s.pending) > MaxPending {
		s.pending = s.pending[:MaxPending]
	}
	s.publishLocked()

	s.logger.Info("queued detected transaction",
		"id", t.ID,
		"source", t.Source,
		"amount", t.Amount,
		"merchant", t.Merchant,
	)
	return true
}

// duplicate applies gate steps two and three.
func duplicate(pending, t api.DetectedTransaction) (string, bool) {
	if pending.ID == t.ID {
		return "id", true
	}
	if t.ReferenceID != "" && pending.ReferenceID == t.ReferenceID {
		return "reference", true
	}
	if pending.Amount.Equal(t.Amount) {
		delta := pending.Timestamp.Sub(t.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta < DuplicateWindow {
			return "amount_window", true
		}
	}
	return "", false
}

// MarkAsProcessed moves id from pending to the processed log. It returns false when id
// was already resolved.
func (s *Store) MarkAsProcessed(ctx context.Context, id string) bool {
	return s.resolve(ctx, id, true)
}

// DismissTransaction moves id from pending to the dismissed log. It returns false when
// id was already resolved.
func (s *Store) DismissTransaction(ctx context.Context, id string) bool {
	return s.resolve(ctx, id, false)
}

func (s *Store) resolve(ctx context.Context, id string, processed bool) bool {
	if id == "" {
		return false
	}

	var (
		tx      api.DetectedTransaction
		removed bool
	)

	changed := s.mutate(ctx, func() bool {
		if s.processed.contains(id) || s.dismissed.contains(id) {
			return false
		}
		tx, removed = s.removePendingLocked(id)
		if processed {
			s.processed.add(id)
		} else {
			s.dismissed.add(id)
		}
		return true
	})
	if !changed {
		return false
	}

	if processed && removed && s.cfg.OnProcessed != nil {
		tx.IsProcessed = true
		s.cfg.OnProcessed(tx)
	}
	s.logger.Info("resolved transaction", "id", id, "processed", processed, "was_pending", removed)
	return true
}

func (s *Store) removePendingLocked(id string) (api.DetectedTransaction, bool) {
	for i, p := range s.pending {
		if p.ID == id {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return p, true
		}
	}
	return api.DetectedTransaction{}, false
}

// ClearPending empties the confirmation queue without resolving anything and returns
// how many transactions were dropped.
func (s *Store) ClearPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending)
	if n > 0 {
		s.pending = nil
		s.publishLocked()
	}
	return n
}

// Pending returns the pending transaction with id.
func (s *Store) Pending(id string) (api.DetectedTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if p.ID == id {
			return p, true
		}
	}
	return api.DetectedTransaction{}, false
}

// Settings returns the current settings.
func (s *Store) Settings() api.DetectionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Snapshot returns a copy of the consumer-facing state.
func (s *Store) Snapshot() api.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() api.Snapshot {
	pending := make([]api.DetectedTransaction, len(s.pending))
	copy(pending, s.pending)
	return api.Snapshot{
		PendingTransactions: pending,
		Settings:            s.settings,
		IsListening:         s.isListening,
		IsSmsWatching:       s.isSmsWatching,
	}
}

// Subscribe returns a channel that receives the current snapshot and then one after
// every change. Slow subscribers only see the latest snapshot. cancel closes the
// channel.
func (s *Store) Subscribe() (<-chan api.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan api.Snapshot, 1)
	ch <- s.snapshotLocked()
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// mutate applies fn under the data lock and persists the durable record when fn
// reports a change. Saves happen in mutation order.
func (s *Store) mutate(ctx context.Context, fn func() bool) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	changed := fn()
	var state api.PersistedState
	if changed {
		state = s.persistedLocked()
		s.publishLocked()
	}
	s.mu.Unlock()

	if changed {
		s.save(ctx, state)
	}
	return changed
}

func (s *Store) persistedLocked() api.PersistedState {
	return api.PersistedState{
		ProcessedIDs: s.processed.ids(),
		DismissedIDs: s.dismissed.ids(),
		Settings:     s.settings,
	}
}

// save writes the durable record. Failures are logged; the in-memory state stays
// authoritative.
func (s *Store) save(ctx context.Context, state api.PersistedState) {
	if s.cfg.State == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	err := retry.Do(
		func() error {
			return s.cfg.State.Save(ctx, state)
		},
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			s.logger.Warn("saving detection state failed, will retry", "error", err)
			return true
		}),
		retry.Attempts(s.cfg.SaveAttempts),
		retry.Delay(s.cfg.SaveRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.logger.Error("saving detection state failed", "error", err)
	}
}
