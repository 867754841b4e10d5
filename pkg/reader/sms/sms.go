// Package sms implements the bank SMS reader: an on-demand inbox scan and a periodic
// watcher for newly arrived messages.
package sms

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/parser"
	"github.com/ArionMiles/txdetect/pkg/platform"
)

// Default configuration values.
const (
	DefaultScanLookback  = 48 * time.Hour
	DefaultScanMaxCount  = 100
	DefaultWatchInterval = 30 * time.Second
	DefaultWatchLookback = time.Hour
	DefaultWatchMaxCount = 20
)

// ScanOptions bounds an inbox scan.
type ScanOptions struct {
	// Lookback is how far back to read. Defaults to DefaultScanLookback.
	Lookback time.Duration
	// MaxCount caps the number of messages read. Defaults to DefaultScanMaxCount.
	MaxCount int
}

// Config holds configuration for the SMS reader.
type Config struct {
	// WatchInterval is the pause between watcher reads. Defaults to DefaultWatchInterval.
	WatchInterval time.Duration
	// WatchLookback is the inbox window read on every tick. Defaults to DefaultWatchLookback.
	WatchLookback time.Duration
	// WatchMaxCount caps the messages read on every tick. Defaults to DefaultWatchMaxCount.
	WatchMaxCount int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Callback receives every message that parsed as a transaction.
type Callback func(api.DetectedTransaction)

// Reader reads bank alerts from the SMS inbox.
type Reader struct {
	access platform.SmsAccess
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	granted   bool
	watching  bool
	gen       uint64
	callback  Callback
	lastCheck time.Time
	timer     *time.Timer
	cancel    context.CancelFunc
}

// New creates an SMS reader.
func New(access platform.SmsAccess, cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultWatchInterval
	}
	if cfg.WatchLookback <= 0 {
		cfg.WatchLookback = DefaultWatchLookback
	}
	if cfg.WatchMaxCount <= 0 {
		cfg.WatchMaxCount = DefaultWatchMaxCount
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Reader{
		access: access,
		cfg:    cfg,
		logger: logger,
	}
}

// CheckPermission queries the read permission and caches the result.
func (r *Reader) CheckPermission(ctx context.Context) bool {
	granted, err := r.access.SmsPermission(ctx)
	if err != nil {
		r.logger.Warn("checking sms permission failed", "error", err)
		granted = false
	}
	r.setGranted(granted)
	return granted
}

// RequestPermission asks the platform for the read permission.
func (r *Reader) RequestPermission(ctx context.Context) bool {
	granted, err := r.access.RequestSmsPermission(ctx)
	if err != nil {
		r.logger.Warn("requesting sms permission failed", "error", err)
		granted = false
	}
	r.setGranted(granted)
	return granted
}

func (r *Reader) setGranted(granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted = granted
}

// Scan reads the inbox window and returns the transactions found, newest first.
// Any failure yields an empty result.
func (r *Reader) Scan(ctx context.Context, opts ScanOptions) []api.DetectedTransaction {
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultScanLookback
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = DefaultScanMaxCount
	}

	messages, err := r.access.ListSms(ctx, r.cfg.Now().Add(-opts.Lookback), opts.MaxCount)
	if err != nil {
		r.logger.Warn("scanning sms inbox failed", "error", err)
		return nil
	}

	var found []api.DetectedTransaction
	for _, m := range messages {
		if tx, ok := Process(m); ok {
			found = append(found, tx)
		}
	}

	r.logger.Info("scanned sms inbox", "messages", len(messages), "transactions", len(found))
	return found
}

// StartWatching polls the inbox every WatchInterval and delivers transactions that
// arrived after the previous read. It returns false unless permission was granted.
// The watcher outlives ctx; only its values are kept.
func (r *Reader) StartWatching(ctx context.Context, cb Callback) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watching {
		r.callback = cb
		return true
	}
	if !r.granted {
		return false
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.gen++
	gen := r.gen
	r.watching = true
	r.callback = cb
	r.cancel = cancel
	r.lastCheck = r.cfg.Now()
	r.timer = time.AfterFunc(r.cfg.WatchInterval, func() { r.tick(watchCtx, gen) })

	r.logger.Info("sms watcher started", "interval", r.cfg.WatchInterval)
	return true
}

// StopWatching stops the watcher. Once it returns no callback is invoked.
func (r *Reader) StopWatching() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.watching {
		return
	}
	r.gen++
	r.watching = false
	r.timer.Stop()
	r.cancel()
	r.timer, r.cancel = nil, nil

	r.logger.Info("sms watcher stopped")
}

// IsWatching reports whether the watcher is running.
func (r *Reader) IsWatching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watching
}

// tick reads once and schedules the next read only after this one returns, so reads
// never overlap.
func (r *Reader) tick(ctx context.Context, gen uint64) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	since := r.lastCheck
	r.mu.Unlock()

	messages, err := r.access.ListSms(ctx, r.cfg.Now().Add(-r.cfg.WatchLookback), r.cfg.WatchMaxCount)
	now := r.cfg.Now()
	if err != nil {
		r.logger.Warn("sms watcher read failed", "error", err)
	} else {
		// Oldest first, so consumers that prepend end up newest first.
		for i := len(messages) - 1; i >= 0; i-- {
			m := messages[i]
			if m.TimestampMs <= since.UnixMilli() {
				continue
			}
			if tx, ok := Process(m); ok {
				r.deliver(tx, gen)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	if err == nil {
		r.lastCheck = now
	}
	r.timer = time.AfterFunc(r.cfg.WatchInterval, func() { r.tick(ctx, gen) })
}

func (r *Reader) deliver(tx api.DetectedTransaction, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen || r.callback == nil {
		return
	}

	r.logger.Debug("detected sms transaction",
		"id", tx.ID,
		"bank", tx.BankName,
		"amount", tx.Amount,
		"kind", tx.Kind,
	)
	r.callback(tx)
}

// Process runs sender recognition, classification and extraction on one message.
func Process(m api.RawSms) (api.DetectedTransaction, bool) {
	if _, ok := parser.IsBankSender(m.SenderAddress); !ok {
		return api.DetectedTransaction{}, false
	}
	if !parser.IsTransactionSms(m.Body) {
		return api.DetectedTransaction{}, false
	}
	parsed, ok := parser.ParseBankSms(m.SenderAddress, m.Body)
	if !ok {
		return api.DetectedTransaction{}, false
	}
	return api.NewSmsTransaction(m, parsed), true
}
