// Package notification implements the UPI notification listener.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/parser"
	"github.com/ArionMiles/txdetect/pkg/platform"
)

// State is the listener lifecycle state.
type State int

// Listener states.
const (
	StateUninitialized State = iota
	StatePermissionUnknown
	StatePermissionDenied
	StatePermissionGranted
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePermissionUnknown:
		return "permission_unknown"
	case StatePermissionDenied:
		return "permission_denied"
	case StatePermissionGranted:
		return "permission_granted"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Callback receives every notification that parsed as a transaction.
type Callback func(api.DetectedTransaction)

// Listener turns posted UPI app notifications into detected transactions.
type Listener struct {
	access platform.NotificationAccess
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	callback Callback
	// gen is bumped on every Start and Stop; a delivery carrying an older generation
	// is dropped.
	gen    uint64
	cancel context.CancelFunc
}

// New creates a listener in StateUninitialized.
func New(access platform.NotificationAccess, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		access: access,
		logger: logger,
	}
}

// Init moves an uninitialized listener to StatePermissionUnknown.
func (l *Listener) Init() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateUninitialized {
		l.state = StatePermissionUnknown
	}
}

// CheckPermission queries the platform and records the result. A running listener
// stays in StateListening.
func (l *Listener) CheckPermission(ctx context.Context) bool {
	granted, err := l.access.NotificationPermission(ctx)
	if err != nil {
		l.logger.Warn("checking notification permission failed", "error", err)
		granted = false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.state == StateListening:
	case granted:
		l.state = StatePermissionGranted
	default:
		l.state = StatePermissionDenied
	}
	return granted
}

// RequestPermission opens the platform's listener settings and re-checks. The user
// normally returns later, so a negative result is expected on the first call.
func (l *Listener) RequestPermission(ctx context.Context) bool {
	if err := l.access.OpenNotificationSettings(ctx); err != nil {
		l.logger.Warn("opening notification settings failed", "error", err)
	}
	return l.CheckPermission(ctx)
}

// SetCallback replaces the delivery callback.
func (l *Listener) SetCallback(cb Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callback = cb
}

// Start begins delivering notifications. It returns false unless permission has been
// granted. The listener outlives ctx; only its values are kept.
func (l *Listener) Start(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateListening:
		return true
	case StatePermissionGranted, StateStopped:
	default:
		return false
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := l.access.Notifications(streamCtx)
	if err != nil {
		cancel()
		l.logger.Warn("starting notification stream failed", "error", err)
		return false
	}

	l.gen++
	l.cancel = cancel
	l.state = StateListening
	go l.consume(stream, l.gen)

	l.logger.Info("notification listener started")
	return true
}

// Stop ends delivery. Once Stop returns no callback is invoked until the next Start.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateListening {
		return
	}
	l.gen++
	l.cancel()
	l.cancel = nil
	l.state = StateStopped

	l.logger.Info("notification listener stopped")
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsListening reports whether the listener is delivering.
func (l *Listener) IsListening() bool {
	return l.State() == StateListening
}

// Handle runs a notification through the pipeline and delivers it if the listener is
// running. It reports whether a transaction was delivered.
func (l *Listener) Handle(n api.RawNotification) bool {
	l.mu.Lock()
	gen := l.gen
	listening := l.state == StateListening
	l.mu.Unlock()

	if !listening {
		return false
	}
	return l.deliver(n, gen)
}

func (l *Listener) consume(stream <-chan api.RawNotification, gen uint64) {
	for n := range stream {
		l.deliver(n, gen)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen && l.state == StateListening {
		l.logger.Warn("notification stream ended unexpectedly")
		l.cancel()
		l.cancel = nil
		l.state = StateStopped
	}
}

func (l *Listener) deliver(n api.RawNotification, gen uint64) bool {
	tx, ok := Process(n)
	if !ok {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen || l.state != StateListening || l.callback == nil {
		return false
	}

	l.logger.Debug("detected upi transaction",
		"id", tx.ID,
		"app", tx.SourceApp,
		"amount", tx.Amount,
		"kind", tx.Kind,
	)
	l.callback(tx)
	return true
}

// Process runs app recognition, classification and extraction on one notification.
func Process(n api.RawNotification) (api.DetectedTransaction, bool) {
	if _, ok := parser.IsUpiApp(n.AppPackage); !ok {
		return api.DetectedTransaction{}, false
	}
	text := parser.NotificationText(n)
	if !parser.IsTransactionNotification(text) {
		return api.DetectedTransaction{}, false
	}
	parsed, ok := parser.ParseUpiNotification(n)
	if !ok {
		return api.DetectedTransaction{}, false
	}
	return api.NewNotificationTransaction(n, text, parsed), true
}
