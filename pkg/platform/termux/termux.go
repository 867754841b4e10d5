// Package termux implements the platform capabilities on Android through the
// Termux:API command line tools.
package termux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/txdetect/pkg/api"
)

// Termux:API binaries used by this package.
const (
	SmsListCommand          = "termux-sms-list"
	NotificationListCommand = "termux-notification-list"
	ActivityManagerCommand  = "am"

	notificationListenerSettings = "android.settings.ACTION_NOTIFICATION_LISTENER_SETTINGS"
)

// Default configuration values.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultAttempts     = 3
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultSmsLimit     = 50
)

// ErrPermissionDenied is returned when Termux:API reports a missing Android permission.
var ErrPermissionDenied = errors.New("termux: permission denied")

// Runner executes a command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Config holds configuration for the Termux platform.
type Config struct {
	// Runner executes Termux:API commands. Defaults to ExecRunner.
	Runner Runner
	// PollInterval is how often the notification list is polled.
	// Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Attempts is the number of tries for a failing command. Defaults to DefaultAttempts.
	Attempts uint
	// RetryDelay is the base delay between tries. Defaults to DefaultRetryDelay.
	RetryDelay time.Duration
	// Location is used to interpret the local timestamps Termux:API prints.
	// Defaults to time.Local.
	Location *time.Location
}

// Termux talks to Android through Termux:API.
type Termux struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Termux platform.
func New(cfg Config, logger *slog.Logger) *Termux {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Termux{cfg: cfg, logger: logger}
}

// Name implements platform.Platform.
func (t *Termux) Name() string { return "termux" }

// run executes a command, retrying transient failures. Permission errors are not
// retried.
func (t *Termux) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out []byte
	err := retry.Do(
		func() error {
			var err error
			out, err = t.cfg.Runner.Run(ctx, name, args...)
			if err != nil {
				if mentionsPermission(err.Error()) {
					return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
				}
				return err
			}
			return checkOutput(out)
		},
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, ErrPermissionDenied) || ctx.Err() != nil {
				return false
			}
			t.logger.Warn("termux command failed, will retry", "command", name, "error", err)
			return true
		}),
		retry.Attempts(t.cfg.Attempts),
		retry.Delay(t.cfg.RetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkOutput turns the {"error": "..."} object Termux:API prints on failure into an
// error.
func checkOutput(out []byte) error {
	trimmed := strings.TrimSpace(string(out))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &apiErr); err != nil || apiErr.Error == "" {
		return nil
	}
	if mentionsPermission(apiErr.Error) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, apiErr.Error)
	}
	return errors.New(apiErr.Error)
}

func mentionsPermission(s string) bool {
	return strings.Contains(strings.ToLower(s), "permission")
}

// probe runs a cheap command and maps ErrPermissionDenied to a negative grant.
func (t *Termux) probe(ctx context.Context, name string, args ...string) (bool, error) {
	_, err := t.run(ctx, name, args...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPermissionDenied):
		return false, nil
	default:
		return false, err
	}
}

// SmsPermission implements platform.SmsAccess.
func (t *Termux) SmsPermission(ctx context.Context) (bool, error) {
	return t.probe(ctx, SmsListCommand, "-l", "1", "-t", "inbox")
}

// RequestSmsPermission implements platform.SmsAccess. Termux:API asks for the runtime
// permission itself the first time the inbox is read, so requesting is a read.
func (t *Termux) RequestSmsPermission(ctx context.Context) (bool, error) {
	return t.SmsPermission(ctx)
}

// ListSms implements platform.SmsAccess.
func (t *Termux) ListSms(ctx context.Context, since time.Time, limit int) ([]api.RawSms, error) {
	if limit <= 0 {
		limit = DefaultSmsLimit
	}

	out, err := t.run(ctx, SmsListCommand, "-l", strconv.Itoa(limit), "-t", "inbox")
	if err != nil {
		return nil, fmt.Errorf("listing sms: %w", err)
	}

	var messages []smsMessage
	if err := json.Unmarshal(out, &messages); err != nil {
		return nil, fmt.Errorf("decoding sms list: %w", err)
	}

	result := make([]api.RawSms, 0, len(messages))
	for _, m := range messages {
		received, err := m.Received.resolve(t.cfg.Location)
		if err != nil {
			t.logger.Warn("skipping sms with unreadable timestamp", "id", m.ID, "error", err)
			continue
		}
		if !received.After(since) {
			continue
		}
		sms := api.RawSms{
			SenderAddress: m.Number,
			Body:          m.Body,
			TimestampMs:   received.UnixMilli(),
			IsRead:        m.Read,
		}
		if m.ID != 0 {
			sms.ID = strconv.FormatInt(m.ID, 10)
		}
		result = append(result, sms)
	}

	slices.SortStableFunc(result, func(a, b api.RawSms) int {
		switch {
		case a.TimestampMs > b.TimestampMs:
			return -1
		case a.TimestampMs < b.TimestampMs:
			return 1
		}
		return 0
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// NotificationPermission implements platform.NotificationAccess.
func (t *Termux) NotificationPermission(ctx context.Context) (bool, error) {
	return t.probe(ctx, NotificationListCommand)
}

// OpenNotificationSettings implements platform.NotificationAccess.
func (t *Termux) OpenNotificationSettings(ctx context.Context) error {
	if _, err := t.run(ctx, ActivityManagerCommand, "start", "-a", notificationListenerSettings); err != nil {
		return fmt.Errorf("opening notification listener settings: %w", err)
	}
	return nil
}

// Notifications implements platform.NotificationAccess. Termux:API only exposes the
// current notification shade, so it is polled and entries not seen on the previous
// poll are delivered. Whatever is already showing when polling starts is not
// delivered.
func (t *Termux) Notifications(ctx context.Context) (<-chan api.RawNotification, error) {
	initial, err := t.listNotifications(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(initial))
	for _, n := range initial {
		seen[n.identity()] = struct{}{}
	}

	out := make(chan api.RawNotification)
	go func() {
		defer close(out)

		ticker := time.NewTicker(t.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := t.listNotifications(ctx)
			if err != nil {
				if ctx.Err() == nil {
					t.logger.Warn("polling notifications failed", "error", err)
				}
				continue
			}

			next := make(map[string]struct{}, len(current))
			for _, n := range current {
				id := n.identity()
				next[id] = struct{}{}
				if _, ok := seen[id]; ok {
					continue
				}
				raw, err := n.raw(t.cfg.Location)
				if err != nil {
					t.logger.Warn("skipping notification with unreadable timestamp", "key", n.Key, "error", err)
					continue
				}
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
			seen = next
		}
	}()

	return out, nil
}

func (t *Termux) listNotifications(ctx context.Context) ([]notification, error) {
	out, err := t.run(ctx, NotificationListCommand)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	var list []notification
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("decoding notification list: %w", err)
	}
	return list, nil
}
