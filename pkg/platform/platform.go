// Package platform is the boundary between txdetect and the device it runs on.
//
// Everything that needs an OS capability (reading the SMS inbox, observing posted
// notifications, opening permission settings) goes through the interfaces here.
// Detect picks a real implementation when the host supports one and falls back to
// Disabled otherwise, so callers never branch on the environment themselves.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/platform/termux"
)

// ErrUnavailable is returned by every capability of a platform that cannot provide it.
var ErrUnavailable = errors.New("platform capability unavailable")

// NotificationAccess observes notifications posted by other apps.
type NotificationAccess interface {
	// NotificationPermission reports whether the notification listener permission is
	// currently granted.
	NotificationPermission(ctx context.Context) (bool, error)
	// OpenNotificationSettings sends the user to the screen where the listener
	// permission is granted. It does not wait for the user.
	OpenNotificationSettings(ctx context.Context) error
	// Notifications delivers newly posted notifications until ctx is canceled, then
	// closes the channel.
	Notifications(ctx context.Context) (<-chan api.RawNotification, error)
}

// SmsAccess reads the SMS inbox.
type SmsAccess interface {
	SmsPermission(ctx context.Context) (bool, error)
	// RequestSmsPermission prompts for the read permission where the platform can and
	// returns the resulting grant state.
	RequestSmsPermission(ctx context.Context) (bool, error)
	// ListSms returns inbox messages received after since, newest first, at most limit.
	ListSms(ctx context.Context, since time.Time, limit int) ([]api.RawSms, error)
}

// Platform bundles both capabilities.
type Platform interface {
	NotificationAccess
	SmsAccess
	Name() string
}

// Modes accepted by Detect.
const (
	ModeAuto     = "auto"
	ModeTermux   = "termux"
	ModeDisabled = "disabled"
)

var _ Platform = (*termux.Termux)(nil)

// Detect selects the platform for mode. "auto" uses Termux when the Termux:API
// binaries are on PATH and Disabled otherwise.
func Detect(mode string, cfg termux.Config, logger *slog.Logger) (Platform, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch mode {
	case ModeDisabled:
		return Disabled{}, nil
	case ModeTermux:
		return termux.New(cfg, logger.With("component", "termux")), nil
	case ModeAuto, "":
		if _, err := exec.LookPath(termux.SmsListCommand); err != nil {
			logger.Info("termux api not found, platform capabilities disabled")
			return Disabled{}, nil
		}
		return termux.New(cfg, logger.With("component", "termux")), nil
	default:
		return nil, fmt.Errorf("unknown platform mode %q", mode)
	}
}

// Disabled is the platform of a host without any capability. Permissions are never
// granted and every operation fails with ErrUnavailable.
type Disabled struct{}

func (Disabled) Name() string { return ModeDisabled }

func (Disabled) NotificationPermission(context.Context) (bool, error) { return false, nil }

func (Disabled) OpenNotificationSettings(context.Context) error { return ErrUnavailable }

func (Disabled) Notifications(context.Context) (<-chan api.RawNotification, error) {
	return nil, ErrUnavailable
}

func (Disabled) SmsPermission(context.Context) (bool, error) { return false, nil }

func (Disabled) RequestSmsPermission(context.Context) (bool, error) { return false, ErrUnavailable }

func (Disabled) ListSms(context.Context, time.Time, int) ([]api.RawSms, error) {
	return nil, ErrUnavailable
}
