package detection

import (
	"context"

	"github.com/ArionMiles/txdetect/pkg/api"
)

// CheckPermissions refreshes the cached permission flags from the platform. Running
// adapters are left alone.
func (s *Store) CheckPermissions(ctx context.Context) api.DetectionSettings {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	notifications := s.listener.CheckPermission(ctx)
	smsGranted := s.reader.CheckPermission(ctx)
	listening := s.listener.IsListening()
	watching := s.reader.IsWatching()

	var settings api.DetectionSettings
	s.mutate(ctx, func() bool {
		changed := s.settings.NotificationPermissionGranted != notifications ||
			s.settings.SmsPermissionGranted != smsGranted
		s.settings.NotificationPermissionGranted = notifications
		s.settings.SmsPermissionGranted = smsGranted
		if s.isListening != listening || s.isSmsWatching != watching {
			s.isListening, s.isSmsWatching = listening, watching
			s.publishLocked()
		}
		settings = s.settings
		return changed
	})

	s.logger.Info("checked permissions", "notifications", notifications, "sms", smsGranted)
	return settings
}

// RequestNotificationAccess hands off to the platform's listener settings and returns
// the re-checked grant. It never starts listening.
func (s *Store) RequestNotificationAccess(ctx context.Context) bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	granted := s.listener.RequestPermission(ctx)
	s.mutate(ctx, func() bool {
		if s.settings.NotificationPermissionGranted == granted {
			return false
		}
		s.settings.NotificationPermissionGranted = granted
		return true
	})
	return granted
}

// RequestSmsAccess asks for the SMS read permission and returns the resulting grant.
// It never starts the watcher.
func (s *Store) RequestSmsAccess(ctx context.Context) bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	granted := s.reader.RequestPermission(ctx)
	s.mutate(ctx, func() bool {
		if s.settings.SmsPermissionGranted == granted {
			return false
		}
		s.settings.SmsPermissionGranted = granted
		return true
	})
	return granted
}

// StartListening starts every source that is enabled and permitted. One source
// running while the other is not is a normal outcome. It reports which sources are
// running afterwards.
func (s *Store) StartListening(ctx context.Context) (notifications, smsWatching bool) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	settings := s.Settings()
	notifications = s.startNotificationsLocked(ctx, settings)
	smsWatching = s.startSmsLocked(ctx, settings)
	return notifications, smsWatching
}

// StopListening stops both sources.
func (s *Store) StopListening() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.listener.Stop()
	s.reader.StopWatching()
	s.setLive(func() {
		s.isListening = false
		s.isSmsWatching = false
	})
	s.logger.Info("stopped listening")
}

// ToggleNotificationListener persists the setting and stops or, when eligible, starts
// the notification listener. It reports whether the listener is running afterwards.
func (s *Store) ToggleNotificationListener(ctx context.Context, enabled bool) bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	var settings api.DetectionSettings
	s.mutate(ctx, func() bool {
		changed := s.settings.NotificationListenerEnabled != enabled
		s.settings.NotificationListenerEnabled = enabled
		settings = s.settings
		return changed
	})

	if !enabled {
		s.listener.Stop()
		s.setLive(func() { s.isListening = false })
		return false
	}
	return s.startNotificationsLocked(ctx, settings)
}

// ToggleSmsReader persists the setting and stops or, when eligible, starts the SMS
// watcher. It reports whether the watcher is running afterwards.
func (s *Store) ToggleSmsReader(ctx context.Context, enabled bool) bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	var settings api.DetectionSettings
	s.mutate(ctx, func() bool {
		changed := s.settings.SmsReaderEnabled != enabled
		s.settings.SmsReaderEnabled = enabled
		settings = s.settings
		return changed
	})

	if !enabled {
		s.reader.StopWatching()
		s.setLive(func() { s.isSmsWatching = false })
		return false
	}
	return s.startSmsLocked(ctx, settings)
}

// SetAutoShowPrompt persists the auto-show preference.
func (s *Store) SetAutoShowPrompt(ctx context.Context, enabled bool) {
	s.mutate(ctx, func() bool {
		if s.settings.AutoShowPrompt == enabled {
			return false
		}
		s.settings.AutoShowPrompt = enabled
		return true
	})
}

// ScanRecentSms reads the inbox window and feeds every transaction through the dedup
// gate, oldest first. It returns how many were queued.
func (s *Store) ScanRecentSms(ctx context.Context) int {
	found := s.reader.Scan(ctx, s.cfg.ScanOptions)

	accepted := 0
	for i := len(found) - 1; i >= 0; i-- {
		if s.AddDetectedTransaction(found[i]) {
			accepted++
		}
	}

	s.logger.Info("sms scan complete", "found", len(found), "queued", accepted)
	return accepted
}

func (s *Store) startNotificationsLocked(ctx context.Context, settings api.DetectionSettings) bool {
	if !settings.NotificationListenerEnabled || !settings.NotificationPermissionGranted {
		s.logger.Info("notification listener not eligible",
			"enabled", settings.NotificationListenerEnabled,
			"granted", settings.NotificationPermissionGranted,
		)
		return false
	}

	started := s.listener.Start(ctx)
	s.setLive(func() { s.isListening = started })
	if !started {
		s.logger.Warn("notification listener failed to start")
	}
	return started
}

func (s *Store) startSmsLocked(ctx context.Context, settings api.DetectionSettings) bool {
	if !settings.SmsReaderEnabled || !settings.SmsPermissionGranted {
		s.logger.Info("sms watcher not eligible",
			"enabled", settings.SmsReaderEnabled,
			"granted", settings.SmsPermissionGranted,
		)
		return false
	}

	started := s.reader.StartWatching(ctx, s.onDetected)
	s.setLive(func() { s.isSmsWatching = started })
	if !started {
		s.logger.Warn("sms watcher failed to start")
	}
	return started
}

// setLive updates the derived running flags, which are never persisted.
func (s *Store) setLive(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.publishLocked()
}
