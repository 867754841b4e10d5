// Package daemon assembles the detection service from configuration and runs it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ArionMiles/txdetect/internal/httpapi"
	"github.com/ArionMiles/txdetect/internal/plugins"
	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/config"
	"github.com/ArionMiles/txdetect/pkg/detection"
	"github.com/ArionMiles/txdetect/pkg/platform"
	"github.com/ArionMiles/txdetect/pkg/platform/termux"
	"github.com/ArionMiles/txdetect/pkg/reader/notification"
	"github.com/ArionMiles/txdetect/pkg/reader/sms"
)

const (
	exportQueueSize = 100
	shutdownTimeout = 5 * time.Second
)

// PlatformFunc selects the device platform. platform.Detect is the default.
type PlatformFunc func(mode string, cfg termux.Config, logger *slog.Logger) (platform.Platform, error)

// Runner manages the detection daemon lifecycle.
type Runner struct {
	registry   *plugins.Registry
	httpClient *http.Client
	logger     *slog.Logger
	platform   PlatformFunc
}

// New creates a new daemon runner. httpClient is only needed by writers that declare
// OAuth scopes.
func New(registry *plugins.Registry, httpClient *http.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = plugins.Default()
	}

	return &Runner{
		registry:   registry,
		httpClient: httpClient,
		logger:     logger,
		platform:   platform.Detect,
	}
}

// WithPlatform overrides platform selection.
func (r *Runner) WithPlatform(fn PlatformFunc) *Runner {
	r.platform = fn
	return r
}

// Service is an assembled detection store with its state backend and export writer.
type Service struct {
	Store    *detection.Store
	Platform platform.Platform

	state  api.StateStore
	logger *slog.Logger

	mu         sync.Mutex
	closed     bool
	confirmed  chan *api.DetectedTransaction
	writerDone chan error
}

// Open builds the service described by cfg and loads its persisted state. The export
// writer, if any, is running when Open returns. Nothing is listening yet.
func (r *Runner) Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving timezone: %w", err)
	}

	plat, err := r.platform(cfg.Platform.Mode, termux.Config{
		PollInterval: cfg.Platform.PollInterval,
		Attempts:     cfg.Platform.ExecAttempts,
		RetryDelay:   cfg.Platform.ExecRetryDelay,
		Location:     loc,
	}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("selecting platform: %w", err)
	}

	state, err := r.registry.CreateState(ctx, cfg.State.Backend, cfg.State,
		r.logger.With("component", "state", "plugin", cfg.State.Backend))
	if err != nil {
		return nil, fmt.Errorf("creating state store: %w", err)
	}

	svc := &Service{
		Platform: plat,
		state:    state,
		logger:   r.logger,
	}

	var writer api.Writer
	if cfg.Export.Writer != "" && cfg.Export.Writer != "none" {
		writer, err = r.registry.CreateWriter(cfg.Export.Writer, r.httpClient, cfg.Export,
			r.logger.With("component", "writer", "plugin", cfg.Export.Writer))
		if err != nil {
			_ = state.Close()
			return nil, fmt.Errorf("creating writer: %w", err)
		}
	}

	listener := notification.New(plat, r.logger.With("component", "notifications"))
	reader := sms.New(plat, sms.Config{
		WatchInterval: cfg.Detection.WatchInterval,
		WatchLookback: cfg.Detection.WatchLookback,
		WatchMaxCount: cfg.Detection.WatchMaxCount,
	}, r.logger.With("component", "sms"))

	storeCfg := detection.Config{
		State: state,
		ScanOptions: sms.ScanOptions{
			Lookback: cfg.Detection.ScanLookback,
			MaxCount: cfg.Detection.ScanMaxCount,
		},
		SaveAttempts:   cfg.Detection.SaveAttempts,
		SaveRetryDelay: cfg.Detection.SaveRetryDelay,
	}
	if writer != nil {
		svc.confirmed = make(chan *api.DetectedTransaction, exportQueueSize)
		svc.writerDone = make(chan error, 1)
		storeCfg.OnProcessed = svc.export

		// The writer drains the queue after ctx is canceled; Close ends it.
		go func() {
			svc.writerDone <- writer.Write(context.WithoutCancel(ctx), svc.confirmed)
		}()
	}

	svc.Store = detection.New(listener, reader, storeCfg, r.logger.With("component", "store"))

	if err := svc.Store.Load(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}

	r.logger.Info("detection service ready",
		"platform", plat.Name(),
		"state", cfg.State.Backend,
		"writer", cfg.Export.Writer,
	)
	return svc, nil
}

// export queues a confirmed transaction for the writer without blocking the store.
func (s *Service) export(tx api.DetectedTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.confirmed <- &tx:
	default:
		s.logger.Warn("export queue full, dropping confirmed transaction", "id", tx.ID)
	}
}

// Close stops both sources, drains the export writer and closes the state backend.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.Store != nil {
		s.Store.StopListening()
	}

	var errs []error
	if s.confirmed != nil {
		close(s.confirmed)
		if err := <-s.writerDone; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("writer: %w", err))
		}
	}
	if err := s.state.Close(); err != nil {
		errs = append(errs, fmt.Errorf("state: %w", err))
	}
	return errors.Join(errs...)
}

// Run opens the service, starts every eligible source and serves the HTTP surface
// until ctx is canceled.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) error {
	svc, err := r.Open(ctx, cfg)
	if err != nil {
		return err
	}

	settings := svc.Store.CheckPermissions(ctx)
	notifications, smsWatching := svc.Store.StartListening(ctx)
	r.logger.Info("daemon started",
		"notification_permission", settings.NotificationPermissionGranted,
		"sms_permission", settings.SmsPermissionGranted,
		"notifications", notifications,
		"sms_watching", smsWatching,
	)

	var server *http.Server
	serverDone := make(chan error, 1)
	if cfg.HTTP.Addr != "" {
		lc := net.ListenConfig{}
		ln, err := lc.Listen(ctx, "tcp", cfg.HTTP.Addr)
		if err != nil {
			_ = svc.Close()
			return fmt.Errorf("listening on %s: %w", cfg.HTTP.Addr, err)
		}

		server = &http.Server{
			Handler:           httpapi.New(svc.Store, r.logger.With("component", "http")).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			r.logger.Info("http control surface listening", "addr", ln.Addr().String())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverDone <- err
				return
			}
			serverDone <- nil
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverDone:
		runErr = fmt.Errorf("http server: %w", err)
		server = nil
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("http server shutdown", "error", err)
		}
		cancel()
	}

	if err := svc.Close(); err != nil {
		r.logger.Error("closing detection service", "error", err)
	}

	r.logger.Info("daemon stopped")
	return runErr
}
