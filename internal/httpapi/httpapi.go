// Package httpapi exposes the detection store over a small JSON HTTP surface so a UI
// process can drive confirmation and the listener lifecycle.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/txdetect/pkg/api"
)

// Store is the subset of the detection store the HTTP surface drives.
type Store interface {
	Snapshot() api.Snapshot
	Subscribe() (<-chan api.Snapshot, func())
	Pending(id string) (api.DetectedTransaction, bool)
	Settings() api.DetectionSettings
	MarkAsProcessed(ctx context.Context, id string) bool
	DismissTransaction(ctx context.Context, id string) bool
	ClearPending() int
	CheckPermissions(ctx context.Context) api.DetectionSettings
	RequestNotificationAccess(ctx context.Context) bool
	RequestSmsAccess(ctx context.Context) bool
	StartListening(ctx context.Context) (notifications, smsWatching bool)
	StopListening()
	ToggleNotificationListener(ctx context.Context, enabled bool) bool
	ToggleSmsReader(ctx context.Context, enabled bool) bool
	SetAutoShowPrompt(ctx context.Context, enabled bool)
	ScanRecentSms(ctx context.Context) int
}

// Server routes HTTP requests to a Store.
type Server struct {
	store  Store
	logger *slog.Logger
}

// New creates a server for store.
func New(store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /transactions/{id}/process", s.handleResolve(true))
	mux.HandleFunc("POST /transactions/{id}/dismiss", s.handleResolve(false))
	mux.HandleFunc("POST /transactions/clear", s.handleClear)
	mux.HandleFunc("GET /settings", s.handleSettings)
	mux.HandleFunc("PUT /settings/{name}", s.handleSetting)
	mux.HandleFunc("POST /permissions/check", s.handleCheckPermissions)
	mux.HandleFunc("POST /permissions/{source}/request", s.handleRequestPermission)
	mux.HandleFunc("POST /listening/start", s.handleStart)
	mux.HandleFunc("POST /listening/stop", s.handleStop)
	mux.HandleFunc("POST /sms/scan", s.handleScan)
	return mux
}

type resolveResponse struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed"`
}

type settingRequest struct {
	Enabled *bool `json:"enabled"`
}

type settingResponse struct {
	Settings api.DetectionSettings `json:"settings"`
	Running  *bool                 `json:"running,omitempty"`
}

type listeningResponse struct {
	Notifications bool `json:"notifications"`
	SmsWatching   bool `json:"smsWatching"`
}

type permissionResponse struct {
	Source  string `json:"source"`
	Granted bool   `json:"granted"`
}

type countResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleEvents streams every snapshot as a server-sent event until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	updates, cancel := s.store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.logger.Error("encoding snapshot event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.store.Pending(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("no pending transaction with that id"))
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

// handleResolve answers 200 for unknown and already-resolved ids alike; changed tells
// the caller whether anything moved.
func (s *Server) handleResolve(processed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var changed bool
		if processed {
			changed = s.store.MarkAsProcessed(r.Context(), id)
		} else {
			changed = s.store.DismissTransaction(r.Context(), id)
		}
		s.writeJSON(w, http.StatusOK, resolveResponse{ID: id, Changed: changed})
	}
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, countResponse{Count: s.store.ClearPending()})
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Settings())
}

func (s *Server) handleSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}
	if req.Enabled == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("enabled is required"))
		return
	}

	var running *bool
	switch name := r.PathValue("name"); name {
	case "notificationListenerEnabled":
		v := s.store.ToggleNotificationListener(r.Context(), *req.Enabled)
		running = &v
	case "smsReaderEnabled":
		v := s.store.ToggleSmsReader(r.Context(), *req.Enabled)
		running = &v
	case "autoShowPrompt":
		s.store.SetAutoShowPrompt(r.Context(), *req.Enabled)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown setting %q", name))
		return
	}

	s.writeJSON(w, http.StatusOK, settingResponse{Settings: s.store.Settings(), Running: running})
}

func (s *Server) handleCheckPermissions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.CheckPermissions(r.Context()))
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	var granted bool
	switch api.Source(source) {
	case api.SourceNotification:
		granted = s.store.RequestNotificationAccess(r.Context())
	case api.SourceSms:
		granted = s.store.RequestSmsAccess(r.Context())
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown source %q", source))
		return
	}
	s.writeJSON(w, http.StatusOK, permissionResponse{Source: source, Granted: granted})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	notifications, sms := s.store.StartListening(r.Context())
	s.writeJSON(w, http.StatusOK, listeningResponse{Notifications: notifications, SmsWatching: sms})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.store.StopListening()
	s.writeJSON(w, http.StatusOK, listeningResponse{})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, countResponse{Count: s.store.ScanRecentSms(r.Context())})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
