// Package plugins provides a registry for state backends and export writers.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/ArionMiles/txdetect/pkg/api"
	"github.com/ArionMiles/txdetect/pkg/config"
)

// StatePlugin builds a backend for the detection store's persisted record.
type StatePlugin interface {
	// Name returns the name used in state.backend.
	Name() string
	// Description returns a human-readable description.
	Description() string
	// NewStore opens the backend.
	NewStore(ctx context.Context, cfg config.StateConfig, logger *slog.Logger) (api.StateStore, error)
}

// WriterPlugin builds an export writer for confirmed transactions.
type WriterPlugin interface {
	// Name returns the name used in export.writer.
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// NewWriter creates a writer. httpClient is nil unless RequiredScopes is non-empty.
	NewWriter(httpClient *http.Client, cfg config.ExportConfig, logger *slog.Logger) (api.Writer, error)
}

// Registry manages available state and writer plugins.
type Registry struct {
	states  map[string]StatePlugin
	writers map[string]WriterPlugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		states:  make(map[string]StatePlugin),
		writers: make(map[string]WriterPlugin),
	}
}

// Default returns a registry with every built-in plugin registered.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []StatePlugin{&JSONState{}, &SQLiteState{}, &PostgresState{}, &MemoryState{}} {
		// Built-in names are unique.
		_ = r.RegisterState(p)
	}
	for _, p := range []WriterPlugin{&CSVWriter{}, &JSONWriter{}, &SheetsWriter{}, &PostgresWriter{}} {
		_ = r.RegisterWriter(p)
	}
	return r
}

// RegisterState registers a state plugin.
func (r *Registry) RegisterState(plugin StatePlugin) error {
	name := plugin.Name()
	if _, exists := r.states[name]; exists {
		return fmt.Errorf("state plugin %q already registered", name)
	}
	r.states[name] = plugin
	return nil
}

// RegisterWriter registers a writer plugin.
func (r *Registry) RegisterWriter(plugin WriterPlugin) error {
	name := plugin.Name()
	if _, exists := r.writers[name]; exists {
		return fmt.Errorf("writer plugin %q already registered", name)
	}
	r.writers[name] = plugin
	return nil
}

// GetState returns a state plugin by name.
func (r *Registry) GetState(name string) (StatePlugin, error) {
	plugin, exists := r.states[name]
	if !exists {
		return nil, fmt.Errorf("state plugin %q not found", name)
	}
	return plugin, nil
}

// GetWriter returns a writer plugin by name.
func (r *Registry) GetWriter(name string) (WriterPlugin, error) {
	plugin, exists := r.writers[name]
	if !exists {
		return nil, fmt.Errorf("writer plugin %q not found", name)
	}
	return plugin, nil
}

// ListStates returns all registered state plugins sorted by name.
func (r *Registry) ListStates() []StatePlugin {
	plugins := make([]StatePlugin, 0, len(r.states))
	for _, plugin := range r.states {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// ListWriters returns all registered writer plugins sorted by name.
func (r *Registry) ListWriters() []WriterPlugin {
	plugins := make([]WriterPlugin, 0, len(r.writers))
	for _, plugin := range r.writers {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// CreateState opens the named state backend.
func (r *Registry) CreateState(ctx context.Context, name string, cfg config.StateConfig, logger *slog.Logger) (api.StateStore, error) {
	plugin, err := r.GetState(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewStore(ctx, cfg, logger)
}

// CreateWriter creates the named export writer.
func (r *Registry) CreateWriter(name string, httpClient *http.Client, cfg config.ExportConfig, logger *slog.Logger) (api.Writer, error) {
	plugin, err := r.GetWriter(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewWriter(httpClient, cfg, logger)
}
