package plugboard

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/plugboard/plugboard/pkg/events"
	"github.com/plugboard/plugboard/pkg/logger"
	"github.com/plugboard/plugboard/pkg/permissions"
	"github.com/plugboard/plugboard/pkg/plugins"
	"github.com/plugboard/plugboard/pkg/store"
	"github.com/plugboard/plugboard/pkg/store/gormstore"
)

// Config holds the application configuration shared by every command.
type Config struct {
	// Addr is the listen address for the serve command, e.g. ":8080".
	Addr string
	// DatabaseURL selects the backend: a PostgreSQL DSN, or
	// "sqlite://<path>" for the embedded store ("sqlite://:memory:"
	// keeps everything in memory).
	DatabaseURL string
	// LogLevel is a zerolog level name; empty means info.
	LogLevel string
	// PrettyLog switches from JSON to console log output.
	PrettyLog bool
}

// App wires the store, the plugin-type hook registry, the permission
// guard and the events hub together behind the HTTP surface.
type App struct {
	store    store.Store
	registry *plugins.Registry
	guard    *permissions.Guard
	hub      *events.Hub
	config   *Config
	log      zerolog.Logger
}

// New creates an application instance and opens its store. Permissions
// default to allow-all; callers embedding the app can install their own
// Checker through NewWithStore.
func New(config *Config) (*App, error) {
	log := logger.New().
		AtLevel(config.LogLevel).
		Pretty(config.PrettyLog).
		Make()

	st, err := gormstore.Open(config.DatabaseURL, gormstore.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	app := NewWithStore(st, permissions.AllowAll{}, log)
	app.config = config
	return app, nil
}

// NewWithStore assembles an application around an existing store and
// permission checker. Tests use it to run the full HTTP surface against
// an in-memory store.
func NewWithStore(st store.Store, checker permissions.Checker, log zerolog.Logger) *App {
	return &App{
		store:    st,
		registry: plugins.NewRegistry(),
		guard:    permissions.NewGuard(checker, st),
		hub:      events.NewHub(),
		config:   &Config{},
		log:      log,
	}
}

// Close releases the application's resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the underlying store, useful for tests and embedders.
func (a *App) Store() store.Store {
	return a.store
}

// Registry returns the plugin-type hook registry so embedders can
// register cache hooks for their plugin types.
func (a *App) Registry() *plugins.Registry {
	return a.registry
}

// Hub returns the tree-change events hub.
func (a *App) Hub() *events.Hub {
	return a.hub
}

// getEnv retrieves an environment variable with a fallback default; an
// empty variable counts as unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
