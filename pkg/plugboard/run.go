package plugboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// shutdownTimeout bounds how long in-flight requests may run once the
// serve context is cancelled.
const shutdownTimeout = 5 * time.Second

// Run starts the HTTP editing service and blocks until the context is
// cancelled or the listener fails.
//
// # API Endpoints
//
// Placeholders:
//
//	POST   /api/placeholders                 - Create placeholder
//	GET    /api/placeholders                 - List (query: source_type, source_id)
//	GET    /api/placeholders/{id}            - Get placeholder
//	DELETE /api/placeholders/{id}            - Delete placeholder and its plugins
//	POST   /api/placeholders/{id}/clear      - Remove plugins (query: language)
//	GET    /api/placeholders/{id}/plugins    - Scope tree (query: language)
//	GET    /api/placeholders/{id}/languages  - Languages with content
//	POST   /api/placeholders/{id}/copy       - Copy plugins to another placeholder
//	GET    /api/placeholders/{id}/export     - CBOR snapshot (query: language, root_plugin_id)
//	POST   /api/placeholders/{id}/import     - Apply a CBOR snapshot (query: parent_id)
//	GET    /api/placeholders/{id}/watch      - Websocket feed of tree changes
//
// Plugins:
//
//	POST   /api/plugins                      - Add plugin (position 0 = append)
//	GET    /api/plugins/{id}                 - Get plugin
//	DELETE /api/plugins/{id}                 - Delete plugin subtree
//	POST   /api/plugins/{id}/move            - Move within or across placeholders
//
// Health:
//
//	GET    /healthz                          - Service health
//
// On cancellation the server drains in-flight requests for up to
// shutdownTimeout before returning.
func (a *App) Run(ctx context.Context, cmd *ServeCommand) error {
	server := &http.Server{
		Addr:    a.config.Addr,
		Handler: a.Router(),
	}

	a.log.Info().Str("addr", a.config.Addr).Msg("starting plugboard server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Router builds the service's routes. Exposed so tests can mount the
// full API on an httptest server.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/placeholders", a.handleCreatePlaceholder).Methods("POST")
	api.HandleFunc("/placeholders", a.handleListPlaceholders).Methods("GET")
	api.HandleFunc("/placeholders/{id}", a.handleGetPlaceholder).Methods("GET")
	api.HandleFunc("/placeholders/{id}", a.handleDeletePlaceholder).Methods("DELETE")
	api.HandleFunc("/placeholders/{id}/clear", a.handleClearPlaceholder).Methods("POST")
	api.HandleFunc("/placeholders/{id}/plugins", a.handleListPlugins).Methods("GET")
	api.HandleFunc("/placeholders/{id}/languages", a.handleFilledLanguages).Methods("GET")
	api.HandleFunc("/placeholders/{id}/copy", a.handleCopyPlugins).Methods("POST")
	api.HandleFunc("/placeholders/{id}/export", a.handleExportSnapshot).Methods("GET")
	api.HandleFunc("/placeholders/{id}/import", a.handleImportSnapshot).Methods("POST")
	api.HandleFunc("/placeholders/{id}/watch", a.handleWatch).Methods("GET")

	api.HandleFunc("/plugins", a.handleAddPlugin).Methods("POST")
	api.HandleFunc("/plugins/{id}", a.handleGetPlugin).Methods("GET")
	api.HandleFunc("/plugins/{id}", a.handleDeletePlugin).Methods("DELETE")
	api.HandleFunc("/plugins/{id}/move", a.handleMovePlugin).Methods("POST")

	router.HandleFunc("/healthz", a.handleHealth).Methods("GET")

	return router
}
