package plugboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/plugboard/plugboard/pkg/events"
	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/snapshot"
	"github.com/plugboard/plugboard/pkg/store"
)

// Placeholder handlers

func (a *App) handleCreatePlaceholder(w http.ResponseWriter, r *http.Request) {
	// Editable and cache default to on; the decoder only overwrites
	// fields the body actually carries.
	placeholder := models.Placeholder{Editable: true, CacheEnabled: true}
	if err := json.NewDecoder(r.Body).Decode(&placeholder); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := r.Context()
	if err := a.store.CreatePlaceholder(ctx, &placeholder); err != nil {
		a.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, placeholder)
}

func (a *App) handleGetPlaceholder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}

	ctx := r.Context()
	placeholder, err := a.store.GetPlaceholder(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if placeholder == nil {
		respondError(w, http.StatusNotFound, "Placeholder not found")
		return
	}

	respondJSON(w, http.StatusOK, placeholder)
}

func (a *App) handleListPlaceholders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	placeholders, err := a.store.ListPlaceholders(ctx,
		r.URL.Query().Get("source_type"),
		r.URL.Query().Get("source_id"),
	)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, placeholders)
}

func (a *App) handleDeletePlaceholder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}

	ctx := r.Context()
	if err := a.store.DeletePlaceholder(ctx, id); err != nil {
		a.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleClearPlaceholder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}

	ctx := r.Context()
	placeholder, err := a.store.GetPlaceholder(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if placeholder == nil {
		respondError(w, http.StatusNotFound, "Placeholder not found")
		return
	}

	language := r.URL.Query().Get("language")
	allowed, err := a.guard.CanClearPlaceholder(ctx, userFrom(r), placeholder, language)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "Clearing this placeholder is not permitted")
		return
	}

	if err := a.store.ClearPlaceholder(ctx, id, language); err != nil {
		a.respondStoreError(w, err)
		return
	}

	a.hub.Publish(events.Event{
		Type:          events.PlaceholderCleared,
		PlaceholderID: id,
		Language:      language,
	})
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		respondError(w, http.StatusBadRequest, "Missing language query parameter")
		return
	}

	ctx := r.Context()
	plugins, err := a.store.Plugins(ctx, id, language)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plugins)
}

func (a *App) handleFilledLanguages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}

	ctx := r.Context()
	languages, err := a.store.FilledLanguages(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, languages)
}

func (a *App) handleCopyPlugins(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sourceID, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}

	var req struct {
		TargetPlaceholderID models.PlaceholderID `json:"target_placeholder_id"`
		Language            string               `json:"language"`
		RootPluginID        *models.PluginID     `json:"root_plugin_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := r.Context()
	target, err := a.store.GetPlaceholder(ctx, req.TargetPlaceholderID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if target == nil {
		respondError(w, http.StatusNotFound, "Target placeholder not found")
		return
	}

	// Adding the clones needs add permission on the target for every
	// plugin type being copied.
	pluginTypes, err := a.store.DistinctPluginTypes(ctx, sourceID, []string{req.Language})
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	user := userFrom(r)
	for _, pluginType := range pluginTypes {
		allowed, err := a.guard.CanAddPlugin(ctx, user, target, pluginType)
		if err != nil {
			a.respondStoreError(w, err)
			return
		}
		if !allowed {
			respondError(w, http.StatusForbidden, "Copying into this placeholder is not permitted")
			return
		}
	}

	clones, err := a.store.CopyPlugins(ctx, sourceID, req.TargetPlaceholderID, req.Language, req.RootPluginID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	a.publishTreeEvent(ctx, events.TreeImported, req.TargetPlaceholderID, req.Language, nil)
	respondJSON(w, http.StatusCreated, clones)
}

func (a *App) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		respondError(w, http.StatusBadRequest, "Missing language query parameter")
		return
	}
	var rootID *models.PluginID
	if raw := r.URL.Query().Get("root_plugin_id"); raw != "" {
		parsed, err := models.ParsePluginID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid root plugin ID")
			return
		}
		rootID = &parsed
	}

	ctx := r.Context()
	snap, err := snapshot.Take(ctx, a.store, id, language, rootID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}
	var parentID *models.PluginID
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		parsed, err := models.ParsePluginID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid parent plugin ID")
			return
		}
		parentID = &parsed
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Reading request body failed")
		return
	}
	snap, err := snapshot.Decode(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid snapshot payload")
		return
	}

	ctx := r.Context()
	placeholder, err := a.store.GetPlaceholder(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if placeholder == nil {
		respondError(w, http.StatusNotFound, "Placeholder not found")
		return
	}

	user := userFrom(r)
	for _, pluginType := range snap.Types() {
		allowed, err := a.guard.CanAddPlugin(ctx, user, placeholder, pluginType)
		if err != nil {
			a.respondStoreError(w, err)
			return
		}
		if !allowed {
			respondError(w, http.StatusForbidden, "Importing into this placeholder is not permitted")
			return
		}
	}

	created, err := snapshot.Apply(ctx, a.store, snap, id, parentID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	a.publishTreeEvent(ctx, events.TreeImported, id, snap.Language, nil)
	respondJSON(w, http.StatusCreated, created)
}

// Plugin handlers

func (a *App) handleAddPlugin(w http.ResponseWriter, r *http.Request) {
	var plugin models.Plugin
	if err := json.NewDecoder(r.Body).Decode(&plugin); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := r.Context()
	placeholder, err := a.store.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if placeholder == nil {
		respondError(w, http.StatusNotFound, "Placeholder not found")
		return
	}

	allowed, err := a.guard.CanAddPlugin(ctx, userFrom(r), placeholder, plugin.PluginType)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "Adding to this placeholder is not permitted")
		return
	}

	// Position 0 means append behind the last sibling.
	if plugin.Position == 0 {
		position, err := a.store.NextPosition(ctx, plugin.PlaceholderID, plugin.Language, plugin.ParentID, models.InsertLast)
		if err != nil {
			a.respondStoreError(w, err)
			return
		}
		plugin.Position = position
	}

	if err := a.store.AddPlugin(ctx, &plugin); err != nil {
		a.respondStoreError(w, err)
		return
	}

	a.publishTreeEvent(ctx, events.PluginAdded, plugin.PlaceholderID, plugin.Language, &plugin.ID)
	respondJSON(w, http.StatusCreated, plugin)
}

func (a *App) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePluginID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid plugin ID")
		return
	}

	ctx := r.Context()
	plugin, err := a.store.GetPlugin(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if plugin == nil {
		respondError(w, http.StatusNotFound, "Plugin not found")
		return
	}

	respondJSON(w, http.StatusOK, plugin)
}

func (a *App) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePluginID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid plugin ID")
		return
	}

	ctx := r.Context()
	plugin, err := a.store.GetPlugin(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if plugin == nil {
		respondError(w, http.StatusNotFound, "Plugin not found")
		return
	}
	placeholder, err := a.store.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if placeholder == nil {
		respondError(w, http.StatusNotFound, "Placeholder not found")
		return
	}

	allowed, err := a.guard.CanDeletePlugin(ctx, userFrom(r), placeholder, plugin)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "Deleting this plugin is not permitted")
		return
	}

	if err := a.store.DeletePlugin(ctx, id); err != nil {
		a.respondStoreError(w, err)
		return
	}

	a.publishTreeEvent(ctx, events.PluginDeleted, plugin.PlaceholderID, plugin.Language, &plugin.ID)
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleMovePlugin(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePluginID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid plugin ID")
		return
	}

	var req struct {
		TargetPlaceholderID *models.PlaceholderID `json:"target_placeholder_id,omitempty"`
		TargetPosition      int                   `json:"target_position"`
		TargetParentID      *models.PluginID      `json:"target_parent_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := r.Context()
	plugin, err := a.store.GetPlugin(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if plugin == nil {
		respondError(w, http.StatusNotFound, "Plugin not found")
		return
	}
	source, err := a.store.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if source == nil {
		respondError(w, http.StatusNotFound, "Placeholder not found")
		return
	}

	target := source
	if req.TargetPlaceholderID != nil && *req.TargetPlaceholderID != plugin.PlaceholderID {
		target, err = a.store.GetPlaceholder(ctx, *req.TargetPlaceholderID)
		if err != nil {
			a.respondStoreError(w, err)
			return
		}
		if target == nil {
			respondError(w, http.StatusNotFound, "Target placeholder not found")
			return
		}
	}

	allowed, err := a.guard.CanMovePlugin(ctx, userFrom(r), source, target, plugin)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "Moving this plugin is not permitted")
		return
	}

	if target.ID != plugin.PlaceholderID {
		err = a.store.MovePluginToPlaceholder(ctx, id, target.ID, req.TargetPosition, req.TargetParentID)
	} else {
		err = a.store.MovePlugin(ctx, id, req.TargetPosition, req.TargetParentID)
	}
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	a.publishTreeEvent(ctx, events.PluginMoved, target.ID, plugin.Language, &plugin.ID)

	moved, err := a.store.GetPlugin(ctx, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, moved)
}

// API handlers

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}
	respondJSON(w, http.StatusOK, response)
}

// publishTreeEvent broadcasts a mutation event carrying the scope's
// fresh root-level order so watchers can re-render without a query.
func (a *App) publishTreeEvent(ctx context.Context, eventType events.Type, placeholderID models.PlaceholderID, language string, pluginID *models.PluginID) {
	order, err := a.store.TreeOrder(ctx, placeholderID, language, nil)
	if err != nil {
		a.log.Error().Err(err).Msg("computing tree order for event")
		order = nil
	}
	a.hub.Publish(events.Event{
		Type:          eventType,
		PlaceholderID: placeholderID,
		Language:      language,
		PluginID:      pluginID,
		Order:         order,
	})
}

// userFrom extracts the acting user for permission checks. The service
// itself does not authenticate; deployments front it with something
// that sets the header.
func userFrom(r *http.Request) string {
	return r.Header.Get("X-User")
}

// respondStoreError translates store errors into HTTP status codes:
// missing records 404, scope violations 409, bad positions and failed
// validation 400, everything else 500.
func (a *App) respondStoreError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidScope):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidPosition), errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondError sends a standardized JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
