package plugboard

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/plugboard/plugboard/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWatch upgrades the request to a websocket and streams tree
// events for one placeholder until the client disconnects. A language
// query parameter narrows the stream to that scope.
func (a *App) handleWatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParsePlaceholderID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid placeholder ID")
		return
	}
	language := r.URL.Query().Get("language")

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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := a.hub.Subscribe()
	defer sub.Close()

	// The read pump only detects disconnects; clients do not send data.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if event.PlaceholderID != id {
				continue
			}
			if language != "" && event.Language != language {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
