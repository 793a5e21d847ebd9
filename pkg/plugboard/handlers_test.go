package plugboard_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugboard/plugboard/pkg/events"
	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/permissions"
	"github.com/plugboard/plugboard/pkg/plugboard"
	"github.com/plugboard/plugboard/pkg/snapshot"
	"github.com/plugboard/plugboard/pkg/store/gormstore"
)

var appSeq int64

// denyAll refuses every permission request.
type denyAll struct{}

func (denyAll) Can(context.Context, string, permissions.Action, *models.Placeholder, string) (bool, error) {
	return false, nil
}

func newTestAppWith(t *testing.T, checker permissions.Checker) (*plugboard.App, *httptest.Server) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("sqlite://file:%s-%d?mode=memory&cache=shared", name, atomic.AddInt64(&appSeq, 1))
	st, err := gormstore.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	app := plugboard.NewWithStore(st, checker, zerolog.Nop())
	server := httptest.NewServer(app.Router())
	t.Cleanup(func() {
		server.Close()
		_ = app.Close()
	})
	return app, server
}

func newTestApp(t *testing.T) (*plugboard.App, *httptest.Server) {
	t.Helper()
	return newTestAppWith(t, permissions.AllowAll{})
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createPlaceholderHTTP(t *testing.T, server *httptest.Server, body map[string]any) *models.Placeholder {
	t.Helper()
	resp := doRequest(t, "POST", server.URL+"/api/placeholders", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var placeholder models.Placeholder
	decodeBody(t, resp, &placeholder)
	return &placeholder
}

func addPluginHTTP(t *testing.T, server *httptest.Server, body map[string]any) *models.Plugin {
	t.Helper()
	resp := doRequest(t, "POST", server.URL+"/api/plugins", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var plugin models.Plugin
	decodeBody(t, resp, &plugin)
	return &plugin
}

func listPluginsHTTP(t *testing.T, server *httptest.Server, placeholderID models.PlaceholderID, language string) []*models.Plugin {
	t.Helper()
	resp := doRequest(t, "GET", fmt.Sprintf("%s/api/placeholders/%s/plugins?language=%s", server.URL, placeholderID, language), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plugins []*models.Plugin
	decodeBody(t, resp, &plugins)
	return plugins
}

func pluginTypes(plugins []*models.Plugin) []string {
	types := make([]string, len(plugins))
	for i, plugin := range plugins {
		types[i] = plugin.PluginType
	}
	return types
}

func TestHealthEndpoint(t *testing.T) {
	_, server := newTestApp(t)

	resp := doRequest(t, "GET", server.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "time")
}

func TestPlaceholderCRUD(t *testing.T) {
	_, server := newTestApp(t)

	created := createPlaceholderHTTP(t, server, map[string]any{
		"slot": "content", "source_type": "page", "source_id": "1",
	})
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "content", created.Slot)
	// Omitted flags default to on.
	assert.True(t, created.Editable)
	assert.True(t, created.CacheEnabled)

	resp := doRequest(t, "GET", server.URL+"/api/placeholders/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Placeholder
	decodeBody(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)

	resp = doRequest(t, "GET", server.URL+"/api/placeholders?source_type=page&source_id=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []*models.Placeholder
	decodeBody(t, resp, &listed)
	require.Len(t, listed, 1)

	resp = doRequest(t, "GET", server.URL+"/api/placeholders?source_type=campaign", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed = nil
	decodeBody(t, resp, &listed)
	assert.Empty(t, listed)

	resp = doRequest(t, "DELETE", server.URL+"/api/placeholders/"+created.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, "GET", server.URL+"/api/placeholders/"+created.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPlaceholderBadRequests(t *testing.T) {
	_, server := newTestApp(t)

	t.Run("invalid id", func(t *testing.T) {
		resp := doRequest(t, "GET", server.URL+"/api/placeholders/not-a-uuid", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Invalid placeholder ID", body["error"])
	})
	t.Run("garbage payload", func(t *testing.T) {
		req, err := http.NewRequest("POST", server.URL+"/api/placeholders", strings.NewReader("{notjson"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("empty slot", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/placeholders", map[string]any{"slot": ""})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("missing placeholder", func(t *testing.T) {
		resp := doRequest(t, "DELETE", server.URL+"/api/placeholders/"+models.NewPlaceholderID().String(), nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestAddPluginEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})

	// Position 0 appends.
	first := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "text",
		"payload": map[string]any{"body": "hello"},
	})
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, "hello", first.Payload["body"])

	second := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "image",
	})
	assert.Equal(t, 2, second.Position)

	// An explicit position inserts in front of the tail.
	third := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "link", "position": 1,
	})
	assert.Equal(t, 1, third.Position)

	plugins := listPluginsHTTP(t, server, ph.ID, "en")
	assert.Equal(t, []string{"link", "text", "image"}, pluginTypes(plugins))

	// Position 0 under a parent appends to that parent's children.
	child := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "nested",
		"parent_id": third.ID,
	})
	assert.Equal(t, 2, child.Position)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, third.ID, *child.ParentID)

	plugins = listPluginsHTTP(t, server, ph.ID, "en")
	assert.Equal(t, []string{"link", "nested", "text", "image"}, pluginTypes(plugins))
}

func TestAddPluginEndpointErrors(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})

	t.Run("unknown placeholder", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins", map[string]any{
			"placeholder_id": models.NewPlaceholderID(), "language": "en", "plugin_type": "text",
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Placeholder not found", body["error"])
	})
	t.Run("missing plugin type", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins", map[string]any{
			"placeholder_id": ph.ID, "language": "en",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("list without language", func(t *testing.T) {
		resp := doRequest(t, "GET", server.URL+"/api/placeholders/"+ph.ID.String()+"/plugins", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Equal(t, "Missing language query parameter", body["error"])
	})
}

func TestGetAndDeletePluginEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	plugin := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "text",
	})

	resp := doRequest(t, "GET", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Plugin
	decodeBody(t, resp, &fetched)
	assert.Equal(t, plugin.ID, fetched.ID)

	resp = doRequest(t, "DELETE", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, "GET", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, "DELETE", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestDeletePluginRenumbersTail(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	var ids []models.PluginID
	for _, pluginType := range []string{"a", "b", "c"} {
		plugin := addPluginHTTP(t, server, map[string]any{
			"placeholder_id": ph.ID, "language": "en", "plugin_type": pluginType,
		})
		ids = append(ids, plugin.ID)
	}

	resp := doRequest(t, "DELETE", server.URL+"/api/plugins/"+ids[1].String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	plugins := listPluginsHTTP(t, server, ph.ID, "en")
	assert.Equal(t, []string{"a", "c"}, pluginTypes(plugins))
	assert.Equal(t, 1, plugins[0].Position)
	assert.Equal(t, 2, plugins[1].Position)
}

func TestMovePluginEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	for _, pluginType := range []string{"a", "b", "c"} {
		addPluginHTTP(t, server, map[string]any{
			"placeholder_id": ph.ID, "language": "en", "plugin_type": pluginType,
		})
	}
	plugins := listPluginsHTTP(t, server, ph.ID, "en")
	c := plugins[2]

	resp := doRequest(t, "POST", server.URL+"/api/plugins/"+c.ID.String()+"/move", map[string]any{
		"target_position": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var moved models.Plugin
	decodeBody(t, resp, &moved)
	assert.Equal(t, 1, moved.Position)

	plugins = listPluginsHTTP(t, server, ph.ID, "en")
	assert.Equal(t, []string{"c", "a", "b"}, pluginTypes(plugins))
}

func TestMovePluginAcrossPlaceholdersEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	source := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	target := createPlaceholderHTTP(t, server, map[string]any{"slot": "sidebar"})
	plugin := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": source.ID, "language": "en", "plugin_type": "text",
	})
	addPluginHTTP(t, server, map[string]any{
		"placeholder_id": target.ID, "language": "en", "plugin_type": "existing",
	})

	resp := doRequest(t, "POST", server.URL+"/api/plugins/"+plugin.ID.String()+"/move", map[string]any{
		"target_placeholder_id": target.ID,
		"target_position":       1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var moved models.Plugin
	decodeBody(t, resp, &moved)
	assert.Equal(t, target.ID, moved.PlaceholderID)
	assert.Equal(t, 1, moved.Position)

	assert.Empty(t, listPluginsHTTP(t, server, source.ID, "en"))
	assert.Equal(t, []string{"text", "existing"}, pluginTypes(listPluginsHTTP(t, server, target.ID, "en")))
}

func TestMovePluginEndpointErrors(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	parent := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "column",
	})
	child := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "text", "parent_id": parent.ID,
	})

	t.Run("invalid position", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins/"+parent.ID.String()+"/move", map[string]any{
			"target_position": 0,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("under own descendant", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins/"+parent.ID.String()+"/move", map[string]any{
			"target_position": 2, "target_parent_id": child.ID,
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("missing plugin", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins/"+models.NewPluginID().String()+"/move", map[string]any{
			"target_position": 1,
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("unknown target placeholder", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins/"+parent.ID.String()+"/move", map[string]any{
			"target_placeholder_id": models.NewPlaceholderID(), "target_position": 1,
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestClearPlaceholderEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	for _, language := range []string{"en", "de"} {
		addPluginHTTP(t, server, map[string]any{
			"placeholder_id": ph.ID, "language": language, "plugin_type": "text",
		})
	}

	resp := doRequest(t, "POST", server.URL+"/api/placeholders/"+ph.ID.String()+"/clear?language=en", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	assert.Empty(t, listPluginsHTTP(t, server, ph.ID, "en"))
	assert.Len(t, listPluginsHTTP(t, server, ph.ID, "de"), 1)

	// Without a language the whole placeholder is emptied.
	resp = doRequest(t, "POST", server.URL+"/api/placeholders/"+ph.ID.String()+"/clear", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	assert.Empty(t, listPluginsHTTP(t, server, ph.ID, "de"))
}

func TestFilledLanguagesEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	for _, language := range []string{"en", "de"} {
		addPluginHTTP(t, server, map[string]any{
			"placeholder_id": ph.ID, "language": language, "plugin_type": "text",
		})
	}

	resp := doRequest(t, "GET", server.URL+"/api/placeholders/"+ph.ID.String()+"/languages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var languages []string
	decodeBody(t, resp, &languages)
	assert.Equal(t, []string{"de", "en"}, languages)
}

func TestCopyPluginsEndpoint(t *testing.T) {
	_, server := newTestApp(t)
	source := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	target := createPlaceholderHTTP(t, server, map[string]any{"slot": "copy"})
	for _, pluginType := range []string{"a", "b"} {
		addPluginHTTP(t, server, map[string]any{
			"placeholder_id": source.ID, "language": "en", "plugin_type": pluginType,
		})
	}

	resp := doRequest(t, "POST", server.URL+"/api/placeholders/"+source.ID.String()+"/copy", map[string]any{
		"target_placeholder_id": target.ID, "language": "en",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var clones []*models.Plugin
	decodeBody(t, resp, &clones)
	require.Len(t, clones, 2)

	assert.Equal(t, []string{"a", "b"}, pluginTypes(listPluginsHTTP(t, server, target.ID, "en")))
	// Source is left alone.
	assert.Equal(t, []string{"a", "b"}, pluginTypes(listPluginsHTTP(t, server, source.ID, "en")))
}

func TestExportImportRoundTrip(t *testing.T) {
	_, server := newTestApp(t)
	source := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})
	parent := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": source.ID, "language": "en", "plugin_type": "column",
	})
	addPluginHTTP(t, server, map[string]any{
		"placeholder_id": source.ID, "language": "en", "plugin_type": "text", "parent_id": parent.ID,
	})

	resp := doRequest(t, "GET", server.URL+"/api/placeholders/"+source.ID.String()+"/export?language=en", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/cbor", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	snap, err := snapshot.Decode(data)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "column", snap.Nodes[0].Type)
	require.Len(t, snap.Nodes[0].Children, 1)

	// Import the snapshot into a fresh placeholder.
	target := createPlaceholderHTTP(t, server, map[string]any{"slot": "restore"})
	req, err := http.NewRequest("POST", server.URL+"/api/placeholders/"+target.ID.String()+"/import", bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/cbor")
	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, importResp.StatusCode)
	var created []*models.Plugin
	decodeBody(t, importResp, &created)
	require.Len(t, created, 2)

	assert.Equal(t, []string{"column", "text"}, pluginTypes(listPluginsHTTP(t, server, target.ID, "en")))
}

func TestImportRejectsGarbage(t *testing.T) {
	_, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})

	req, err := http.NewRequest("POST", server.URL+"/api/placeholders/"+ph.ID.String()+"/import", bytes.NewReader([]byte{0xff}))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPermissionDenials(t *testing.T) {
	app, server := newTestAppWith(t, denyAll{})

	// Seed directly through the store; the API would refuse.
	ctx := context.Background()
	ph := &models.Placeholder{Slot: "content", Editable: true}
	require.NoError(t, app.Store().CreatePlaceholder(ctx, ph))
	plugin := &models.Plugin{PlaceholderID: ph.ID, Language: "en", Position: 1, PluginType: "text"}
	require.NoError(t, app.Store().AddPlugin(ctx, plugin))

	t.Run("add denied", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins", map[string]any{
			"placeholder_id": ph.ID, "language": "en", "plugin_type": "text",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("move denied", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/plugins/"+plugin.ID.String()+"/move", map[string]any{
			"target_position": 1,
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("delete denied", func(t *testing.T) {
		resp := doRequest(t, "DELETE", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("clear denied", func(t *testing.T) {
		resp := doRequest(t, "POST", server.URL+"/api/placeholders/"+ph.ID.String()+"/clear?language=en", nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("copy denied", func(t *testing.T) {
		target := &models.Placeholder{Slot: "target", Editable: true}
		require.NoError(t, app.Store().CreatePlaceholder(ctx, target))
		resp := doRequest(t, "POST", server.URL+"/api/placeholders/"+ph.ID.String()+"/copy", map[string]any{
			"target_placeholder_id": target.ID, "language": "en",
		})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
	t.Run("import denied", func(t *testing.T) {
		data, err := snapshot.Encode(&snapshot.Snapshot{Language: "en", Nodes: []snapshot.Node{{Type: "text"}}})
		require.NoError(t, err)
		req, err := http.NewRequest("POST", server.URL+"/api/placeholders/"+ph.ID.String()+"/import", bytes.NewReader(data))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
	t.Run("reads stay open", func(t *testing.T) {
		resp := doRequest(t, "GET", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestNonEditablePlaceholderRefusesWrites(t *testing.T) {
	_, server := newTestApp(t)
	frozen := createPlaceholderHTTP(t, server, map[string]any{"slot": "static", "editable": false})
	require.False(t, frozen.Editable)

	resp := doRequest(t, "POST", server.URL+"/api/plugins", map[string]any{
		"placeholder_id": frozen.ID, "language": "en", "plugin_type": "text",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestMutationsPublishEvents(t *testing.T) {
	app, server := newTestApp(t)
	ph := createPlaceholderHTTP(t, server, map[string]any{"slot": "content"})

	sub := app.Hub().Subscribe()
	defer sub.Close()

	plugin := addPluginHTTP(t, server, map[string]any{
		"placeholder_id": ph.ID, "language": "en", "plugin_type": "text",
	})

	select {
	case event := <-sub.C:
		assert.Equal(t, events.PluginAdded, event.Type)
		assert.Equal(t, ph.ID, event.PlaceholderID)
		assert.Equal(t, "en", event.Language)
		require.NotNil(t, event.PluginID)
		assert.Equal(t, plugin.ID, *event.PluginID)
		assert.Equal(t, []models.PluginID{plugin.ID}, event.Order)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received after add")
	}

	resp := doRequest(t, "DELETE", server.URL+"/api/plugins/"+plugin.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	select {
	case event := <-sub.C:
		assert.Equal(t, events.PluginDeleted, event.Type)
		assert.Empty(t, event.Order)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received after delete")
	}
}
