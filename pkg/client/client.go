// Package client is a typed Go client for the plugboard REST API.
//
// It mirrors the server's endpoint structure with one method per
// operation, using the same [github.com/plugboard/plugboard/pkg/models]
// entities on both sides of the wire. Request and response bodies are
// JSON except snapshots, which travel as CBOR exactly as the server
// produces them.
//
// # Identity
//
// The service delegates authorization to its host through a user
// identifier in the X-User header. Set it once with [Client.SetUser];
// every subsequent request carries it. Deployments without permission
// enforcement can leave it empty.
//
// # Usage
//
//	c := client.NewClient("http://localhost:8080")
//	c.SetUser("editor@example.com")
//
//	placeholder, err := c.CreatePlaceholder(ctx, &models.Placeholder{Slot: "content"})
//	if err != nil {
//		return err
//	}
//
//	plugin, err := c.AddPlugin(ctx, &models.Plugin{
//		PlaceholderID: placeholder.ID,
//		Language:      "en",
//		PluginType:    "text",
//		Payload:       models.JSONMap{"body": "hello"},
//	})
//
// All errors include the HTTP status code and response body.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/snapshot"
)

// Client provides typed access to the plugboard REST API. Instances are
// safe for concurrent use once configured.
type Client struct {
	baseURL    string
	httpClient *http.Client
	user       string
}

// NewClient creates an API client for the server at baseURL, which
// should include protocol and host without a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetUser sets the user identifier sent with every request.
func (c *Client) SetUser(user string) {
	c.user = user
}

// doRequest performs an HTTP request with proper headers
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("X-User", c.user)
	}

	return c.httpClient.Do(req)
}

// decodeResponse decodes the JSON response into the target struct
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks the health status of the server
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Placeholder management

// CreatePlaceholder creates a new placeholder
func (c *Client) CreatePlaceholder(ctx context.Context, placeholder *models.Placeholder) (*models.Placeholder, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/placeholders", placeholder)
	if err != nil {
		return nil, err
	}

	var result models.Placeholder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetPlaceholder retrieves a placeholder by ID
func (c *Client) GetPlaceholder(ctx context.Context, id models.PlaceholderID) (*models.Placeholder, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/placeholders/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Placeholder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListPlaceholders lists placeholders, optionally filtered by the
// source they are attached to.
func (c *Client) ListPlaceholders(ctx context.Context, sourceType, sourceID string) ([]*models.Placeholder, error) {
	query := url.Values{}
	if sourceType != "" {
		query.Set("source_type", sourceType)
	}
	if sourceID != "" {
		query.Set("source_id", sourceID)
	}
	path := "/api/placeholders"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Placeholder
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// DeletePlaceholder deletes a placeholder and all its plugins
func (c *Client) DeletePlaceholder(ctx context.Context, id models.PlaceholderID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/placeholders/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ClearPlaceholder removes every plugin in one language scope, or in
// all of them when language is empty.
func (c *Client) ClearPlaceholder(ctx context.Context, id models.PlaceholderID, language string) error {
	path := fmt.Sprintf("/api/placeholders/%s/clear", id)
	if language != "" {
		path += "?language=" + url.QueryEscape(language)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListPlugins lists a placeholder's plugins for one language in
// position order.
func (c *Client) ListPlugins(ctx context.Context, id models.PlaceholderID, language string) ([]*models.Plugin, error) {
	path := fmt.Sprintf("/api/placeholders/%s/plugins?language=%s", id, url.QueryEscape(language))
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Plugin
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// FilledLanguages lists the languages that have at least one plugin in
// the placeholder.
func (c *Client) FilledLanguages(ctx context.Context, id models.PlaceholderID) ([]string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/placeholders/%s/languages", id), nil)
	if err != nil {
		return nil, err
	}

	var result []string
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// CopyPlugins copies one language's tree (or only the subtree under
// rootPluginID) into the target placeholder, returning the clones.
func (c *Client) CopyPlugins(ctx context.Context, sourceID, targetID models.PlaceholderID, language string, rootPluginID *models.PluginID) ([]*models.Plugin, error) {
	req := struct {
		TargetPlaceholderID models.PlaceholderID `json:"target_placeholder_id"`
		Language            string               `json:"language"`
		RootPluginID        *models.PluginID     `json:"root_plugin_id,omitempty"`
	}{
		TargetPlaceholderID: targetID,
		Language:            language,
		RootPluginID:        rootPluginID,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/placeholders/%s/copy", sourceID), req)
	if err != nil {
		return nil, err
	}

	var result []*models.Plugin
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Snapshot transfer

// ExportSnapshot downloads one language's tree as a snapshot.
func (c *Client) ExportSnapshot(ctx context.Context, id models.PlaceholderID, language string, rootPluginID *models.PluginID) (*snapshot.Snapshot, error) {
	query := url.Values{}
	query.Set("language", language)
	if rootPluginID != nil {
		query.Set("root_plugin_id", rootPluginID.String())
	}
	path := fmt.Sprintf("/api/placeholders/%s/export?%s", id, query.Encode())

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}
	return snapshot.Decode(data)
}

// ImportSnapshot replays a snapshot into the placeholder, appending its
// trees after the current content (under parentID when non-nil), and
// returns the created plugins.
func (c *Client) ImportSnapshot(ctx context.Context, id models.PlaceholderID, snap *snapshot.Snapshot, parentID *models.PluginID) ([]*models.Plugin, error) {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := fmt.Sprintf("/api/placeholders/%s/import", id)
	if parentID != nil {
		path += "?parent_id=" + url.QueryEscape(parentID.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/cbor")
	if c.user != "" {
		req.Header.Set("X-User", c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	var result []*models.Plugin
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Plugin management

// AddPlugin inserts a plugin at its requested position, shifting
// later siblings right. Position 0 appends after the last plugin in
// the scope.
func (c *Client) AddPlugin(ctx context.Context, plugin *models.Plugin) (*models.Plugin, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/plugins", plugin)
	if err != nil {
		return nil, err
	}

	var result models.Plugin
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetPlugin retrieves a plugin by ID
func (c *Client) GetPlugin(ctx context.Context, id models.PluginID) (*models.Plugin, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/plugins/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Plugin
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// DeletePlugin deletes a plugin and its whole subtree
func (c *Client) DeletePlugin(ctx context.Context, id models.PluginID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/plugins/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// MovePlugin moves a plugin (with its subtree) to targetPosition under
// targetParentID within its own placeholder, or into another
// placeholder when targetPlaceholderID is non-nil.
func (c *Client) MovePlugin(ctx context.Context, id models.PluginID, targetPlaceholderID *models.PlaceholderID, targetPosition int, targetParentID *models.PluginID) (*models.Plugin, error) {
	req := struct {
		TargetPlaceholderID *models.PlaceholderID `json:"target_placeholder_id,omitempty"`
		TargetPosition      int                   `json:"target_position"`
		TargetParentID      *models.PluginID      `json:"target_parent_id,omitempty"`
	}{
		TargetPlaceholderID: targetPlaceholderID,
		TargetPosition:      targetPosition,
		TargetParentID:      targetParentID,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/plugins/%s/move", id), req)
	if err != nil {
		return nil, err
	}

	var result models.Plugin
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Watch opens a websocket that streams tree events for the placeholder,
// narrowed to one language when language is non-empty. Read events with
// conn.ReadJSON into an [github.com/plugboard/plugboard/pkg/events.Event];
// close the connection to stop.
func (c *Client) Watch(ctx context.Context, id models.PlaceholderID, language string) (*websocket.Conn, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1)
	path := fmt.Sprintf("%s/api/placeholders/%s/watch", wsURL, id)
	if language != "" {
		path += "?language=" + url.QueryEscape(language)
	}

	header := http.Header{}
	if c.user != "" {
		header.Set("X-User", c.user)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, path, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("watch failed: status=%d, body=%s", resp.StatusCode, string(body))
		}
		return nil, err
	}
	return conn, nil
}
