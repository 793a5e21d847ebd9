// Package plugboardtesting provides testing utilities for the plugboard
// engine.
//
// It has two halves. The fixture and assertion helpers ([BuildTree],
// [AssertDense], [AssertSubtreeContiguous]) work directly against a
// [github.com/plugboard/plugboard/pkg/store.Store] and are the backbone
// of the engine's own tests: build a known tree shape, mutate it, then
// assert the position invariants still hold.
//
// [VirtualEditor] works at the other end of the stack, driving a running
// server through [github.com/plugboard/plugboard/pkg/client] with
// deterministic pseudo-random edit sequences. Several editors running
// concurrently against one server make a cheap load and consistency
// test: every editor owns its placeholder, edits it aggressively, and
// verifies the positions stayed dense.
package plugboardtesting

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plugboard/plugboard/pkg/client"
	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/snapshot"
	"github.com/plugboard/plugboard/pkg/store"
)

// N builds a fixture tree node of the given plugin type.
func N(pluginType string, children ...snapshot.Node) snapshot.Node {
	return snapshot.Node{
		Type:     pluginType,
		Payload:  models.JSONMap{"label": pluginType},
		Children: children,
	}
}

// BuildTree replays the nodes into the placeholder's language scope and
// returns the created plugins in insertion (preorder) order.
func BuildTree(tb testing.TB, ctx context.Context, st store.Store, placeholderID models.PlaceholderID, language string, nodes ...snapshot.Node) []*models.Plugin {
	tb.Helper()
	created, err := snapshot.Apply(ctx, st, &snapshot.Snapshot{Language: language, Nodes: nodes}, placeholderID, nil)
	require.NoError(tb, err)
	return created
}

// Positions extracts the position column from plugins, in slice order.
func Positions(plugins []*models.Plugin) []int {
	positions := make([]int, len(plugins))
	for i, plugin := range plugins {
		positions[i] = plugin.Position
	}
	return positions
}

// Types extracts the plugin type column from plugins, in slice order.
func Types(plugins []*models.Plugin) []string {
	types := make([]string, len(plugins))
	for i, plugin := range plugins {
		types[i] = plugin.PluginType
	}
	return types
}

// AssertDense fails the test unless the scope's positions are exactly
// 1..N in query order.
func AssertDense(tb testing.TB, ctx context.Context, st store.Store, placeholderID models.PlaceholderID, language string) []*models.Plugin {
	tb.Helper()
	plugins, err := st.Plugins(ctx, placeholderID, language)
	require.NoError(tb, err)
	for i, plugin := range plugins {
		require.Equal(tb, i+1, plugin.Position,
			"position %d of %d is %d, want %d", i+1, len(plugins), plugin.Position, i+1)
	}
	return plugins
}

// AssertSubtreeContiguous fails the test unless the plugin's descendants
// occupy exactly the position block (position, position+count].
func AssertSubtreeContiguous(tb testing.TB, ctx context.Context, st store.Store, pluginID models.PluginID) {
	tb.Helper()
	plugin, err := st.GetPlugin(ctx, pluginID)
	require.NoError(tb, err)
	require.NotNil(tb, plugin)

	descendantIDs, err := st.Descendants(ctx, pluginID)
	require.NoError(tb, err)

	scope, err := st.Plugins(ctx, plugin.PlaceholderID, plugin.Language)
	require.NoError(tb, err)
	positionOf := make(map[models.PluginID]int, len(scope))
	for _, row := range scope {
		positionOf[row.ID] = row.Position
	}

	occupied := make(map[int]bool, len(descendantIDs))
	for _, id := range descendantIDs {
		position, ok := positionOf[id.ID]
		require.True(tb, ok, "descendant %s is outside the scope", id.ID)
		occupied[position] = true
	}
	for offset := 1; offset <= len(descendantIDs); offset++ {
		require.True(tb, occupied[plugin.Position+offset],
			"position %d inside subtree block of %s is not a descendant", plugin.Position+offset, pluginID)
	}
}

// pluginTypePalette is the set of types virtual editors create from.
var pluginTypePalette = []string{"text", "image", "link", "video", "column"}

// VirtualEditor is a stateful simulated editor that performs tree edits
// against a running server through the API client.
//
// Each editor owns one placeholder and edits a single language scope.
// Behavior is deterministic for a given index, so failing sequences can
// be replayed exactly.
type VirtualEditor struct {
	Index    int
	Language string
	Client   *client.Client
	RNG      *rand.Rand

	Placeholder *models.Placeholder

	mu sync.Mutex
}

// NewVirtualEditor creates a virtual editor with a deterministic
// random sequence derived from index.
func NewVirtualEditor(index int, baseURL string) *VirtualEditor {
	c := client.NewClient(baseURL)
	c.SetUser(fmt.Sprintf("editor%d@test.com", index))

	return &VirtualEditor{
		Index:    index,
		Language: "en",
		Client:   c,
		RNG:      rand.New(rand.NewSource(int64(index))),
	}
}

// CreatePlaceholder creates this editor's placeholder and remembers it.
func (ve *VirtualEditor) CreatePlaceholder(ctx context.Context, slot string) (*models.Placeholder, error) {
	created, err := ve.Client.CreatePlaceholder(ctx, &models.Placeholder{
		Slot:       slot,
		SourceType: "virtual_editor",
		SourceID:   fmt.Sprintf("%d", ve.Index),
	})
	if err != nil {
		return nil, fmt.Errorf("virtual editor %d failed to create placeholder: %w", ve.Index, err)
	}

	ve.mu.Lock()
	ve.Placeholder = created
	ve.mu.Unlock()

	return created, nil
}

// AddRandomPlugin inserts a plugin of a random type at a random valid
// position, sometimes nested under an existing plugin.
func (ve *VirtualEditor) AddRandomPlugin(ctx context.Context) (*models.Plugin, error) {
	existing, err := ve.Client.ListPlugins(ctx, ve.Placeholder.ID, ve.Language)
	if err != nil {
		return nil, fmt.Errorf("virtual editor %d failed to list plugins: %w", ve.Index, err)
	}

	plugin := &models.Plugin{
		PlaceholderID: ve.Placeholder.ID,
		Language:      ve.Language,
		PluginType:    pluginTypePalette[ve.RNG.Intn(len(pluginTypePalette))],
		Payload:       models.JSONMap{"editor": ve.Index},
	}
	// Position 0 appends; otherwise insert somewhere inside the scope.
	if len(existing) > 0 && ve.RNG.Intn(2) == 0 {
		plugin.Position = 1 + ve.RNG.Intn(len(existing)+1)
	}
	if len(existing) > 0 && ve.RNG.Intn(3) == 0 {
		parent := existing[ve.RNG.Intn(len(existing))]
		plugin.ParentID = &parent.ID
		plugin.Position = 0
	}

	created, err := ve.Client.AddPlugin(ctx, plugin)
	if err != nil {
		return nil, fmt.Errorf("virtual editor %d failed to add plugin: %w", ve.Index, err)
	}
	return created, nil
}

// MoveRandomPlugin moves a random root-level plugin to a random
// position inside the scope.
func (ve *VirtualEditor) MoveRandomPlugin(ctx context.Context) error {
	existing, err := ve.Client.ListPlugins(ctx, ve.Placeholder.ID, ve.Language)
	if err != nil {
		return fmt.Errorf("virtual editor %d failed to list plugins: %w", ve.Index, err)
	}
	var roots []*models.Plugin
	for _, plugin := range existing {
		if plugin.ParentID == nil {
			roots = append(roots, plugin)
		}
	}
	if len(roots) == 0 {
		return nil
	}

	target := 1 + ve.RNG.Intn(len(existing))
	plugin := roots[ve.RNG.Intn(len(roots))]
	if _, err := ve.Client.MovePlugin(ctx, plugin.ID, nil, target, nil); err != nil {
		return fmt.Errorf("virtual editor %d failed to move plugin: %w", ve.Index, err)
	}
	return nil
}

// DeleteRandomPlugin removes a random plugin together with its subtree.
func (ve *VirtualEditor) DeleteRandomPlugin(ctx context.Context) error {
	existing, err := ve.Client.ListPlugins(ctx, ve.Placeholder.ID, ve.Language)
	if err != nil {
		return fmt.Errorf("virtual editor %d failed to list plugins: %w", ve.Index, err)
	}
	if len(existing) == 0 {
		return nil
	}

	plugin := existing[ve.RNG.Intn(len(existing))]
	if err := ve.Client.DeletePlugin(ctx, plugin.ID); err != nil {
		return fmt.Errorf("virtual editor %d failed to delete plugin: %w", ve.Index, err)
	}
	return nil
}

// VerifyDense re-reads the scope and reports an error unless positions
// are exactly 1..N.
func (ve *VirtualEditor) VerifyDense(ctx context.Context) error {
	plugins, err := ve.Client.ListPlugins(ctx, ve.Placeholder.ID, ve.Language)
	if err != nil {
		return fmt.Errorf("virtual editor %d failed to list plugins: %w", ve.Index, err)
	}
	for i, plugin := range plugins {
		if plugin.Position != i+1 {
			return fmt.Errorf("virtual editor %d found position %d at index %d of %d",
				ve.Index, plugin.Position, i, len(plugins))
		}
	}
	return nil
}

// RunScenario performs a full edit session: create a placeholder, run a
// mixed sequence of adds, moves, and deletes, and verify density at the
// end. Roughly half the operations are adds so the tree grows.
func (ve *VirtualEditor) RunScenario(ctx context.Context, operations int) error {
	if _, err := ve.CreatePlaceholder(ctx, fmt.Sprintf("scenario_%d", ve.Index)); err != nil {
		return err
	}

	for i := 0; i < operations; i++ {
		var err error
		switch ve.RNG.Intn(4) {
		case 0, 1:
			_, err = ve.AddRandomPlugin(ctx)
		case 2:
			err = ve.MoveRandomPlugin(ctx)
		case 3:
			err = ve.DeleteRandomPlugin(ctx)
		}
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}

	return ve.VerifyDense(ctx)
}
