// Package snapshot serializes a placeholder's plugin tree to a compact,
// id-free form and replays it into another placeholder. It is the
// export/import and duplicate surface of the engine: positions are
// implicit in node order, hierarchy is nesting, and every write goes
// through the store's mutation surface so the position invariants hold
// at each step.
//
// Snapshots travel as CBOR (the codec the data layer already speaks),
// via [Encode] and [Decode].
package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/store"
)

// Node is one plugin in a snapshot. Children appear in position order.
type Node struct {
	Type     string         `json:"type"`
	Payload  models.JSONMap `json:"payload,omitempty"`
	Children []Node         `json:"children,omitempty"`
}

// Snapshot is a placeholder's plugin tree for one language.
type Snapshot struct {
	Slot     string `json:"slot"`
	Language string `json:"language"`
	Nodes    []Node `json:"nodes"`
}

// Types returns the distinct plugin types in the snapshot, sorted. Used
// for permission checks before an import.
func (s *Snapshot) Types() []string {
	seen := make(map[string]struct{})
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, node := range nodes {
			seen[node.Type] = struct{}{}
			walk(node.Children)
		}
	}
	walk(s.Nodes)

	types := make([]string, 0, len(seen))
	for pluginType := range seen {
		types = append(types, pluginType)
	}
	sort.Strings(types)
	return types
}

// Encode serializes the snapshot to CBOR.
func Encode(snap *Snapshot) ([]byte, error) {
	return cbor.Marshal(snap)
}

// Decode parses a CBOR snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// Take captures the placeholder's tree for one language, or only the
// subtree under rootID when non-nil.
func Take(ctx context.Context, st store.Store, placeholderID models.PlaceholderID, language string, rootID *models.PluginID) (*Snapshot, error) {
	placeholder, err := st.GetPlaceholder(ctx, placeholderID)
	if err != nil {
		return nil, err
	}
	if placeholder == nil {
		return nil, fmt.Errorf("placeholder %s: %w", placeholderID, store.ErrNotFound)
	}

	rows, err := st.Plugins(ctx, placeholderID, language)
	if err != nil {
		return nil, err
	}

	childrenOf := make(map[models.PluginID][]*models.Plugin)
	var roots []*models.Plugin
	for _, row := range rows {
		if row.ParentID == nil {
			roots = append(roots, row)
		} else {
			childrenOf[*row.ParentID] = append(childrenOf[*row.ParentID], row)
		}
	}

	var build func(row *models.Plugin) Node
	build = func(row *models.Plugin) Node {
		node := Node{Type: row.PluginType, Payload: row.Payload}
		for _, child := range childrenOf[row.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	snap := &Snapshot{Slot: placeholder.Slot, Language: language, Nodes: []Node{}}
	if rootID != nil {
		root, err := st.GetPlugin(ctx, *rootID)
		if err != nil {
			return nil, err
		}
		if root == nil {
			return nil, fmt.Errorf("plugin %s: %w", rootID, store.ErrNotFound)
		}
		if root.PlaceholderID != placeholderID || root.Language != language {
			return nil, fmt.Errorf("plugin %s is outside the source scope: %w", rootID, store.ErrInvalidScope)
		}
		snap.Nodes = append(snap.Nodes, build(root))
		return snap, nil
	}
	for _, root := range roots {
		snap.Nodes = append(snap.Nodes, build(root))
	}
	return snap, nil
}

// Apply replays the snapshot into the target placeholder, appending each
// top-level node after the current tail of the snapshot's language scope
// (under parentID when non-nil). Each node is one AddPlugin call, so a
// failure partway leaves the nodes created so far in place; the returned
// slice always reports exactly what was created, in insertion order.
func Apply(ctx context.Context, st store.Store, snap *Snapshot, targetID models.PlaceholderID, parentID *models.PluginID) ([]*models.Plugin, error) {
	placeholder, err := st.GetPlaceholder(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if placeholder == nil {
		return nil, fmt.Errorf("placeholder %s: %w", targetID, store.ErrNotFound)
	}

	created := []*models.Plugin{}
	var apply func(node Node, parent *models.PluginID) error
	apply = func(node Node, parent *models.PluginID) error {
		position, err := st.NextPosition(ctx, targetID, snap.Language, parent, models.InsertLast)
		if err != nil {
			return err
		}
		plugin := &models.Plugin{
			PlaceholderID: targetID,
			Language:      snap.Language,
			ParentID:      parent,
			Position:      position,
			PluginType:    node.Type,
			Payload:       node.Payload,
		}
		if err := st.AddPlugin(ctx, plugin); err != nil {
			return err
		}
		created = append(created, plugin)
		for _, child := range node.Children {
			if err := apply(child, &plugin.ID); err != nil {
				return err
			}
		}
		return nil
	}
	for _, node := range snap.Nodes {
		if err := apply(node, parentID); err != nil {
			return created, err
		}
	}
	return created, nil
}
