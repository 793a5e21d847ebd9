// Package plugboard is a content placement engine: named placeholder
// slots that own ordered, nested trees of content plugins, one tree per
// language, persisted in a relational database with gap-free positions.
//
// The engine is the storage and mutation core a CMS needs to let editors
// arrange content: insert a plugin at any position, move it (with its
// whole subtree) within or across placeholders, delete it, copy a tree
// between placeholders, and export or import trees as snapshots, while
// every (placeholder, language) scope keeps positions numbered exactly
// 1..N in render order at all times.
//
// # Features
//
//   - Dense positions: every mutation goes through a shift-then-renumber
//     protocol so a scope's positions are always exactly 1..N
//   - Subtree contiguity: a plugin's descendants always occupy the
//     position block directly after it, so trees render by position alone
//   - Multi-language scopes: one placeholder holds an independent plugin
//     tree per language
//   - Pluggable storage: the [github.com/plugboard/plugboard/pkg/store.Store]
//     interface with a GORM implementation covering PostgreSQL and SQLite,
//     choosing renumber strategy by database capability
//   - Plugin type registry with rendering metadata, cache policy, and
//     cache-vary aggregation
//   - Host-delegated permissions: the engine asks a
//     [github.com/plugboard/plugboard/pkg/permissions.Checker] before
//     every write, the host decides
//   - RESTful API over gorilla/mux plus a websocket watch endpoint that
//     streams tree-change events
//   - CBOR snapshots for export, import, and placeholder duplication
//
// # Architecture Overview
//
// The application follows a layered design:
//
//   - Domain entities and typed IDs live in
//     [github.com/plugboard/plugboard/pkg/models]
//   - Persistence is abstracted behind
//     [github.com/plugboard/plugboard/pkg/store.Store], implemented by
//     [github.com/plugboard/plugboard/pkg/store/gormstore]
//   - The HTTP service in [github.com/plugboard/plugboard/pkg/plugboard]
//     wires store, permissions, plugin registry, and event hub together
//     behind a mux router with graceful shutdown
//   - [github.com/plugboard/plugboard/pkg/client] gives programmatic
//     access to the full API, including the websocket watch stream
//
// # Data Model
//
// A Placeholder names a slot ("content", "sidebar") and optionally the
// source object it is attached to. A Plugin is one content element in a
// placeholder: it has a language, an optional parent plugin, a position,
// a plugin type, and a free-form payload. Position is absolute within
// the (placeholder, language) scope, not sibling-relative: children sit
// directly after their parent, so ORDER BY position is a preorder
// traversal of the forest.
//
// # Getting Started
//
// For command-line usage and server configuration, see
// [github.com/plugboard/plugboard/pkg/plugboard]. The server runs
// against SQLite out of the box:
//
//	plugboard -db sqlite://plugboard.db serve
//
// # Testing
//
// The end-to-end smoke test in this directory drives a server with
// concurrent virtual editors from
// [github.com/plugboard/plugboard/pkg/plugboardtesting] and verifies
// position density under load. Run it with the smoke build tag.
package plugboard
