// Package pkg contains all the sub-packages for the plugboard engine.
//
// The sub-packages are organized in focused, single-purpose layers that
// together provide placeholder management, gap-free plugin positioning,
// tree mutation, snapshot transfer, and the HTTP service around them.
//
// # Application Layer
//
// [github.com/plugboard/plugboard/pkg/plugboard] - Core application
// logic: command parsing, the HTTP handlers, the websocket watch
// endpoint, and graceful server lifecycle. Use this package when adding
// commands or extending the API surface.
//
// # Domain Layer
//
// [github.com/plugboard/plugboard/pkg/models] - Domain entities, typed
// IDs, and validation rules for placeholders and plugins. Use this
// package when working with the data model.
//
// [github.com/plugboard/plugboard/pkg/plugins] - Per-plugin-type hooks
// and the registry that aggregates cache expiration and vary headers
// across a placeholder's content. Use this package to give a plugin
// type cache behavior.
//
// [github.com/plugboard/plugboard/pkg/permissions] - The permission
// delegation seam: the engine asks a host-supplied checker before every
// write. Use this package to enforce your application's access rules.
//
// # Infrastructure Layer
//
// [github.com/plugboard/plugboard/pkg/store] - Persistence abstraction.
// The Store interface is the engine's entire mutation and query
// surface; position invariants are its contract.
//
// [github.com/plugboard/plugboard/pkg/store/gormstore] - GORM
// implementation of the store for PostgreSQL and SQLite, including the
// capability probe that picks the renumber strategy per database.
//
// [github.com/plugboard/plugboard/pkg/snapshot] - Id-free tree
// serialization over CBOR, used for export, import, and copying
// between placeholders.
//
// [github.com/plugboard/plugboard/pkg/events] - In-process publish/
// subscribe hub carrying tree-change events to watch subscribers.
//
// [github.com/plugboard/plugboard/pkg/logger] - zerolog logger
// construction shared by the server and tests.
//
// # Integration Layer
//
// [github.com/plugboard/plugboard/pkg/client] - Typed HTTP client for
// the full API including the websocket watch stream. Use this package
// when building integrations or test tooling.
//
// [github.com/plugboard/plugboard/pkg/plugboardtesting] - Test fixtures,
// position-invariant assertions, and virtual editors for load-style
// scenario tests.
//
// # Package Dependencies
//
// The packages follow these dependency relationships:
//
//	plugboard → store, gormstore, models, plugins, permissions, snapshot, events, logger
//	store → models
//	store/gormstore → store, models
//	permissions → store, models
//	snapshot → store, models
//	events → models
//	plugins → models
//	client → models, snapshot
//	plugboardtesting → client, snapshot, store, models
//
// This keeps the domain and infrastructure layers free of application
// concerns and lets each layer be tested in isolation.
package pkg
