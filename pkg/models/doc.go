// Package models defines the domain entities for the placeholder content
// engine: named plugin containers and the positioned plugin nodes they own.
//
// # Domain Model
//
//   - [Placeholder]: a named slot (for example "sidebar" or "body") attached
//     to an arbitrary owner through a generic (SourceType, SourceID) pair.
//     Each placeholder owns one forest of plugin nodes per language.
//   - [Plugin]: a positioned, typed content node. Plugins form a forest via
//     ParentID; the type-specific payload is a [JSONMap] the engine never
//     inspects.
//
// # Positions
//
// Plugin.Position is the load-bearing field of the whole module. Within one
// (placeholder, language) scope the stored positions are always a dense
// 1..N sequence after every completed mutation, and a node's descendants
// occupy the contiguous range directly after it. That contiguity means
// "position + descendant count" addresses a whole subtree as a range, which
// is what lets the store relocate subtrees with bulk position arithmetic
// instead of recursive traversal. Only the store's mutation operations may
// write Position.
//
// # Typed IDs
//
// [PlaceholderID] and [PluginID] wrap UUIDs for compile-time safety: the
// compiler rejects a PluginID where a PlaceholderID is expected. Both
// serialize as plain UUID strings in JSON and CBOR and implement
// driver.Valuer / sql.Scanner for GORM.
package models
