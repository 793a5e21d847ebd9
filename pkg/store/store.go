// Package store defines the persistence seam for the placeholder content
// engine: the [Store] interface every caller goes through, and the sentinel
// errors those callers branch on.
//
// # Architecture
//
// The [Store] interface is the only surface that reads or writes plugin
// positions. The mutation methods (AddPlugin, DeletePlugin, MovePlugin,
// MovePluginToPlaceholder, CopyPlugins, ClearPlaceholder) each run as one
// atomic unit in the backing database, composing the internal shift and
// renumber operators so that every scope is back to a dense 1..N position
// sequence before the method returns. The query methods are read-only and
// never fail on empty scopes.
//
// The production implementation is
// [github.com/plugboard/plugboard/pkg/store/gormstore.Store], backed by
// PostgreSQL or SQLite through GORM. The two backends differ only in the
// renumbering strategy selected once at open time; results are identical.
//
// # Conventions
//
// Get methods return (nil, nil) for missing records. List methods return
// empty slices, never nil. Every method takes a context and respects its
// cancellation between statements. Mutations validate scope references
// before touching any row: an invalid target parent, a language mismatch,
// or a move under the node's own descendant fails fast with
// [ErrInvalidScope] and leaves the data untouched.
package store

import (
	"context"
	"errors"

	"github.com/plugboard/plugboard/pkg/models"
)

// Sentinel errors returned by Store implementations. Callers match them
// with errors.Is after any amount of wrapping.
var (
	// ErrNotFound reports that a referenced placeholder or plugin does not
	// exist. Get methods do not return it for their primary subject (they
	// return nil, nil); mutations do, because operating on a missing row
	// would otherwise silently do nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidScope reports a scope-reference violation: a parent that
	// belongs to a different placeholder or language, a move target inside
	// the moved subtree, or a cross-placeholder target that does not match
	// the requested language.
	ErrInvalidScope = errors.New("invalid scope reference")

	// ErrInvalidPosition reports a requested position below 1.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrCorruptSequence reports that a renumber pass produced a scope
	// whose positions are not strictly dense. It indicates either outside
	// writes to the position column or a bug, and always aborts the
	// enclosing transaction.
	ErrCorruptSequence = errors.New("corrupt position sequence")
)

// Store is the persistence interface for placeholders and their plugin
// trees.
//
// Position management: the stored position of a plugin is a global rank
// across its whole (placeholder, language) scope, dense 1..N after every
// completed mutation, with each subtree occupying a contiguous range.
// Mutation methods are the only writers of position; no caller may update
// it directly.
type Store interface {
	// CreatePlaceholder persists a new placeholder. A zero ID is generated.
	CreatePlaceholder(ctx context.Context, placeholder *models.Placeholder) error

	// GetPlaceholder returns the placeholder or (nil, nil) when missing.
	GetPlaceholder(ctx context.Context, id models.PlaceholderID) (*models.Placeholder, error)

	// ListPlaceholders returns all placeholders, optionally filtered to one
	// generic source reference when sourceType is non-empty.
	ListPlaceholders(ctx context.Context, sourceType, sourceID string) ([]*models.Placeholder, error)

	// DeletePlaceholder removes the placeholder and every plugin it owns.
	DeletePlaceholder(ctx context.Context, id models.PlaceholderID) error

	// ClearPlaceholder deletes all plugins in the given language scope, or
	// in every language when language is empty. The placeholder row stays.
	ClearPlaceholder(ctx context.Context, id models.PlaceholderID, language string) error

	// GetPlugin returns the plugin or (nil, nil) when missing.
	GetPlugin(ctx context.Context, id models.PluginID) (*models.Plugin, error)

	// Plugins returns every plugin in the scope ordered by position.
	Plugins(ctx context.Context, placeholderID models.PlaceholderID, language string) ([]*models.Plugin, error)

	// ChildPlugins returns the scope's plugins with exactly the given
	// parent, ordered by position. A nil parent selects root-level plugins.
	ChildPlugins(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) ([]*models.Plugin, error)

	// FirstPosition and LastPosition return the smallest respectively
	// largest position in the scope, optionally filtered by parent. The
	// bool is false when the filtered scope is empty.
	FirstPosition(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) (int, bool, error)
	LastPosition(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) (int, bool, error)

	// NextPosition computes the position a new plugin should request to
	// land first or last among the given parent's children (root-level
	// children when parentID is nil).
	NextPosition(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID, order models.InsertOrder) (int, error)

	// DescendantCount returns the number of transitive descendants.
	DescendantCount(ctx context.Context, id models.PluginID) (int, error)

	// Descendants returns the full descendant set of the plugin in no
	// particular order.
	Descendants(ctx context.Context, id models.PluginID) ([]*models.Plugin, error)

	// TreeOrder returns the ids of the parent's children ordered by
	// position; nil parent selects root-level plugins.
	TreeOrder(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) ([]models.PluginID, error)

	// FilledLanguages returns the languages that have at least one plugin
	// in the placeholder, sorted.
	FilledLanguages(ctx context.Context, placeholderID models.PlaceholderID) ([]string, error)

	// HasPlugins reports whether the scope contains any plugin.
	HasPlugins(ctx context.Context, placeholderID models.PlaceholderID, language string) (bool, error)

	// DistinctPluginTypes returns the distinct plugin types present in the
	// given language scopes of the placeholder (all languages when the
	// slice is empty), sorted.
	DistinctPluginTypes(ctx context.Context, placeholderID models.PlaceholderID, languages []string) ([]string, error)

	// AddPlugin inserts the plugin at its requested Position, shifting and
	// renumbering the scope as needed. On return the plugin's Position
	// holds the final stored rank.
	AddPlugin(ctx context.Context, plugin *models.Plugin) error

	// DeletePlugin removes the plugin and its whole subtree, then closes
	// the gap so the scope is dense again.
	DeletePlugin(ctx context.Context, id models.PluginID) error

	// MovePlugin relocates the plugin and its subtree to targetPosition
	// within its current placeholder, optionally re-parenting it to
	// targetParentID (nil moves it to the root level).
	MovePlugin(ctx context.Context, id models.PluginID, targetPosition int, targetParentID *models.PluginID) error

	// MovePluginToPlaceholder relocates the plugin and its subtree into
	// another placeholder at targetPosition, optionally under
	// targetParentID there. Both scopes are dense when it returns.
	MovePluginToPlaceholder(ctx context.Context, id models.PluginID, targetPlaceholderID models.PlaceholderID, targetPosition int, targetParentID *models.PluginID) error

	// CopyPlugins clones the source scope's tree (or only the subtree under
	// rootPluginID when non-nil) into the target placeholder, appended
	// after the target's current tail with fresh ids and preserved
	// structure. It returns the clones in position order.
	CopyPlugins(ctx context.Context, sourceID, targetID models.PlaceholderID, language string, rootPluginID *models.PluginID) ([]*models.Plugin, error)

	// Migrate creates or updates the database schema.
	Migrate(ctx context.Context) error

	// Close releases the underlying database resources.
	Close() error
}
