package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/store"
)

// scopeQuery narrows a query to one (placeholder, language) scope, the
// unit every position rule is defined over.
func scopeQuery(tx *gorm.DB, placeholderID models.PlaceholderID, language string) *gorm.DB {
	return tx.Model(&models.Plugin{}).
		Where("placeholder_id = ? AND language = ?", placeholderID, language)
}

// parentFilter restricts a scope query to one parent's direct children.
// A nil parent selects root-level plugins.
func parentFilter(q *gorm.DB, parentID *models.PluginID) *gorm.DB {
	if parentID == nil {
		return q.Where("parent_id IS NULL")
	}
	return q.Where("parent_id = ?", *parentID)
}

// GetPlugin returns the plugin or (nil, nil) when missing.
func (s *Store) GetPlugin(ctx context.Context, id models.PluginID) (*models.Plugin, error) {
	return getPluginTx(s.db.WithContext(ctx), id)
}

func getPluginTx(tx *gorm.DB, id models.PluginID) (*models.Plugin, error) {
	var plugin models.Plugin
	err := tx.First(&plugin, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plugin, nil
}

// Plugins returns every plugin in the scope ordered by position.
func (s *Store) Plugins(ctx context.Context, placeholderID models.PlaceholderID, language string) ([]*models.Plugin, error) {
	return pluginsTx(s.db.WithContext(ctx), placeholderID, language)
}

func pluginsTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string) ([]*models.Plugin, error) {
	plugins := []*models.Plugin{}
	err := scopeQuery(tx, placeholderID, language).Order("position").Find(&plugins).Error
	return plugins, err
}

// ChildPlugins returns the scope's plugins under exactly the given parent,
// ordered by position. A nil parent selects root-level plugins.
func (s *Store) ChildPlugins(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) ([]*models.Plugin, error) {
	plugins := []*models.Plugin{}
	q := parentFilter(scopeQuery(s.db.WithContext(ctx), placeholderID, language), parentID)
	err := q.Order("position").Find(&plugins).Error
	return plugins, err
}

// FirstPosition returns the smallest position in the scope. A non-nil
// parentID restricts the lookup to that parent's direct children; nil
// means the whole scope. The bool is false when the inspected set is
// empty.
func (s *Store) FirstPosition(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) (int, bool, error) {
	return firstPositionTx(s.db.WithContext(ctx), placeholderID, language, parentID)
}

// LastPosition is the mirror of FirstPosition for the largest position.
func (s *Store) LastPosition(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) (int, bool, error) {
	return lastPositionTx(s.db.WithContext(ctx), placeholderID, language, parentID)
}

func firstPositionTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) (int, bool, error) {
	return edgePositionTx(tx, placeholderID, language, parentID, "position")
}

func lastPositionTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) (int, bool, error) {
	return edgePositionTx(tx, placeholderID, language, parentID, "position DESC")
}

func edgePositionTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string, parentID *models.PluginID, order string) (int, bool, error) {
	q := scopeQuery(tx, placeholderID, language)
	if parentID != nil {
		q = q.Where("parent_id = ?", *parentID)
	}
	var positions []int
	if err := q.Order(order).Limit(1).Pluck("position", &positions).Error; err != nil {
		return 0, false, err
	}
	if len(positions) == 0 {
		return 0, false, nil
	}
	return positions[0], true, nil
}

// lastPluginTx returns the scope's highest-positioned plugin, or nil for
// an empty scope.
func lastPluginTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string) (*models.Plugin, error) {
	var plugin models.Plugin
	err := scopeQuery(tx, placeholderID, language).Order("position DESC").Take(&plugin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plugin, nil
}

// NextPosition computes the position a new plugin should request so that
// it lands first or last among the given parent's children (root-level
// when parentID is nil).
//
// For InsertLast under a parent the returned position sits after the last
// child's whole subtree, not merely after the last child, so the insert
// cannot split a sibling's descendant range.
func (s *Store) NextPosition(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID, order models.InsertOrder) (int, error) {
	var position int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		position, err = s.nextPositionTx(tx, placeholderID, language, parentID, order)
		return err
	})
	return position, err
}

func (s *Store) nextPositionTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string, parentID *models.PluginID, order models.InsertOrder) (int, error) {
	var parent *models.Plugin
	if parentID != nil {
		var err error
		parent, err = getPluginTx(tx, *parentID)
		if err != nil {
			return 0, err
		}
		if parent == nil {
			return 0, fmt.Errorf("parent plugin %s: %w", parentID, store.ErrNotFound)
		}
		if parent.PlaceholderID != placeholderID || parent.Language != language {
			return 0, fmt.Errorf("parent plugin %s is outside the target scope: %w", parentID, store.ErrInvalidScope)
		}
	}

	if order == models.InsertFirst {
		position, ok, err := firstPositionTx(tx, placeholderID, language, parentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			if parent != nil {
				return parent.Position + 1, nil
			}
			return 1, nil
		}
		return position, nil
	}

	if parent == nil {
		position, ok, err := lastPositionTx(tx, placeholderID, language, nil)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 1, nil
		}
		return position + 1, nil
	}

	lastChild, err := lastChildTx(tx, placeholderID, language, *parentID)
	if err != nil {
		return 0, err
	}
	if lastChild == nil {
		return parent.Position + 1, nil
	}
	descendants, err := s.descendantIDsTx(tx, lastChild.ID)
	if err != nil {
		return 0, err
	}
	return lastChild.Position + len(descendants) + 1, nil
}

func lastChildTx(tx *gorm.DB, placeholderID models.PlaceholderID, language string, parentID models.PluginID) (*models.Plugin, error) {
	var plugin models.Plugin
	err := scopeQuery(tx, placeholderID, language).
		Where("parent_id = ?", parentID).
		Order("position DESC").
		Take(&plugin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plugin, nil
}

// DescendantCount returns the number of transitive descendants of the
// plugin.
func (s *Store) DescendantCount(ctx context.Context, id models.PluginID) (int, error) {
	tx := s.db.WithContext(ctx)
	if err := requirePluginTx(tx, id); err != nil {
		return 0, err
	}
	ids, err := s.descendantIDsTx(tx, id)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Descendants returns the full descendant set of the plugin in no
// particular order.
func (s *Store) Descendants(ctx context.Context, id models.PluginID) ([]*models.Plugin, error) {
	tx := s.db.WithContext(ctx)
	if err := requirePluginTx(tx, id); err != nil {
		return nil, err
	}
	return s.descendantsTx(tx, id)
}

func requirePluginTx(tx *gorm.DB, id models.PluginID) error {
	var count int64
	if err := tx.Model(&models.Plugin{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("plugin %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) descendantsTx(tx *gorm.DB, id models.PluginID) ([]*models.Plugin, error) {
	ids, err := s.descendantIDsTx(tx, id)
	if err != nil {
		return nil, err
	}
	plugins := []*models.Plugin{}
	if len(ids) == 0 {
		return plugins, nil
	}
	err = tx.Find(&plugins, "id IN ?", ids).Error
	return plugins, err
}

// descendantIDsTx collects the ids of every transitive descendant, using
// a recursive CTE when the backend has one and frontier expansion when it
// does not.
func (s *Store) descendantIDsTx(tx *gorm.DB, id models.PluginID) ([]models.PluginID, error) {
	if s.caps.RecursiveCTE {
		return descendantIDsByCTE(tx, id)
	}
	return descendantIDsByFrontier(tx, id)
}

func descendantIDsByCTE(tx *gorm.DB, id models.PluginID) ([]models.PluginID, error) {
	const query = `
WITH RECURSIVE subtree AS (
	SELECT id FROM plugins WHERE parent_id = ?
	UNION ALL
	SELECT p.id FROM plugins p INNER JOIN subtree s ON p.parent_id = s.id
)
SELECT id FROM subtree`

	var raw []string
	if err := tx.Raw(query, id).Scan(&raw).Error; err != nil {
		return nil, err
	}
	return parsePluginIDs(raw)
}

func descendantIDsByFrontier(tx *gorm.DB, id models.PluginID) ([]models.PluginID, error) {
	var all []models.PluginID
	frontier := []models.PluginID{id}
	for len(frontier) > 0 {
		var raw []string
		err := tx.Model(&models.Plugin{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &raw).Error
		if err != nil {
			return nil, err
		}
		next, err := parsePluginIDs(raw)
		if err != nil {
			return nil, err
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

func parsePluginIDs(raw []string) ([]models.PluginID, error) {
	ids := make([]models.PluginID, 0, len(raw))
	for _, r := range raw {
		id, err := models.ParsePluginID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TreeOrder returns the ids of the parent's children ordered by position;
// nil parent selects root-level plugins.
func (s *Store) TreeOrder(ctx context.Context, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) ([]models.PluginID, error) {
	var raw []string
	q := parentFilter(scopeQuery(s.db.WithContext(ctx), placeholderID, language), parentID)
	if err := q.Order("position").Pluck("id", &raw).Error; err != nil {
		return nil, err
	}
	return parsePluginIDs(raw)
}

// FilledLanguages returns the languages that have at least one plugin in
// the placeholder, sorted.
func (s *Store) FilledLanguages(ctx context.Context, placeholderID models.PlaceholderID) ([]string, error) {
	languages := []string{}
	err := s.db.WithContext(ctx).Model(&models.Plugin{}).
		Where("placeholder_id = ?", placeholderID).
		Distinct("language").
		Order("language").
		Pluck("language", &languages).Error
	return languages, err
}

// HasPlugins reports whether the scope contains any plugin.
func (s *Store) HasPlugins(ctx context.Context, placeholderID models.PlaceholderID, language string) (bool, error) {
	var count int64
	err := scopeQuery(s.db.WithContext(ctx), placeholderID, language).Count(&count).Error
	return count > 0, err
}

// DistinctPluginTypes returns the distinct plugin types present in the
// given language scopes (all languages when the slice is empty), sorted.
func (s *Store) DistinctPluginTypes(ctx context.Context, placeholderID models.PlaceholderID, languages []string) ([]string, error) {
	q := s.db.WithContext(ctx).Model(&models.Plugin{}).
		Where("placeholder_id = ?", placeholderID)
	if len(languages) > 0 {
		q = q.Where("language IN ?", languages)
	}
	types := []string{}
	err := q.Distinct("plugin_type").Order("plugin_type").Pluck("plugin_type", &types).Error
	return types, err
}
