package gormstore

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/store"
)

// AddPlugin inserts the plugin at its requested Position.
//
// When the requested position lands inside occupied territory, the whole
// tail from that position onward is first parked beyond the scope's last
// position, the row is inserted into the vacated slot, and a renumber
// pass folds everything back into a dense sequence. A request past the
// end is clamped to an append, so Position behaves as an ordinal rank
// rather than a literal coordinate.
func (s *Store) AddPlugin(ctx context.Context, plugin *models.Plugin) error {
	if plugin.Position < 1 {
		return fmt.Errorf("position %d: %w", plugin.Position, store.ErrInvalidPosition)
	}
	if err := plugin.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePlaceholderTx(tx, plugin.PlaceholderID); err != nil {
			return err
		}
		if plugin.ParentID != nil {
			parent, err := getPluginTx(tx, *plugin.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent plugin %s: %w", plugin.ParentID, store.ErrNotFound)
			}
			if parent.PlaceholderID != plugin.PlaceholderID || parent.Language != plugin.Language {
				return fmt.Errorf("parent plugin %s is outside the target scope: %w", plugin.ParentID, store.ErrInvalidScope)
			}
		}

		last, ok, err := lastPositionTx(tx, plugin.PlaceholderID, plugin.Language, nil)
		if err != nil {
			return err
		}
		if !ok {
			last = 0
		}
		if plugin.Position > last+1 {
			plugin.Position = last + 1
		}

		needsShift := plugin.Position-last < 1
		if needsShift {
			if err := shiftPositions(tx, plugin.PlaceholderID, plugin.Language, plugin.Position, last); err != nil {
				return err
			}
		}
		if err := tx.Create(plugin).Error; err != nil {
			return err
		}
		if needsShift {
			return s.recalculatePositions(tx, plugin.PlaceholderID, plugin.Language)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("plugin", plugin.ID.String()).
		Str("placeholder", plugin.PlaceholderID.String()).
		Int("position", plugin.Position).
		Msg("plugin added")
	return nil
}

// DeletePlugin removes the plugin and its whole subtree, then renumbers
// the scope to close the gap.
func (s *Store) DeletePlugin(ctx context.Context, id models.PluginID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := getPluginTx(tx, id)
		if err != nil {
			return err
		}
		if node == nil {
			return fmt.Errorf("plugin %s: %w", id, store.ErrNotFound)
		}
		descendantIDs, err := s.descendantIDsTx(tx, id)
		if err != nil {
			return err
		}
		if len(descendantIDs) > 0 {
			if err := tx.Delete(&models.Plugin{}, "id IN ?", descendantIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.Plugin{}, "id = ?", id).Error; err != nil {
			return err
		}

		last, err := lastPluginTx(tx, node.PlaceholderID, node.Language)
		if err != nil {
			return err
		}
		if last == nil {
			return nil
		}
		if err := shiftPositions(tx, node.PlaceholderID, node.Language, node.Position, last.Position); err != nil {
			return err
		}
		return s.recalculatePositions(tx, node.PlaceholderID, node.Language)
	})
	if err != nil {
		return err
	}
	s.log.Debug().Str("plugin", id.String()).Msg("plugin deleted")
	return nil
}

// MovePlugin relocates the plugin and its subtree to targetPosition
// within its current placeholder, optionally re-parenting it. A target
// past the scope's end behaves as a move to the last legal slot.
func (s *Store) MovePlugin(ctx context.Context, id models.PluginID, targetPosition int, targetParentID *models.PluginID) error {
	if targetPosition < 1 {
		return fmt.Errorf("target position %d: %w", targetPosition, store.ErrInvalidPosition)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := getPluginTx(tx, id)
		if err != nil {
			return err
		}
		if node == nil {
			return fmt.Errorf("plugin %s: %w", id, store.ErrNotFound)
		}
		descendantIDs, err := s.descendantIDsTx(tx, id)
		if err != nil {
			return err
		}
		if err := validateMoveParentTx(tx, node, descendantIDs, node.PlaceholderID, node.Language, targetParentID); err != nil {
			return err
		}
		return s.movePluginTx(tx, node, len(descendantIDs), targetPosition, targetParentID)
	})
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("plugin", id.String()).
		Int("target_position", targetPosition).
		Msg("plugin moved")
	return nil
}

// movePluginTx is the within-placeholder relocation protocol. The moved
// block is source_range = [node.position, node.position + descendants];
// the scope's last position doubles as the parking offset because it is
// by definition at least as large as any in-scope position, so shifted
// and unshifted regions can never collide.
func (s *Store) movePluginTx(tx *gorm.DB, node *models.Plugin, descendants int, targetPosition int, targetParentID *models.PluginID) error {
	last, err := lastPluginTx(tx, node.PlaceholderID, node.Language)
	if err != nil {
		return err
	}
	sourceLo := node.Position
	sourceHi := node.Position + descendants

	switch {
	case targetPosition < node.Position:
		// Park everything from the target onward, except the moved
		// block, beyond the last position; then drop the block and the
		// untouched head below the parked region. Renumbering restores
		// 1..N with the block starting at the target.
		err = scopeQuery(tx, node.PlaceholderID, node.Language).
			Where("position >= ?", targetPosition).
			Not("position BETWEEN ? AND ?", sourceLo, sourceHi).
			UpdateColumn("position", gorm.Expr("position + ?", last.Position)).Error
		if err != nil {
			return err
		}
		err = scopeQuery(tx, node.PlaceholderID, node.Language).
			Where("position <= ?", sourceHi).
			UpdateColumn("position", gorm.Expr("position - ?", last.Position)).Error
		if err != nil {
			return err
		}
	case targetPosition > node.Position:
		// Mirror image: drop everything up to the target's right edge,
		// except the moved block, below the scope; then raise the block
		// and the untouched tail above it.
		err = scopeQuery(tx, node.PlaceholderID, node.Language).
			Where("position <= ?", targetPosition+descendants).
			Not("position BETWEEN ? AND ?", sourceLo, sourceHi).
			UpdateColumn("position", gorm.Expr("position - ?", last.Position)).Error
		if err != nil {
			return err
		}
		err = scopeQuery(tx, node.PlaceholderID, node.Language).
			Where("position >= ?", node.Position).
			UpdateColumn("position", gorm.Expr("position + ?", last.Position)).Error
		if err != nil {
			return err
		}
	}

	if !sameParent(node.ParentID, targetParentID) {
		err = tx.Model(&models.Plugin{}).Where("id = ?", node.ID).
			UpdateColumn("parent_id", targetParentID).Error
		if err != nil {
			return err
		}
	}
	return s.recalculatePositions(tx, node.PlaceholderID, node.Language)
}

// MovePluginToPlaceholder relocates the plugin and its subtree into
// another placeholder at targetPosition, optionally under a parent
// there. The language scope stays the one the plugin already has.
//
// Both scopes park their affected rows in disjoint ranges before any row
// changes placeholder: the source offset clears the block past the
// target's occupied range, and the target offset pushes the target's
// tail past the parked block. When the projected ranges would overlap,
// the offsets are inflated by the overlap plus one, so head, arriving
// block and shifted tail always sort in that order.
func (s *Store) MovePluginToPlaceholder(ctx context.Context, id models.PluginID, targetPlaceholderID models.PlaceholderID, targetPosition int, targetParentID *models.PluginID) error {
	if targetPosition < 1 {
		return fmt.Errorf("target position %d: %w", targetPosition, store.ErrInvalidPosition)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, err := getPluginTx(tx, id)
		if err != nil {
			return err
		}
		if node == nil {
			return fmt.Errorf("plugin %s: %w", id, store.ErrNotFound)
		}
		descendantIDs, err := s.descendantIDsTx(tx, id)
		if err != nil {
			return err
		}

		if node.PlaceholderID == targetPlaceholderID {
			if err := validateMoveParentTx(tx, node, descendantIDs, node.PlaceholderID, node.Language, targetParentID); err != nil {
				return err
			}
			return s.movePluginTx(tx, node, len(descendantIDs), targetPosition, targetParentID)
		}

		if err := requirePlaceholderTx(tx, targetPlaceholderID); err != nil {
			return err
		}
		if err := validateMoveParentTx(tx, node, descendantIDs, targetPlaceholderID, node.Language, targetParentID); err != nil {
			return err
		}

		descendants := len(descendantIDs)
		sourceLast, err := lastPluginTx(tx, node.PlaceholderID, node.Language)
		if err != nil {
			return err
		}
		targetLast, err := lastPluginTx(tx, targetPlaceholderID, node.Language)
		if err != nil {
			return err
		}

		sourceOffset := sourceLast.Position
		if targetLast != nil {
			targetOffset := targetLast.Position
			projectedSourceLast := node.Position + descendants + sourceOffset
			projectedTargetFirst := targetPosition + targetOffset
			targetEdge := targetLast.Position + 1 + descendants
			if projectedSourceLast <= targetEdge {
				diff := targetEdge - projectedSourceLast
				sourceOffset += diff + 1
				projectedSourceLast += diff + 1
			}
			if projectedSourceLast >= projectedTargetFirst {
				targetOffset += projectedSourceLast - projectedTargetFirst + 1
			}
			if err := shiftPositions(tx, targetPlaceholderID, node.Language, targetPosition, targetOffset); err != nil {
				return err
			}
		}
		// The moved block is swept along with the source tail.
		if err := shiftPositions(tx, node.PlaceholderID, node.Language, node.Position, sourceOffset); err != nil {
			return err
		}

		err = tx.Model(&models.Plugin{}).Where("id = ?", node.ID).
			UpdateColumns(map[string]interface{}{
				"placeholder_id": targetPlaceholderID,
				"parent_id":      targetParentID,
			}).Error
		if err != nil {
			return err
		}
		if len(descendantIDs) > 0 {
			err = tx.Model(&models.Plugin{}).Where("id IN ?", descendantIDs).
				UpdateColumn("placeholder_id", targetPlaceholderID).Error
			if err != nil {
				return err
			}
		}

		if err := s.recalculatePositions(tx, node.PlaceholderID, node.Language); err != nil {
			return err
		}
		return s.recalculatePositions(tx, targetPlaceholderID, node.Language)
	})
	if err != nil {
		return err
	}
	s.log.Debug().
		Str("plugin", id.String()).
		Str("target_placeholder", targetPlaceholderID.String()).
		Int("target_position", targetPosition).
		Msg("plugin moved across placeholders")
	return nil
}

// validateMoveParentTx rejects a target parent that is missing, lives in
// a different scope than the move target, or sits inside the moved
// subtree, before any shift is issued.
func validateMoveParentTx(tx *gorm.DB, node *models.Plugin, descendantIDs []models.PluginID, placeholderID models.PlaceholderID, language string, parentID *models.PluginID) error {
	if parentID == nil {
		return nil
	}
	if *parentID == node.ID {
		return fmt.Errorf("plugin %s cannot become its own parent: %w", node.ID, store.ErrInvalidScope)
	}
	for _, descendantID := range descendantIDs {
		if descendantID == *parentID {
			return fmt.Errorf("target parent %s is inside the moved subtree: %w", parentID, store.ErrInvalidScope)
		}
	}
	parent, err := getPluginTx(tx, *parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("target parent %s: %w", parentID, store.ErrNotFound)
	}
	if parent.PlaceholderID != placeholderID || parent.Language != language {
		return fmt.Errorf("target parent %s is outside the target scope: %w", parentID, store.ErrInvalidScope)
	}
	return nil
}

func sameParent(a, b *models.PluginID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CopyPlugins clones the source scope's tree, or only the subtree under
// rootPluginID, into the target placeholder. Clones get fresh ids, keep
// their relative order and hierarchy, and are appended after the
// target's current tail, so the target scope stays dense without a
// renumber pass.
func (s *Store) CopyPlugins(ctx context.Context, sourceID, targetID models.PlaceholderID, language string, rootPluginID *models.PluginID) ([]*models.Plugin, error) {
	var clones []*models.Plugin
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePlaceholderTx(tx, sourceID); err != nil {
			return err
		}
		if err := requirePlaceholderTx(tx, targetID); err != nil {
			return err
		}

		var originals []*models.Plugin
		if rootPluginID != nil {
			root, err := getPluginTx(tx, *rootPluginID)
			if err != nil {
				return err
			}
			if root == nil {
				return fmt.Errorf("plugin %s: %w", rootPluginID, store.ErrNotFound)
			}
			if root.PlaceholderID != sourceID || root.Language != language {
				return fmt.Errorf("plugin %s is outside the source scope: %w", rootPluginID, store.ErrInvalidScope)
			}
			subtree, err := s.descendantsTx(tx, *rootPluginID)
			if err != nil {
				return err
			}
			originals = append([]*models.Plugin{root}, subtree...)
			sort.Slice(originals, func(i, j int) bool {
				return originals[i].Position < originals[j].Position
			})
		} else {
			var err error
			originals, err = pluginsTx(tx, sourceID, language)
			if err != nil {
				return err
			}
		}

		clones = make([]*models.Plugin, 0, len(originals))
		if len(originals) == 0 {
			return nil
		}

		offset := 0
		last, err := lastPluginTx(tx, targetID, language)
		if err != nil {
			return err
		}
		if last != nil {
			offset = last.Position
		}

		// Position order guarantees parents are cloned before their
		// children, so the id map is always complete when needed. A
		// parent outside the copied set (the subtree root's own parent)
		// maps to root level.
		idMap := make(map[models.PluginID]models.PluginID, len(originals))
		for i, original := range originals {
			clone := &models.Plugin{
				ID:            models.NewPluginID(),
				PlaceholderID: targetID,
				Language:      language,
				Position:      offset + i + 1,
				PluginType:    original.PluginType,
				Payload:       clonePayload(original.Payload),
			}
			if original.ParentID != nil {
				if mapped, ok := idMap[*original.ParentID]; ok {
					mappedID := mapped
					clone.ParentID = &mappedID
				}
			}
			idMap[original.ID] = clone.ID
			clones = append(clones, clone)
		}
		return tx.Create(&clones).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().
		Str("source", sourceID.String()).
		Str("target", targetID.String()).
		Int("count", len(clones)).
		Msg("plugins copied")
	return clones, nil
}

func clonePayload(payload models.JSONMap) models.JSONMap {
	if payload == nil {
		return nil
	}
	clone := make(models.JSONMap, len(payload))
	for key, value := range payload {
		clone[key] = value
	}
	return clone
}
