package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/store"
)

// CreatePlaceholder persists a new placeholder. A zero ID is generated
// by the insert hook.
func (s *Store) CreatePlaceholder(ctx context.Context, placeholder *models.Placeholder) error {
	if err := placeholder.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(placeholder).Error
}

// GetPlaceholder returns the placeholder or (nil, nil) when missing.
func (s *Store) GetPlaceholder(ctx context.Context, id models.PlaceholderID) (*models.Placeholder, error) {
	var placeholder models.Placeholder
	err := s.db.WithContext(ctx).First(&placeholder, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &placeholder, nil
}

// ListPlaceholders returns all placeholders ordered by slot, optionally
// narrowed to one generic source reference when sourceType is non-empty.
func (s *Store) ListPlaceholders(ctx context.Context, sourceType, sourceID string) ([]*models.Placeholder, error) {
	placeholders := []*models.Placeholder{}
	q := s.db.WithContext(ctx).Order("slot")
	if sourceType != "" {
		q = q.Where("source_type = ?", sourceType)
		if sourceID != "" {
			q = q.Where("source_id = ?", sourceID)
		}
	}
	err := q.Find(&placeholders).Error
	return placeholders, err
}

// DeletePlaceholder removes the placeholder and every plugin it owns, in
// all languages.
func (s *Store) DeletePlaceholder(ctx context.Context, id models.PlaceholderID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePlaceholderTx(tx, id); err != nil {
			return err
		}
		if err := tx.Where("placeholder_id = ?", id).Delete(&models.Plugin{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Placeholder{}, "id = ?", id).Error
	})
}

// ClearPlaceholder deletes every plugin in the given language scope, or
// in all languages when language is empty. The placeholder row stays.
// Nothing needs renumbering because affected scopes are emptied whole.
func (s *Store) ClearPlaceholder(ctx context.Context, id models.PlaceholderID, language string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePlaceholderTx(tx, id); err != nil {
			return err
		}
		q := tx.Where("placeholder_id = ?", id)
		if language != "" {
			q = q.Where("language = ?", language)
		}
		return q.Delete(&models.Plugin{}).Error
	})
}

func requirePlaceholderTx(tx *gorm.DB, id models.PlaceholderID) error {
	var count int64
	if err := tx.Model(&models.Placeholder{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("placeholder %s: %w", id, store.ErrNotFound)
	}
	return nil
}
