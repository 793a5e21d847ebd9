package gormstore

import (
	"gorm.io/gorm"

	"github.com/plugboard/plugboard/pkg/models"
)

// shiftPositions adds offset to the position of every plugin in the scope
// whose position is >= start. Offsets may be negative; positions are
// allowed to go negative or collide mid-flight because every mutation
// finishes with a renumber pass that restores the dense 1..N sequence.
//
// The update goes through UpdateColumn so gorm hooks and UpdatedAt stay
// untouched; a shift is bookkeeping, not an edit.
func shiftPositions(tx *gorm.DB, placeholderID models.PlaceholderID, language string, start, offset int) error {
	if offset == 0 {
		return nil
	}
	return scopeQuery(tx, placeholderID, language).
		Where("position >= ?", start).
		UpdateColumn("position", gorm.Expr("position + ?", offset)).Error
}
