package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	// MaxSlotLength is the longest allowed placeholder slot name.
	MaxSlotLength = 255
	// MaxLanguageLength is the longest allowed language code.
	MaxLanguageLength = 15
	// MaxPluginTypeLength is the longest allowed plugin type discriminator.
	MaxPluginTypeLength = 50
)

// ErrValidation wraps every field-constraint failure reported by the
// Validate methods, so callers can classify them without matching
// message text.
var ErrValidation = errors.New("validation failed")

// InsertOrder selects where NextPosition places a new plugin relative to
// its siblings.
type InsertOrder string

const (
	InsertFirst InsertOrder = "first"
	InsertLast  InsertOrder = "last"
)

// JSONMap is a flexible key-value map holding the plugin-type-specific
// payload. The position engine never looks inside it: a text plugin might
// carry "body" and "format" fields while a picture plugin carries "url"
// and "caption", and both move through the tree identically. Stored as
// JSONB on PostgreSQL and as serialized text on SQLite, so payloads stay
// queryable where the backend supports it without a table per plugin type.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

// Placeholder is a named slot that owns a forest of plugin nodes per
// language. It may be attached to an arbitrary owner through the generic
// (SourceType, SourceID) pair, declared static when a template shares it
// across many containers, and marked non-editable for render-only slots.
type Placeholder struct {
	ID           PlaceholderID `gorm:"type:uuid;primary_key" json:"id"`
	Slot         string        `gorm:"size:255;not null;index" json:"slot"`
	DefaultWidth *int          `json:"default_width,omitempty"`
	SourceType   string        `gorm:"size:100" json:"source_type,omitempty"`
	SourceID     string        `gorm:"size:100" json:"source_id,omitempty"`
	Static       bool          `json:"static"`
	Editable     bool          `gorm:"not null" json:"editable"`
	CacheEnabled bool          `gorm:"not null" json:"cache_enabled"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (Placeholder) TableName() string { return "placeholders" }

// BeforeCreate hook to generate ID if not set
func (p *Placeholder) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPlaceholderID()
	}
	return nil
}

// Validate checks the field constraints that hold regardless of storage.
func (p *Placeholder) Validate() error {
	if p.Slot == "" {
		return fmt.Errorf("placeholder slot must not be empty: %w", ErrValidation)
	}
	if len(p.Slot) > MaxSlotLength {
		return fmt.Errorf("placeholder slot exceeds %d characters: %w", MaxSlotLength, ErrValidation)
	}
	if p.DefaultWidth != nil && *p.DefaultWidth < 0 {
		return fmt.Errorf("placeholder default width must not be negative: %w", ErrValidation)
	}
	return nil
}

// Plugin is a positioned content node. Position is 1-based and dense
// within the (placeholder, language) scope, and a node's descendants
// always occupy the contiguous position range directly after it, so
// Position plus the descendant count addresses the whole subtree without
// walking parent links.
type Plugin struct {
	ID            PluginID      `gorm:"type:uuid;primary_key" json:"id"`
	PlaceholderID PlaceholderID `gorm:"type:uuid;not null;index:idx_plugin_scope,priority:1" json:"placeholder_id"`
	Placeholder   *Placeholder  `gorm:"foreignKey:PlaceholderID" json:"placeholder,omitempty"`
	Language      string        `gorm:"size:15;not null;index:idx_plugin_scope,priority:2" json:"language"`
	ParentID      *PluginID     `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent        *Plugin       `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Position      int           `gorm:"not null;index:idx_plugin_scope,priority:3" json:"position"`
	PluginType    string        `gorm:"size:50;not null" json:"plugin_type"`
	Payload       JSONMap       `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Plugin) TableName() string { return "plugins" }

// BeforeCreate hook to generate ID if not set
func (p *Plugin) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPluginID()
	}
	return nil
}

// Validate checks the field constraints that hold regardless of storage.
// Scope-level checks, such as the parent belonging to the same placeholder,
// live in the store because they need a lookup.
func (p *Plugin) Validate() error {
	if p.PlaceholderID.IsZero() {
		return fmt.Errorf("plugin placeholder ID must be set: %w", ErrValidation)
	}
	if p.Language == "" {
		return fmt.Errorf("plugin language must not be empty: %w", ErrValidation)
	}
	if len(p.Language) > MaxLanguageLength {
		return fmt.Errorf("plugin language exceeds %d characters: %w", MaxLanguageLength, ErrValidation)
	}
	if p.PluginType == "" {
		return fmt.Errorf("plugin type must not be empty: %w", ErrValidation)
	}
	if len(p.PluginType) > MaxPluginTypeLength {
		return fmt.Errorf("plugin type exceeds %d characters: %w", MaxPluginTypeLength, ErrValidation)
	}
	if p.Position < 1 {
		return fmt.Errorf("plugin position must be 1 or greater, got %d: %w", p.Position, ErrValidation)
	}
	return nil
}
