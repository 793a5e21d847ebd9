package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// PlaceholderID is a typed ID for placeholders
type PlaceholderID struct {
	uuid uuid.UUID
}

func NewPlaceholderID() PlaceholderID {
	return PlaceholderID{uuid: uuid.New()}
}

func NewPlaceholderIDFromUUID(id uuid.UUID) PlaceholderID {
	return PlaceholderID{uuid: id}
}

func ParsePlaceholderID(s string) (PlaceholderID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PlaceholderID{}, fmt.Errorf("invalid placeholder ID: %w", err)
	}
	return PlaceholderID{uuid: id}, nil
}

func (p PlaceholderID) UUID() uuid.UUID { return p.uuid }
func (p PlaceholderID) String() string  { return p.uuid.String() }
func (p PlaceholderID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PlaceholderID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PlaceholderID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

func (p PlaceholderID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.uuid.String())
}

func (p *PlaceholderID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &p.uuid)
}

func (p PlaceholderID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.uuid.String(), nil
}

func (p *PlaceholderID) Scan(value any) error {
	return scanUUID(value, &p.uuid)
}

func (PlaceholderID) GormDataType() string { return "uuid" }

// PluginID is a typed ID for plugin nodes
type PluginID struct {
	uuid uuid.UUID
}

func NewPluginID() PluginID {
	return PluginID{uuid: uuid.New()}
}

func NewPluginIDFromUUID(id uuid.UUID) PluginID {
	return PluginID{uuid: id}
}

func ParsePluginID(s string) (PluginID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PluginID{}, fmt.Errorf("invalid plugin ID: %w", err)
	}
	return PluginID{uuid: id}, nil
}

func (p PluginID) UUID() uuid.UUID { return p.uuid }
func (p PluginID) String() string  { return p.uuid.String() }
func (p PluginID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PluginID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PluginID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

func (p PluginID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.uuid.String())
}

func (p *PluginID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &p.uuid)
}

func (p PluginID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.uuid.String(), nil
}

func (p *PluginID) Scan(value any) error {
	return scanUUID(value, &p.uuid)
}

func (PluginID) GormDataType() string { return "uuid" }

// Helper functions

// scanUUID is a helper for implementing the sql.Scanner interface for GORM
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID is a helper for unmarshaling a typed ID from its CBOR
// string form.
func unmarshalCBORID(data []byte, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR ID: %w", err)
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid UUID in CBOR ID: %w", err)
	}

	*target = id
	return nil
}
