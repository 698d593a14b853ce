package model

import (
	"time"

	"gorm.io/datatypes"
)

// MapRecord is a persisted tile map. Rows holds the glyph encoding of the
// grid (row 0 is y=0) and Costs the terrain name to multiplier table.
type MapRecord struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Name      string         `gorm:"size:64;not null;index:idx_map_name" json:"name"`
	Size      int            `gorm:"not null" json:"size"`
	Seed      uint64         `json:"seed"`
	Rows      datatypes.JSON `gorm:"not null" json:"rows"`
	Costs     datatypes.JSON `json:"costs"`
	Version   int            `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
