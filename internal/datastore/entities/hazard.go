package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hazard represents one disaster event.
type Hazard struct {
	ID   uint   `gorm:"primaryKey"`
	UUID string `gorm:"type:varchar(36);not null;uniqueIndex"`

	// Natural key columns
	OccurAt  int64  `gorm:"not null;index:idx_hazard_natural_key,priority:1;index:idx_hazard_cursor,priority:3"`
	Incident string `gorm:"type:varchar(255);not null;index:idx_hazard_natural_key,priority:2"`
	Classify string `gorm:"type:varchar(3);not null;default:'999';index:idx_hazard_natural_key,priority:3;index:idx_hazard_cursor,priority:2"`
	Source   string `gorm:"type:varchar(255);not null;index:idx_hazard_natural_key,priority:4"`

	// Feed names the adapter that produced the row; empty for user submitted hazards
	Feed string `gorm:"type:varchar(64);not null;default:'';index:idx_hazard_cursor,priority:1"`

	Description string `gorm:"type:text"`
	Reason      string `gorm:"type:text"`
	Chronology  string `gorm:"type:text"`
	Status      string `gorm:"type:varchar(32);not null;default:'';index"`

	// Optional link to the entity this hazard was derived from
	DerivedFromKind *string `gorm:"type:varchar(32)"`
	DerivedFromID   *uint

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Hazard) TableName() string {
	return "hazards"
}

// OccurTime returns the occurrence time in loc.
func (h *Hazard) OccurTime(loc *time.Location) time.Time {
	return time.Unix(h.OccurAt, 0).In(loc)
}

// BeforeCreate assigns an external identifier when the caller did not.
func (h *Hazard) BeforeCreate(_ *gorm.DB) error {
	if h.UUID == "" {
		h.UUID = uuid.NewString()
	}
	return nil
}
