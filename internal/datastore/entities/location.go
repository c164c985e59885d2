package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/placename"
)

// Location is a place affected by its owner.
type Location struct {
	ID        uint   `gorm:"primaryKey"`
	UUID      string `gorm:"type:varchar(36);not null;uniqueIndex"`
	OwnerKind string `gorm:"type:varchar(32);not null;index:idx_location_owner,priority:1"`
	OwnerID   uint   `gorm:"not null;index:idx_location_owner,priority:2"`

	Country                   string `gorm:"type:varchar(128)"`
	CountryCode               string `gorm:"type:varchar(8)"`
	AdministrativeArea        string `gorm:"type:varchar(255);index"`
	AdministrativeAreaCode    string `gorm:"type:varchar(32)"`
	SubAdministrativeArea     string `gorm:"type:varchar(255);index"`
	SubAdministrativeAreaCode string `gorm:"type:varchar(32)"`
	Locality                  string `gorm:"type:varchar(255)"`
	LocalityCode              string `gorm:"type:varchar(32)"`
	SubLocality               string `gorm:"type:varchar(255)"`
	SubLocalityCode           string `gorm:"type:varchar(32)"`
	Thoroughfare              string `gorm:"type:varchar(255)"`
	SubThoroughfare           string `gorm:"type:varchar(255)"`
	PostalCode                string `gorm:"type:varchar(16)"`
	AreasOfInterest           string `gorm:"type:varchar(255)"`
	Severity                  string `gorm:"type:varchar(64)"`
	Latitude                  *float64
	Longitude                 *float64

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Location) TableName() string {
	return "locations"
}

// NormalizeNames strips administrative level words from the area names.
func (l *Location) NormalizeNames() {
	l.AdministrativeArea = placename.Normalize(l.AdministrativeArea)
	l.SubAdministrativeArea = placename.Normalize(l.SubAdministrativeArea)
	l.Locality = placename.Normalize(l.Locality)
	l.SubLocality = placename.Normalize(l.SubLocality)
}

// BeforeSave keeps stored names normalized regardless of the write path.
func (l *Location) BeforeSave(_ *gorm.DB) error {
	l.NormalizeNames()
	return nil
}

// BeforeCreate assigns an external identifier when the caller did not.
func (l *Location) BeforeCreate(_ *gorm.DB) error {
	if l.UUID == "" {
		l.UUID = uuid.NewString()
	}
	return nil
}

// Impact is a measured effect at its owner, normally a Location.
type Impact struct {
	ID          uint   `gorm:"primaryKey"`
	UUID        string `gorm:"type:varchar(36);not null;uniqueIndex"`
	OwnerKind   string `gorm:"type:varchar(32);not null;index:idx_impact_owner,priority:1"`
	OwnerID     uint   `gorm:"not null;index:idx_impact_owner,priority:2"`
	Identifier  string `gorm:"type:varchar(8);not null"`
	Value       string `gorm:"type:varchar(64)"`
	Metric      string `gorm:"type:varchar(8)"`
	Description string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Impact) TableName() string {
	return "impacts"
}

// BeforeCreate assigns an external identifier when the caller did not.
func (i *Impact) BeforeCreate(_ *gorm.DB) error {
	if i.UUID == "" {
		i.UUID = uuid.NewString()
	}
	return nil
}
