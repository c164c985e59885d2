package entities

import "time"

// DetailRecord is implemented by every classification sub-record table.
type DetailRecord interface {
	TableName() string
	GetHazardID() uint
	SetHazardID(id uint)
	Base() *DetailBase
}

// DetailBase holds the columns shared by all sub-record tables.
// HazardID is unique so a hazard has at most one row per table.
type DetailBase struct {
	ID        uint      `gorm:"primaryKey"`
	HazardID  uint      `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// GetHazardID returns the owning hazard id.
func (d *DetailBase) GetHazardID() uint { return d.HazardID }

// SetHazardID sets the owning hazard id.
func (d *DetailBase) SetHazardID(id uint) { d.HazardID = id }

// Base exposes the shared columns of any sub-record.
func (d *DetailBase) Base() *DetailBase { return d }

// Earthquake holds seismic parameters.
type Earthquake struct {
	DetailBase
	Magnitude   float64
	Depth       float64
	Latitude    float64
	Longitude   float64
	ShakemapURL string `gorm:"type:varchar(500)"`
}

type (
	Flood            struct{ DetailBase }
	Storm            struct{ DetailBase }
	Landslide        struct{ DetailBase }
	Wildfire         struct{ DetailBase }
	Abrasion         struct{ DetailBase }
	Drought          struct{ DetailBase }
	Tsunami          struct{ DetailBase }
	VolcanicEruption struct{ DetailBase }
	OtherHazard      struct{ DetailBase }
)

func (Earthquake) TableName() string       { return "earthquakes" }
func (Flood) TableName() string            { return "floods" }
func (Storm) TableName() string            { return "storms" }
func (Landslide) TableName() string        { return "landslides" }
func (Wildfire) TableName() string         { return "wildfires" }
func (Abrasion) TableName() string         { return "abrasions" }
func (Drought) TableName() string          { return "droughts" }
func (Tsunami) TableName() string          { return "tsunamis" }
func (VolcanicEruption) TableName() string { return "volcanic_eruptions" }
func (OtherHazard) TableName() string      { return "other_hazards" }

// DetailModels returns a fresh zero value of every sub-record table.
func DetailModels() []DetailRecord {
	return []DetailRecord{
		&Earthquake{}, &Flood{}, &Storm{}, &Landslide{}, &Wildfire{},
		&Abrasion{}, &Drought{}, &Tsunami{}, &VolcanicEruption{}, &OtherHazard{},
	}
}
