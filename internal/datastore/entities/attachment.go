package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment is a stored file. OwnerKind and OwnerID are both nil while the
// attachment is unlinked; a linked attachment has exactly one owner.
type Attachment struct {
	ID        uint    `gorm:"primaryKey"`
	UUID      string  `gorm:"type:varchar(36);not null;uniqueIndex"`
	OwnerKind *string `gorm:"type:varchar(32);index:idx_attachment_owner,priority:1"`
	OwnerID   *uint   `gorm:"index:idx_attachment_owner,priority:2"`

	File       string `gorm:"type:varchar(500);not null"` // path relative to the media root
	Filename   string `gorm:"type:varchar(255)"`
	Filesize   int64
	Filemime   string `gorm:"type:varchar(128)"`
	Identifier string `gorm:"type:varchar(64);index"`
	Caption    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Attachment) TableName() string {
	return "attachments"
}

// Linked reports whether the attachment has an owner.
func (a *Attachment) Linked() bool {
	return a.OwnerKind != nil && a.OwnerID != nil
}

// OwnedBy reports whether the attachment belongs to the given owner.
func (a *Attachment) OwnedBy(kind string, id uint) bool {
	return a.Linked() && *a.OwnerKind == kind && *a.OwnerID == id
}

// BeforeCreate assigns an external identifier when the caller did not.
func (a *Attachment) BeforeCreate(_ *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}

// Activity attributes the creation of a subject to an actor.
// An empty ActorID is the system.
type Activity struct {
	ID          uint      `gorm:"primaryKey"`
	UUID        string    `gorm:"type:varchar(36);not null;uniqueIndex"`
	SubjectKind string    `gorm:"type:varchar(32);not null;index:idx_activity_subject,priority:1"`
	SubjectID   uint      `gorm:"not null;index:idx_activity_subject,priority:2"`
	ActorID     string    `gorm:"type:varchar(64);not null;default:'';index"`
	Verb        string    `gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (Activity) TableName() string {
	return "activities"
}

// BeforeCreate assigns an external identifier when the caller did not.
func (a *Activity) BeforeCreate(_ *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}

// Activity verbs.
const (
	VerbCreated = "created"
	VerbCloned  = "cloned"
)

// AllModels returns every entity for migration.
func AllModels() []any {
	models := []any{&Hazard{}, &Location{}, &Impact{}, &Attachment{}, &Activity{}}
	for _, d := range DetailModels() {
		models = append(models, d)
	}
	return models
}
