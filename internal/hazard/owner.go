package hazard

import "fmt"

// OwnerKind names the kind of entity that owns child records.
type OwnerKind string

const (
	OwnerHazard      OwnerKind = "hazard"
	OwnerLocation    OwnerKind = "location"
	OwnerSafetyCheck OwnerKind = "safety_check"
	OwnerReport      OwnerKind = "report"
	OwnerComment     OwnerKind = "comment"
	OwnerAttachment  OwnerKind = "attachment"
)

// ownerTables maps owner kinds to the table holding the owner rows.
var ownerTables = map[OwnerKind]string{
	OwnerHazard:      "hazards",
	OwnerLocation:    "locations",
	OwnerSafetyCheck: "safety_checks",
	OwnerReport:      "reports",
	OwnerComment:     "comments",
	OwnerAttachment:  "attachments",
}

// Valid reports whether k is a known owner kind.
func (k OwnerKind) Valid() bool {
	_, ok := ownerTables[k]
	return ok
}

// Table returns the table holding rows of kind k.
func (k OwnerKind) Table() string {
	return ownerTables[k]
}

// OwnerRef identifies the owner of a child record.
type OwnerRef struct {
	Kind OwnerKind
	ID   uint
}

// HazardOwner returns the owner reference of a hazard row.
func HazardOwner(id uint) OwnerRef {
	return OwnerRef{Kind: OwnerHazard, ID: id}
}

// LocationOwner returns the owner reference of a location row.
func LocationOwner(id uint) OwnerRef {
	return OwnerRef{Kind: OwnerLocation, ID: id}
}

// Validate rejects unknown kinds and unsaved owners.
func (o OwnerRef) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("unknown owner kind %q", string(o.Kind))
	}
	if o.ID == 0 {
		return fmt.Errorf("owner %s has no id", o.Kind)
	}
	return nil
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// Actor is the principal on whose behalf a change is made.
// The zero Actor is the system itself (scheduled ingestion).
type Actor struct {
	ID string
}

// SystemActor performs unattended ingestion.
var SystemActor = Actor{}

// IsSystem reports whether a is the system actor.
func (a Actor) IsSystem() bool {
	return a.ID == ""
}

func (a Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	return a.ID
}
