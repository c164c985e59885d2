package repository

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// OwnedRepository is the contract shared by tables whose rows reference an
// owner through (owner_kind, owner_id).
type OwnedRepository[T any] interface {
	// ListByOwner returns the rows of owner ordered by id.
	ListByOwner(ctx context.Context, owner hazard.OwnerRef) ([]T, error)
	GetByUUID(ctx context.Context, uuid string) (*T, error)
	// CreateBatch inserts rows in one statement, filling their ids in order.
	CreateBatch(ctx context.Context, rows []*T) error
	// Update writes only the given columns of row id.
	Update(ctx context.Context, id uint, fields map[string]any) error
	DeleteByIDs(ctx context.Context, ids []uint) error
	// DeleteByOwners removes every row owned by one of ids of kind.
	DeleteByOwners(ctx context.Context, kind hazard.OwnerKind, ids []uint) error
}

// LocationRepository handles location rows.
type LocationRepository interface {
	OwnedRepository[entities.Location]
}

// ImpactRepository handles impact rows.
type ImpactRepository interface {
	OwnedRepository[entities.Impact]
}

// AttachmentRepository handles attachment rows.
type AttachmentRepository interface {
	OwnedRepository[entities.Attachment]
	Create(ctx context.Context, a *entities.Attachment) error
	// Link sets the owner of an attachment.
	Link(ctx context.Context, id uint, owner hazard.OwnerRef) error
	// Unlink clears the owner of the given attachments.
	Unlink(ctx context.Context, ids []uint) error
}
