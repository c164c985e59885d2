package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// ownedRepository implements OwnedRepository for any owned entity type.
type ownedRepository[T any] struct {
	db       *gorm.DB
	notFound error
}

func (r *ownedRepository[T]) ListByOwner(ctx context.Context, owner hazard.OwnerRef) ([]T, error) {
	var rows []T
	err := r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", string(owner.Kind), owner.ID).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *ownedRepository[T]) GetByUUID(ctx context.Context, uuid string) (*T, error) {
	var row T
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, r.notFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ownedRepository[T]) CreateBatch(ctx context.Context, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *ownedRepository[T]) Update(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	var model T
	result := r.db.WithContext(ctx).Model(&model).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.notFound
	}
	return nil
}

func (r *ownedRepository[T]) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var model T
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model).Error
}

func (r *ownedRepository[T]) DeleteByOwners(ctx context.Context, kind hazard.OwnerKind, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var model T
	return r.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id IN ?", string(kind), ids).
		Delete(&model).Error
}

// locationRepository implements LocationRepository.
type locationRepository struct {
	ownedRepository[entities.Location]
}

// NewLocationRepository creates a new LocationRepository.
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{ownedRepository[entities.Location]{db: db, notFound: ErrLocationNotFound}}
}

// impactRepository implements ImpactRepository.
type impactRepository struct {
	ownedRepository[entities.Impact]
}

// NewImpactRepository creates a new ImpactRepository.
func NewImpactRepository(db *gorm.DB) ImpactRepository {
	return &impactRepository{ownedRepository[entities.Impact]{db: db, notFound: ErrImpactNotFound}}
}

// attachmentRepository implements AttachmentRepository.
type attachmentRepository struct {
	ownedRepository[entities.Attachment]
}

// NewAttachmentRepository creates a new AttachmentRepository.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{ownedRepository[entities.Attachment]{db: db, notFound: ErrAttachmentNotFound}}
}

func (r *attachmentRepository) Create(ctx context.Context, a *entities.Attachment) error {
	if a == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *attachmentRepository) Link(ctx context.Context, id uint, owner hazard.OwnerRef) error {
	if err := owner.Validate(); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	return r.Update(ctx, id, map[string]any{
		"owner_kind": string(owner.Kind),
		"owner_id":   owner.ID,
	})
}

func (r *attachmentRepository) Unlink(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entities.Attachment{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"owner_kind": nil, "owner_id": nil}).Error
}
