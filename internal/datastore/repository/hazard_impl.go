package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// hazardRepository implements HazardRepository.
type hazardRepository struct {
	db *gorm.DB
}

// NewHazardRepository creates a new HazardRepository.
func NewHazardRepository(db *gorm.DB) HazardRepository {
	return &hazardRepository{db: db}
}

func (r *hazardRepository) Get(ctx context.Context, id uint) (*entities.Hazard, error) {
	var h entities.Hazard
	err := r.db.WithContext(ctx).First(&h, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHazardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *hazardRepository) GetByUUID(ctx context.Context, uuid string) (*entities.Hazard, error) {
	var h entities.Hazard
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHazardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *hazardRepository) ListByIDs(ctx context.Context, ids []uint) ([]entities.Hazard, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []entities.Hazard
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error
	return rows, err
}

func (r *hazardRepository) FindByNaturalKey(ctx context.Context, key hazard.NaturalKey) ([]entities.Hazard, error) {
	var rows []entities.Hazard
	err := r.db.WithContext(ctx).
		Where("occur_at = ? AND incident = ? AND classify = ? AND source = ?",
			key.OccurAt, key.Title, string(key.Classification), key.Source).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *hazardRepository) LatestOccurAt(ctx context.Context, feed string, classify hazard.Classification, statuses []string) (int64, bool, error) {
	query := r.db.WithContext(ctx).Model(&entities.Hazard{}).Where("feed = ?", feed)
	if classify != "" {
		query = query.Where("classify = ?", string(classify))
	}
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var latest []int64
	if err := query.Order("occur_at DESC").Limit(1).Pluck("occur_at", &latest).Error; err != nil {
		return 0, false, err
	}
	if len(latest) == 0 {
		return 0, false, nil
	}
	return latest[0], true, nil
}

func (r *hazardRepository) Create(ctx context.Context, h *entities.Hazard) error {
	if h == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *hazardRepository) CreateBatch(ctx context.Context, rows []*entities.Hazard) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *hazardRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entities.Hazard{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHazardNotFound
	}
	return nil
}

func (r *hazardRepository) Count(ctx context.Context, feed string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&entities.Hazard{})
	if feed != "" {
		query = query.Where("feed = ?", feed)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}
