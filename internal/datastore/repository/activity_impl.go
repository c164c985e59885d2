package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// activityRepository implements ActivityRepository.
type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Record(ctx context.Context, subject hazard.OwnerRef, actor hazard.Actor, verb string) (*entities.Activity, error) {
	if err := subject.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	activity := &entities.Activity{
		SubjectKind: string(subject.Kind),
		SubjectID:   subject.ID,
		ActorID:     actor.ID,
		Verb:        verb,
	}
	if err := r.db.WithContext(ctx).Create(activity).Error; err != nil {
		return nil, err
	}
	return activity, nil
}

func (r *activityRepository) FirstActor(ctx context.Context, subject hazard.OwnerRef) (hazard.Actor, error) {
	var activity entities.Activity
	err := r.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_id = ?", string(subject.Kind), subject.ID).
		Order("id").
		First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return hazard.Actor{}, ErrActivityNotFound
	}
	if err != nil {
		return hazard.Actor{}, err
	}
	return hazard.Actor{ID: activity.ActorID}, nil
}

func (r *activityRepository) ListBySubject(ctx context.Context, subject hazard.OwnerRef) ([]entities.Activity, error) {
	var rows []entities.Activity
	err := r.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_id = ?", string(subject.Kind), subject.ID).
		Order("id").
		Find(&rows).Error
	return rows, err
}
