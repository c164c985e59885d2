package repository

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// ActivityRepository handles attribution records.
type ActivityRepository interface {
	// Record stores an attribution of subject to actor and returns it.
	Record(ctx context.Context, subject hazard.OwnerRef, actor hazard.Actor, verb string) (*entities.Activity, error)
	// FirstActor returns the actor of the earliest activity of subject.
	FirstActor(ctx context.Context, subject hazard.OwnerRef) (hazard.Actor, error)
	ListBySubject(ctx context.Context, subject hazard.OwnerRef) ([]entities.Activity, error)
}
