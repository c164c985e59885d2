package repository

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// HazardRepository handles hazard rows.
type HazardRepository interface {
	Get(ctx context.Context, id uint) (*entities.Hazard, error)
	GetByUUID(ctx context.Context, uuid string) (*entities.Hazard, error)
	// ListByIDs returns the rows with the given ids ordered by id.
	ListByIDs(ctx context.Context, ids []uint) ([]entities.Hazard, error)
	// FindByNaturalKey returns every row sharing key, oldest first.
	FindByNaturalKey(ctx context.Context, key hazard.NaturalKey) ([]entities.Hazard, error)
	// LatestOccurAt returns the newest occur_at for feed, optionally narrowed
	// to a classification and a set of statuses. ok is false when no row matches.
	LatestOccurAt(ctx context.Context, feed string, classify hazard.Classification, statuses []string) (occurAt int64, ok bool, err error)
	Create(ctx context.Context, h *entities.Hazard) error
	// CreateBatch inserts rows in one statement, filling their ids in order.
	CreateBatch(ctx context.Context, rows []*entities.Hazard) error
	Update(ctx context.Context, id uint, fields map[string]any) error
	Count(ctx context.Context, feed string) (int64, error)
}
