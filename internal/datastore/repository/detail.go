package repository

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// DetailRepository handles the classification sub-record of a hazard.
// A hazard carries at most one sub-record across all sub-record tables.
type DetailRepository interface {
	// Get returns the sub-record of hazardID, ErrDetailNotFound when none exists.
	Get(ctx context.Context, hazardID uint) (hazard.Detail, error)
	// Kinds lists the classifications whose sub-record table holds a row for hazardID.
	Kinds(ctx context.Context, hazardID uint) ([]hazard.Classification, error)
	// KindsOf is Kinds for many hazards in one query. Hazards without any
	// sub-record are absent from the result.
	KindsOf(ctx context.Context, hazardIDs []uint) (map[uint][]hazard.Classification, error)
	// Put stores d for hazardID and removes rows of every other kind.
	Put(ctx context.Context, hazardID uint, d hazard.Detail) error
	// Delete removes every sub-record of hazardID.
	Delete(ctx context.Context, hazardID uint) error
}
