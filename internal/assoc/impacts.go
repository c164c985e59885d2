package assoc

import (
	"context"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

func impactKind(repo repository.ImpactRepository) *childKind[hazard.ImpactPayload, entities.Impact] {
	return &childKind[hazard.ImpactPayload, entities.Impact]{
		name:   "impact",
		repo:   repo,
		uuidOf: func(i *entities.Impact) string { return i.UUID },
		idOf:   func(i *entities.Impact) uint { return i.ID },
		build: func(owner hazard.OwnerRef, p hazard.ImpactPayload) *entities.Impact {
			return &entities.Impact{
				UUID:        p.UUID,
				OwnerKind:   string(owner.Kind),
				OwnerID:     owner.ID,
				Identifier:  string(p.Identifier),
				Value:       p.Value,
				Metric:      string(p.Metric),
				Description: p.Description,
			}
		},
		diff: func(row *entities.Impact, p hazard.ImpactPayload) map[string]any {
			return changedColumns(
				map[string]any{
					"identifier":  row.Identifier,
					"value":       row.Value,
					"metric":      row.Metric,
					"description": row.Description,
				},
				map[string]any{
					"identifier":  string(p.Identifier),
					"value":       p.Value,
					"metric":      string(p.Metric),
					"description": p.Description,
				})
		},
		apply: func(row *entities.Impact, p hazard.ImpactPayload) {
			row.Identifier = string(p.Identifier)
			row.Value = p.Value
			row.Metric = string(p.Metric)
			row.Description = p.Description
		},
	}
}

// SyncImpacts reconciles the impacts of owner, normally a persisted location,
// in one transaction.
func (s *Synchronizer) SyncImpacts(ctx context.Context, owner hazard.OwnerRef, payloads []hazard.ImpactPayload) (*Outcome[entities.Impact], error) {
	var out *Outcome[entities.Impact]
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		out, _, err = impactKind(tx.Impacts).sync(ctx, owner, payloads)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
