// Package assoc reconciles the child collections of an owner (locations and
// their impacts) against persisted state by external identifier.
//
// Each call runs under one transaction scoped to the owner: deletions first,
// then field-level updates of matched rows, then one bulk insert of new
// rows. Unchanged rows are never written, so syncing the same payload twice
// leaves the second call without effect. Impacts of a location are synced
// after the location itself is persisted and reference it by id.
package assoc

import (
	"context"
	"log/slog"

	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// Stats counts what a sync did.
type Stats struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
	s.Deleted += o.Deleted
}

// Outcome is the result of syncing one collection. Rows holds the persisted
// row of every non-deleted payload in input order.
type Outcome[R any] struct {
	Rows  []*R
	Stats Stats
}

// childKind binds the generic algorithm to one owned table.
type childKind[P Payload, R any] struct {
	name   string
	repo   repository.OwnedRepository[R]
	uuidOf func(*R) string
	idOf   func(*R) uint
	// build returns a new row for p under owner
	build func(owner hazard.OwnerRef, p P) *R
	// diff returns the columns of row that differ from p; apply copies them
	diff  func(row *R, p P) map[string]any
	apply func(row *R, p P)
}

// sync reconciles one owner's rows with payloads. The caller provides the
// transaction.
func (k *childKind[P, R]) sync(ctx context.Context, owner hazard.OwnerRef, payloads []P) (*Outcome[R], []uint, error) {
	if err := owner.Validate(); err != nil {
		return nil, nil, errors.New(err).
			Component("assoc").
			Category(errors.CategoryValidation).
			Context("kind", k.name).
			Build()
	}

	existing, err := k.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, nil, k.dbError(err, "list", owner)
	}
	plan, err := Partition(existing, k.uuidOf, payloads)
	if err != nil {
		return nil, nil, err
	}

	out := &Outcome[R]{}
	rows := make([]*R, len(payloads))

	deletedIDs := make([]uint, 0, len(plan.Deletes))
	for _, row := range plan.Deletes {
		deletedIDs = append(deletedIDs, k.idOf(row))
	}
	if err := k.repo.DeleteByIDs(ctx, deletedIDs); err != nil {
		return nil, nil, k.dbError(err, "delete", owner)
	}
	out.Stats.Deleted = len(deletedIDs)

	for _, pair := range plan.Updates {
		fields := k.diff(pair.Row, pair.Payload)
		if len(fields) == 0 {
			out.Stats.Unchanged++
			rows[pair.Index] = pair.Row
			continue
		}
		if err := k.repo.Update(ctx, k.idOf(pair.Row), fields); err != nil {
			return nil, nil, k.dbError(err, "update", owner)
		}
		k.apply(pair.Row, pair.Payload)
		out.Stats.Updated++
		rows[pair.Index] = pair.Row
	}

	created := make([]*R, 0, len(plan.Creates))
	for _, c := range plan.Creates {
		row := k.build(owner, c.Payload)
		created = append(created, row)
		rows[c.Index] = row
	}
	if err := k.repo.CreateBatch(ctx, created); err != nil {
		return nil, nil, k.dbError(err, "create", owner)
	}
	for _, row := range created {
		if k.idOf(row) == 0 {
			return nil, nil, errors.IntegrityError("assoc", "created "+k.name+" row has no identity")
		}
	}
	out.Stats.Created = len(created)

	for _, row := range rows {
		if row != nil {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, deletedIDs, nil
}

func (k *childKind[P, R]) dbError(err error, operation string, owner hazard.OwnerRef) error {
	return errors.New(err).
		Component("assoc").
		Category(errors.CategoryDatabase).
		Context("kind", k.name).
		Context("operation", operation).
		Context("owner", owner.String()).
		Build()
}

// Synchronizer reconciles locations and impacts of any owner.
type Synchronizer struct {
	store *repository.Store
}

// New creates a Synchronizer over store. A transactional store makes every
// sync a savepoint of the enclosing transaction.
func New(store *repository.Store) *Synchronizer {
	return &Synchronizer{store: store}
}

func getLogger() *slog.Logger {
	return logging.ForService("assoc")
}
