// Package upsert persists candidate hazards by natural key.
//
// A candidate matches an existing hazard when occurrence time, title,
// classification and source are equal, ignoring hazards that carry a
// sub-record of a different kind than their own classification. Unmatched
// candidates are inserted together with exactly one classification
// sub-record and an attribution activity.
package upsert

import (
	"context"
	"log/slog"
	"slices"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// Result describes the outcome for one candidate.
type Result struct {
	Hazard   *entities.Hazard
	Created  bool
	Activity *entities.Activity // nil unless Created
}

// Upserter matches or creates hazards through a repository Store.
type Upserter struct {
	store *repository.Store
	bulk  bool
}

// Option configures an Upserter.
type Option func(*Upserter)

// WithBulkInsert inserts new hazards of a batch in one statement.
func WithBulkInsert(enabled bool) Option {
	return func(u *Upserter) { u.bulk = enabled }
}

// New creates an Upserter. Pass a transactional Store to make a batch atomic.
func New(store *repository.Store, opts ...Option) *Upserter {
	u := &Upserter{store: store, bulk: true}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func getLogger() *slog.Logger {
	return logging.ForService("upsert")
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("upsert").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// FindMatch returns the hazard matching key, or nil.
func (u *Upserter) FindMatch(ctx context.Context, key hazard.NaturalKey) (*entities.Hazard, error) {
	rows, err := u.store.Hazards.FindByNaturalKey(ctx, key)
	if err != nil {
		return nil, dbError(err, "find_by_natural_key")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	kinds, err := u.store.Details.KindsOf(ctx, ids)
	if err != nil {
		return nil, dbError(err, "detail_kinds")
	}
	for i := range rows {
		if slices.ContainsFunc(kinds[rows[i].ID], func(k hazard.Classification) bool { return k != key.Classification }) {
			continue
		}
		return &rows[i], nil
	}
	return nil, nil
}

// Match implements cursor.Matcher.
func (u *Upserter) Match(ctx context.Context, key hazard.NaturalKey) (bool, error) {
	h, err := u.FindMatch(ctx, key)
	return h != nil, err
}

// Upsert matches or creates a single candidate.
func (u *Upserter) Upsert(ctx context.Context, c *hazard.Candidate, actor hazard.Actor) (Result, error) {
	results, err := u.UpsertBatch(ctx, []hazard.Candidate{*c}, actor)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// UpsertBatch matches or creates every candidate and returns results in
// input order. Two candidates sharing a natural key, or an insert that does
// not hand back exactly the rows it wrote, fail the whole batch with an
// integrity error; callers run it inside a transaction.
func (u *Upserter) UpsertBatch(ctx context.Context, candidates []hazard.Candidate, actor hazard.Actor) ([]Result, error) {
	seen := make(map[hazard.NaturalKey]int, len(candidates))
	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, errors.New(err).
				Component("upsert").
				Category(errors.CategoryValidation).
				Context("index", i).
				Build()
		}
		key := candidates[i].Key()
		if prev, dup := seen[key]; dup {
			return nil, errors.New(errors.NewStd("natural key repeated within batch")).
				Component("upsert").
				Category(errors.CategoryIntegrity).
				Priority(errors.PriorityHigh).
				Context("key", key.String()).
				Context("first_index", prev).
				Context("second_index", i).
				Build()
		}
		seen[key] = i
	}

	results := make([]Result, len(candidates))
	var pending []int
	for i := range candidates {
		existing, err := u.FindMatch(ctx, candidates[i].Key())
		if err != nil {
			return nil, err
		}
		if existing != nil {
			results[i] = Result{Hazard: existing}
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	rows := make([]*entities.Hazard, len(pending))
	for j, i := range pending {
		rows[j] = toEntity(&candidates[i])
	}
	if err := u.insert(ctx, rows); err != nil {
		return nil, err
	}
	if err := u.verifyInserted(ctx, rows); err != nil {
		return nil, err
	}

	for j, i := range pending {
		h := rows[j]
		if err := u.store.Details.Put(ctx, h.ID, candidates[i].Detail); err != nil {
			return nil, dbError(err, "put_detail")
		}
		activity, err := u.store.Activities.Record(ctx, hazard.HazardOwner(h.ID), actor, entities.VerbCreated)
		if err != nil {
			return nil, dbError(err, "record_activity")
		}
		results[i] = Result{Hazard: h, Created: true, Activity: activity}
	}

	getLogger().Debug("Upserted hazard batch",
		"candidates", len(candidates),
		"created", len(pending),
		"matched", len(candidates)-len(pending),
		"actor", actor.String())
	return results, nil
}

func (u *Upserter) insert(ctx context.Context, rows []*entities.Hazard) error {
	if u.bulk {
		if err := u.store.Hazards.CreateBatch(ctx, rows); err != nil {
			return dbError(err, "create_batch")
		}
		return nil
	}
	for _, h := range rows {
		if err := u.store.Hazards.Create(ctx, h); err != nil {
			return dbError(err, "create")
		}
	}
	return nil
}

// verifyInserted re-reads the inserted rows by id and checks that every row
// came back with the natural key it was written with.
func (u *Upserter) verifyInserted(ctx context.Context, rows []*entities.Hazard) error {
	ids := make([]uint, 0, len(rows))
	for _, h := range rows {
		if h.ID == 0 {
			return errors.IntegrityError("upsert", "insert returned no identity for a hazard row")
		}
		ids = append(ids, h.ID)
	}

	stored, err := u.store.Hazards.ListByIDs(ctx, ids)
	if err != nil {
		return dbError(err, "verify_inserted")
	}
	if len(stored) != len(rows) {
		return errors.New(errors.NewStd("inserted row count does not match batch")).
			Component("upsert").
			Category(errors.CategoryIntegrity).
			Priority(errors.PriorityHigh).
			Context("expected", len(rows)).
			Context("found", len(stored)).
			Build()
	}

	byID := make(map[uint]*entities.Hazard, len(stored))
	for i := range stored {
		byID[stored[i].ID] = &stored[i]
	}
	for _, h := range rows {
		s, ok := byID[h.ID]
		if !ok || naturalKeyOf(s) != naturalKeyOf(h) {
			return errors.New(errors.NewStd("inserted identity points at a different hazard")).
				Component("upsert").
				Category(errors.CategoryIntegrity).
				Priority(errors.PriorityHigh).
				Context("hazard_id", h.ID).
				Build()
		}
	}
	return nil
}

// Reclassify changes the classification of a stored hazard and replaces its
// sub-record with d. A nil d stores the empty sub-record of c.
func (u *Upserter) Reclassify(ctx context.Context, id uint, c hazard.Classification, d hazard.Detail) error {
	if d == nil {
		var err error
		if d, err = hazard.EmptyDetail(c); err != nil {
			return errors.New(err).Component("upsert").Category(errors.CategoryValidation).Build()
		}
	}
	if d.Classification() != c {
		return errors.ValidationError("detail does not match classification " + string(c))
	}
	if err := u.store.Hazards.Update(ctx, id, map[string]any{"classify": string(c)}); err != nil {
		if errors.Is(err, repository.ErrHazardNotFound) {
			return errors.New(err).Component("upsert").Category(errors.CategoryNotFound).Context("hazard_id", id).Build()
		}
		return dbError(err, "reclassify")
	}
	if err := u.store.Details.Put(ctx, id, d); err != nil {
		return dbError(err, "put_detail")
	}
	return nil
}

func toEntity(c *hazard.Candidate) *entities.Hazard {
	return &entities.Hazard{
		OccurAt:     c.OccurAt.Unix(),
		Incident:    c.Title,
		Classify:    string(c.Classification),
		Source:      c.Source,
		Feed:        c.Feed,
		Description: c.Description,
		Reason:      c.Reason,
		Chronology:  c.Chronology,
		Status:      hazard.StatusPublished,
	}
}

func naturalKeyOf(h *entities.Hazard) hazard.NaturalKey {
	return hazard.NaturalKey{
		OccurAt:        h.OccurAt,
		Title:          h.Incident,
		Classification: hazard.Classification(h.Classify),
		Source:         h.Source,
	}
}
