package upsert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardwatch/hazardwatch/internal/datastore"
	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

func setupTestDB(t *testing.T) *repository.Store {
	t.Helper()
	db, err := datastore.OpenMemory(t.Name(), datastore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })
	return repository.NewStore(db)
}

func quake(title string, at time.Time, mag float64) hazard.Candidate {
	return hazard.Candidate{
		Feed:           "bmkg-felt",
		Source:         "BMKG",
		Classification: hazard.Earthquake,
		Title:          title,
		OccurAt:        at,
		Detail:         hazard.EarthquakeDetail{Magnitude: mag, ShakemapURL: title + ".mmi.jpg"},
	}
}

func TestUpsertBatch_CreatesWithOneSubRecordEach(t *testing.T) {
	for _, bulk := range []bool{true, false} {
		t.Run(map[bool]string{true: "bulk", false: "one_by_one"}[bulk], func(t *testing.T) {
			store := setupTestDB(t)
			ctx := t.Context()
			u := New(store, WithBulkInsert(bulk))

			y := quake("Y", time.Date(2021, 10, 23, 1, 0, 0, 0, time.UTC), 4.2)
			x := quake("X", time.Date(2021, 10, 23, 2, 51, 58, 0, time.UTC), 5.0)
			results, err := u.UpsertBatch(ctx, []hazard.Candidate{y, x}, hazard.SystemActor)
			require.NoError(t, err)
			require.Len(t, results, 2)

			for i, want := range []string{"Y", "X"} {
				r := results[i]
				assert.True(t, r.Created)
				assert.Equal(t, want, r.Hazard.Incident)
				require.NotNil(t, r.Activity)
				assert.Equal(t, r.Hazard.ID, r.Activity.SubjectID)
				assert.Empty(t, r.Activity.ActorID)

				kinds, err := store.Details.Kinds(ctx, r.Hazard.ID)
				require.NoError(t, err)
				assert.Equal(t, []hazard.Classification{hazard.Earthquake}, kinds)

				d, err := store.Details.Get(ctx, r.Hazard.ID)
				require.NoError(t, err)
				assert.Equal(t, want+".mmi.jpg", d.(hazard.EarthquakeDetail).ShakemapURL)
			}
			assert.Less(t, results[0].Hazard.ID, results[1].Hazard.ID)
		})
	}
}

func TestUpsertBatch_IsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	u := New(store)

	batch := []hazard.Candidate{quake("A", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 3)}
	first, err := u.UpsertBatch(ctx, batch, hazard.SystemActor)
	require.NoError(t, err)
	require.True(t, first[0].Created)

	second, err := u.UpsertBatch(ctx, batch, hazard.SystemActor)
	require.NoError(t, err)
	assert.False(t, second[0].Created)
	assert.Equal(t, first[0].Hazard.ID, second[0].Hazard.ID)
	assert.Nil(t, second[0].Activity)

	count, err := store.Hazards.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertBatch_DuplicateKeyInBatchIsIntegrityError(t *testing.T) {
	store := setupTestDB(t)
	at := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := New(store).UpsertBatch(t.Context(), []hazard.Candidate{quake("A", at, 3), quake("A", at.In(hazard.Jakarta), 4)}, hazard.SystemActor)
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))

	count, err := store.Hazards.Count(t.Context(), "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFindMatch_SkipsRowsWithForeignSubRecord(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	u := New(store)

	c := quake("A", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, c.Validate())

	// A row with the natural key of c that was later given a flood sub-record
	soft := &entities.Hazard{Feed: c.Feed, Source: c.Source, Incident: c.Title, Classify: string(c.Classification), OccurAt: c.OccurAt.Unix()}
	require.NoError(t, store.Hazards.Create(ctx, soft))
	require.NoError(t, store.Details.Put(ctx, soft.ID, hazard.FloodDetail{}))

	matched, err := u.Match(ctx, c.Key())
	require.NoError(t, err)
	assert.False(t, matched)

	res, err := u.Upsert(ctx, &c, hazard.Actor{ID: "ops"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEqual(t, soft.ID, res.Hazard.ID)
	assert.Equal(t, "ops", res.Activity.ActorID)

	matched, err = u.Match(ctx, c.Key())
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestReclassify_ReplacesSubRecord(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	u := New(store)

	c := quake("A", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	res, err := u.Upsert(ctx, &c, hazard.SystemActor)
	require.NoError(t, err)

	require.NoError(t, u.Reclassify(ctx, res.Hazard.ID, hazard.Tsunami, nil))

	h, err := store.Hazards.Get(ctx, res.Hazard.ID)
	require.NoError(t, err)
	assert.Equal(t, string(hazard.Tsunami), h.Classify)
	kinds, err := store.Details.Kinds(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []hazard.Classification{hazard.Tsunami}, kinds)

	err = u.Reclassify(ctx, h.ID, hazard.Flood, hazard.EarthquakeDetail{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	err = u.Reclassify(ctx, 999, hazard.Flood, nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpsertBatch_RejectsMismatchedDetail(t *testing.T) {
	store := setupTestDB(t)
	c := quake("A", time.Now(), 3)
	c.Classification = hazard.Flood

	_, err := New(store).UpsertBatch(t.Context(), []hazard.Candidate{c}, hazard.SystemActor)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
