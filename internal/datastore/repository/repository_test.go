package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/datastore"
	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := datastore.OpenMemory(t.Name(), datastore.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })
	return NewStore(db)
}

func newHazard(feed, title string, occur time.Time, c hazard.Classification) *entities.Hazard {
	return &entities.Hazard{
		Feed:     feed,
		Source:   "BMKG",
		Incident: title,
		Classify: string(c),
		OccurAt:  occur.Unix(),
		Status:   hazard.StatusPublished,
	}
}

func TestHazardRepository_CreateBatchFillsIDsInOrder(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	base := time.Date(2021, 10, 23, 1, 0, 0, 0, time.UTC)
	rows := []*entities.Hazard{
		newHazard("bmkg-felt", "Y", base, hazard.Earthquake),
		newHazard("bmkg-felt", "X", base.Add(time.Hour), hazard.Earthquake),
		newHazard("bmkg-felt", "Z", base.Add(2*time.Hour), hazard.Earthquake),
	}
	require.NoError(t, store.Hazards.CreateBatch(ctx, rows))

	for i, h := range rows {
		require.NotZero(t, h.ID, "row %d", i)
		require.NotEmpty(t, h.UUID)
		if i > 0 {
			assert.Greater(t, h.ID, rows[i-1].ID)
		}
	}

	stored, err := store.Hazards.ListByIDs(ctx, []uint{rows[0].ID, rows[1].ID, rows[2].ID})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "Y", stored[0].Incident)
	assert.Equal(t, "Z", stored[2].Incident)
}

func TestHazardRepository_FindByNaturalKey(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	occur := time.Date(2021, 10, 23, 2, 51, 58, 0, time.UTC)
	require.NoError(t, store.Hazards.Create(ctx, newHazard("bmkg-felt", "X", occur, hazard.Earthquake)))

	key := hazard.NaturalKey{OccurAt: occur.Unix(), Title: "X", Classification: hazard.Earthquake, Source: "BMKG"}
	found, err := store.Hazards.FindByNaturalKey(ctx, key)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	key.Source = "BNPB"
	found, err = store.Hazards.FindByNaturalKey(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestHazardRepository_LatestOccurAt(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	_, ok, err := store.Hazards.LatestOccurAt(ctx, "bmkg-felt", hazard.Earthquake, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	draft := newHazard("bmkg-felt", "draft", base.Add(3*time.Hour), hazard.Earthquake)
	draft.Status = hazard.StatusDraft
	require.NoError(t, store.Hazards.CreateBatch(ctx, []*entities.Hazard{
		newHazard("bmkg-felt", "a", base, hazard.Earthquake),
		newHazard("bmkg-felt", "b", base.Add(time.Hour), hazard.Earthquake),
		newHazard("bmkg-recent", "c", base.Add(2*time.Hour), hazard.Earthquake),
		draft,
	}))

	tests := []struct {
		name     string
		feed     string
		classify hazard.Classification
		statuses []string
		want     time.Time
	}{
		{"any status", "bmkg-felt", hazard.Earthquake, nil, base.Add(3 * time.Hour)},
		{"published only", "bmkg-felt", hazard.Earthquake, []string{hazard.StatusPublished}, base.Add(time.Hour)},
		{"other feed", "bmkg-recent", "", nil, base.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := store.Hazards.LatestOccurAt(ctx, tt.feed, tt.classify, tt.statuses)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want.Unix(), got)
		})
	}
}

func TestHazardRepository_NotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.Hazards.Get(t.Context(), 42)
	require.ErrorIs(t, err, ErrHazardNotFound)
	_, err = store.Hazards.GetByUUID(t.Context(), "missing")
	require.ErrorIs(t, err, ErrHazardNotFound)
	require.ErrorIs(t, store.Hazards.Update(t.Context(), 42, map[string]any{"status": "x"}), ErrHazardNotFound)
}

func TestDetailRepository_PutKeepsOneKind(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	h := newHazard("bmkg-felt", "quake", time.Now(), hazard.Earthquake)
	require.NoError(t, store.Hazards.Create(ctx, h))

	require.NoError(t, store.Details.Put(ctx, h.ID, hazard.EarthquakeDetail{Magnitude: 5.1, Depth: 10, ShakemapURL: "https://x/1.jpg"}))
	got, err := store.Details.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, hazard.EarthquakeDetail{Magnitude: 5.1, Depth: 10, ShakemapURL: "https://x/1.jpg"}, got)

	// Updating in place keeps a single row
	require.NoError(t, store.Details.Put(ctx, h.ID, hazard.EarthquakeDetail{Magnitude: 5.3, Depth: 12}))
	var count int64
	require.NoError(t, store.DB().Model(&entities.Earthquake{}).Where("hazard_id = ?", h.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Switching kind removes the previous row
	require.NoError(t, store.Details.Put(ctx, h.ID, hazard.TsunamiDetail{}))
	kinds, err := store.Details.Kinds(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []hazard.Classification{hazard.Tsunami}, kinds)

	require.NoError(t, store.Details.Delete(ctx, h.ID))
	_, err = store.Details.Get(ctx, h.ID)
	require.ErrorIs(t, err, ErrDetailNotFound)
}

func TestDetailRepository_KindsOfUsesOneStatement(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	quake := newHazard("bmkg-felt", "quake", time.Now(), hazard.Earthquake)
	flood := newHazard("dibi", "flood", time.Now(), hazard.Flood)
	bare := newHazard("dibi", "bare", time.Now(), hazard.Storm)
	for _, h := range []*entities.Hazard{quake, flood, bare} {
		require.NoError(t, store.Hazards.Create(ctx, h))
	}
	require.NoError(t, store.Details.Put(ctx, quake.ID, hazard.EarthquakeDetail{Magnitude: 5}))
	require.NoError(t, store.Details.Put(ctx, flood.ID, hazard.FloodDetail{}))
	// A second table row for the same hazard, bypassing Put
	require.NoError(t, store.DB().Create(&entities.Tsunami{DetailBase: entities.DetailBase{HazardID: quake.ID}}).Error)

	var statements int
	countStatement := func(*gorm.DB) { statements++ }
	require.NoError(t, store.DB().Callback().Query().After("gorm:query").Register("test:count_query", countStatement))
	require.NoError(t, store.DB().Callback().Row().After("gorm:row").Register("test:count_row", countStatement))

	kinds, err := store.Details.KindsOf(ctx, []uint{quake.ID, flood.ID, bare.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, statements)

	assert.Equal(t, []hazard.Classification{hazard.Earthquake, hazard.Tsunami}, kinds[quake.ID])
	assert.Equal(t, []hazard.Classification{hazard.Flood}, kinds[flood.ID])
	assert.NotContains(t, kinds, bare.ID)

	empty, err := store.Details.KindsOf(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLocationRepository_OwnedOperations(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	owner := hazard.HazardOwner(7)
	other := hazard.HazardOwner(8)

	rows := []*entities.Location{
		{OwnerKind: string(owner.Kind), OwnerID: owner.ID, SubAdministrativeArea: "Kab. Bantul"},
		{OwnerKind: string(owner.Kind), OwnerID: owner.ID, SubAdministrativeArea: "Sleman"},
		{OwnerKind: string(other.Kind), OwnerID: other.ID, SubAdministrativeArea: "Klaten"},
	}
	require.NoError(t, store.Locations.CreateBatch(ctx, rows))

	listed, err := store.Locations.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, rows[0].UUID, listed[0].UUID)

	require.NoError(t, store.Locations.Update(ctx, rows[1].ID, map[string]any{"severity": "III"}))
	got, err := store.Locations.GetByUUID(ctx, rows[1].UUID)
	require.NoError(t, err)
	assert.Equal(t, "III", got.Severity)

	require.NoError(t, store.Locations.DeleteByIDs(ctx, []uint{rows[0].ID}))
	listed, err = store.Locations.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, store.Locations.DeleteByOwners(ctx, hazard.OwnerHazard, []uint{other.ID}))
	listed, err = store.Locations.ListByOwner(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = store.Locations.GetByUUID(ctx, rows[0].UUID)
	require.ErrorIs(t, err, ErrLocationNotFound)
}

func TestAttachmentRepository_LinkAndUnlink(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	a := &entities.Attachment{File: "2022/01/a.jpg", Filename: "a.jpg"}
	require.NoError(t, store.Attachments.Create(ctx, a))
	assert.False(t, a.Linked())

	require.NoError(t, store.Attachments.Link(ctx, a.ID, hazard.HazardOwner(3)))
	got, err := store.Attachments.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	assert.True(t, got.OwnedBy("hazard", 3))

	owned, err := store.Attachments.ListByOwner(ctx, hazard.HazardOwner(3))
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	require.NoError(t, store.Attachments.Unlink(ctx, []uint{a.ID}))
	got, err = store.Attachments.GetByUUID(ctx, a.UUID)
	require.NoError(t, err)
	assert.False(t, got.Linked())

	require.ErrorIs(t, store.Attachments.Link(ctx, a.ID, hazard.OwnerRef{Kind: "planet", ID: 1}), ErrInvalidInput)
}

func TestActivityRepository_FirstActor(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	subject := hazard.OwnerRef{Kind: hazard.OwnerAttachment, ID: 11}

	_, err := store.Activities.FirstActor(ctx, subject)
	require.ErrorIs(t, err, ErrActivityNotFound)

	_, err = store.Activities.Record(ctx, subject, hazard.Actor{ID: "alice"}, entities.VerbCreated)
	require.NoError(t, err)
	_, err = store.Activities.Record(ctx, subject, hazard.Actor{ID: "bob"}, entities.VerbCloned)
	require.NoError(t, err)

	actor, err := store.Activities.FirstActor(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "alice", actor.ID)

	all, err := store.Activities.ListBySubject(ctx, subject)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()

	err := store.Transaction(ctx, func(tx *Store) error {
		require.NoError(t, tx.Hazards.Create(ctx, newHazard("f", "t", time.Now(), hazard.Flood)))
		// nested savepoint rolled back on its own
		nestedErr := tx.Transaction(ctx, func(inner *Store) error {
			require.NoError(t, inner.Hazards.Create(ctx, newHazard("f", "u", time.Now(), hazard.Flood)))
			return assert.AnError
		})
		require.ErrorIs(t, nestedErr, assert.AnError)
		count, err := tx.Hazards.Count(ctx, "f")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	count, err := store.Hazards.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}
