package assoc

import (
	"testing"

	"github.com/google/uuid"
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

type item struct {
	uuid    string
	deleted bool
}

func (i item) Key() string   { return i.uuid }
func (i item) Deleted() bool { return i.deleted }

type row struct{ uuid string }

func TestPartition(t *testing.T) {
	existing := []row{{"A"}, {"B"}, {"C"}}
	keyOf := func(r *row) string { return r.uuid }

	plan, err := Partition(existing, keyOf, []item{{uuid: "A"}, {uuid: "D"}, {uuid: "B", deleted: true}, {}, {uuid: "Z", deleted: true}})
	require.NoError(t, err)

	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "B", plan.Deletes[0].uuid)
	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "A", plan.Updates[0].Row.uuid)
	assert.Equal(t, 0, plan.Updates[0].Index)
	require.Len(t, plan.Creates, 2)
	assert.Equal(t, 1, plan.Creates[0].Index)
	assert.Equal(t, 3, plan.Creates[1].Index)
	assert.Equal(t, 1, plan.Ignored)
}

func TestPartition_RepeatedKey(t *testing.T) {
	_, err := Partition([]row{}, func(r *row) string { return r.uuid }, []item{{uuid: "A"}, {uuid: "A", deleted: true}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestPartition_EmptyKeyNeverMatches(t *testing.T) {
	plan, err := Partition([]row{{""}}, func(r *row) string { return r.uuid }, []item{{}, {deleted: true}})
	require.NoError(t, err)
	assert.Len(t, plan.Creates, 1)
	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.Deletes)
	assert.Equal(t, 1, plan.Ignored)
}

func place(name, severity string) hazard.LocationPayload {
	return hazard.LocationPayload{Fields: hazard.LocationFields{SubAdministrativeArea: name, Severity: severity}}
}

func seed(t *testing.T, s *Synchronizer, owner hazard.OwnerRef) map[string]*entities.Location {
	t.Helper()
	out, err := s.SyncLocations(t.Context(), owner, []hazard.LocationPayload{
		place("Kabupaten A", "II"), place("B", "III"), place("C", "IV"),
	})
	require.NoError(t, err)
	require.Len(t, out.Locations, 3)
	byName := map[string]*entities.Location{}
	for _, r := range out.Locations {
		byName[r.Location.SubAdministrativeArea] = r.Location
	}
	return byName
}

func TestSyncLocations_DiffCorrectness(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	s := New(store)
	owner := hazard.HazardOwner(1)

	existing := seed(t, s, owner)
	require.Contains(t, existing, "A")

	var before entities.Location
	require.NoError(t, store.DB().First(&before, existing["C"].ID).Error)

	updatedA := place("A", "V")
	updatedA.UUID = existing["A"].UUID
	deleteB := hazard.LocationPayload{UUID: existing["B"].UUID, Delete: true}
	newD := place("D", "I")

	out, err := s.SyncLocations(ctx, owner, []hazard.LocationPayload{updatedA, newD, deleteB})
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1, Updated: 1, Deleted: 1}, out.Location)
	require.Len(t, out.Locations, 2)
	assert.Equal(t, existing["A"].UUID, out.Locations[0].Location.UUID)
	assert.Equal(t, "V", out.Locations[0].Location.Severity)
	assert.Equal(t, "D", out.Locations[1].Location.SubAdministrativeArea)

	rows, err := store.Locations.ListByOwner(ctx, owner)
	require.NoError(t, err)
	got := map[string]string{}
	for _, r := range rows {
		got[r.SubAdministrativeArea] = r.Severity
	}
	assert.Equal(t, map[string]string{"A": "V", "C": "IV", "D": "I"}, got)

	var after entities.Location
	require.NoError(t, store.DB().First(&after, existing["C"].ID).Error)
	assert.Equal(t, before, after)
}

func TestSyncLocations_IdempotentWithIdentifiers(t *testing.T) {
	store := setupTestDB(t)
	s := New(store)
	owner := hazard.OwnerRef{Kind: hazard.OwnerReport, ID: 5}

	lat, lon := -7.8, 110.3
	payload := []hazard.LocationPayload{{
		UUID:   uuid.NewString(),
		Fields: hazard.LocationFields{Locality: "Kecamatan Imogiri", Latitude: &lat, Longitude: &lon},
		Impacts: []hazard.ImpactPayload{{
			UUID: uuid.NewString(), Identifier: hazard.ImpactScale, Value: "III", Metric: hazard.MetricMMI,
		}},
	}}

	first, err := s.SyncLocations(t.Context(), owner, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Location.Created)
	assert.Equal(t, 1, first.Impact.Created)
	assert.Equal(t, "Imogiri", first.Locations[0].Location.Locality)

	second, err := s.SyncLocations(t.Context(), owner, payload)
	require.NoError(t, err)
	assert.Equal(t, Stats{Unchanged: 1}, second.Location)
	assert.Equal(t, Stats{Unchanged: 1}, second.Impact)
}

func TestSyncLocations_ImpactsReferencePersistedLocation(t *testing.T) {
	store := setupTestDB(t)
	s := New(store)
	owner := hazard.HazardOwner(9)

	p := place("Bantul", "III")
	p.Impacts = []hazard.ImpactPayload{{Identifier: hazard.ImpactScale, Value: "III", Metric: hazard.MetricMMI}}

	out, err := s.SyncLocations(t.Context(), owner, []hazard.LocationPayload{p, place("Sleman", "II")})
	require.NoError(t, err)

	loc := out.Locations[0]
	require.NotZero(t, loc.Location.ID)
	require.Len(t, loc.Impacts, 1)
	assert.Equal(t, string(hazard.OwnerLocation), loc.Impacts[0].OwnerKind)
	assert.Equal(t, loc.Location.ID, loc.Impacts[0].OwnerID)
	assert.Empty(t, out.Locations[1].Impacts)
}

func TestSyncLocations_DeleteCascadesToImpacts(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	s := New(store)
	owner := hazard.HazardOwner(2)

	p := place("Bantul", "III")
	p.Impacts = []hazard.ImpactPayload{{Identifier: hazard.ImpactScale, Value: "III"}}
	out, err := s.SyncLocations(ctx, owner, []hazard.LocationPayload{p})
	require.NoError(t, err)
	loc := out.Locations[0].Location

	_, err = s.SyncLocations(ctx, owner, []hazard.LocationPayload{{UUID: loc.UUID, Delete: true}})
	require.NoError(t, err)

	impacts, err := store.Impacts.ListByOwner(ctx, hazard.LocationOwner(loc.ID))
	require.NoError(t, err)
	assert.Empty(t, impacts)
}

func TestSyncLocations_RollsBackOnFailure(t *testing.T) {
	store := setupTestDB(t)
	ctx := t.Context()
	s := New(store)
	owner := hazard.HazardOwner(3)
	existing := seed(t, s, owner)

	shared := uuid.NewString()
	p := place("E", "I")
	p.Impacts = []hazard.ImpactPayload{{UUID: shared}, {UUID: shared}}
	del := hazard.LocationPayload{UUID: existing["A"].UUID, Delete: true}

	_, err := s.SyncLocations(ctx, owner, []hazard.LocationPayload{del, p})
	require.Error(t, err)

	rows, err := store.Locations.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSyncImpacts_InvalidOwner(t *testing.T) {
	s := New(setupTestDB(t))
	_, err := s.SyncImpacts(t.Context(), hazard.OwnerRef{Kind: hazard.OwnerLocation}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
