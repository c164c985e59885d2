package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
)

func openPair(t *testing.T) (src, dst *gorm.DB) {
	t.Helper()
	src, err := OpenMemory(t.Name()+"_src", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(src) })
	dst, err = OpenMemory(t.Name()+"_dst", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(dst) })
	return src, dst
}

func seed(t *testing.T, db *gorm.DB) *entities.Hazard {
	t.Helper()
	h := &entities.Hazard{Incident: "Gempa Mag:5.1", Source: "BMKG", Classify: "105", OccurAt: 1700000000, Feed: "bmkg-felt"}
	require.NoError(t, db.Create(h).Error)
	eq := &entities.Earthquake{Magnitude: 5.1, Depth: 10}
	eq.HazardID = h.ID
	require.NoError(t, db.Create(eq).Error)
	for _, area := range []string{"Bantul", "Sleman"} {
		require.NoError(t, db.Create(&entities.Location{OwnerKind: "hazard", OwnerID: h.ID, SubAdministrativeArea: area}).Error)
	}
	return h
}

func TestCopyPreservesKeys(t *testing.T) {
	src, dst := openPair(t)
	h := seed(t, src)

	stats, err := Copy(t.Context(), src, dst, 1)
	require.NoError(t, err)
	require.Len(t, stats, len(copiers()))
	assert.Equal(t, "hazards", stats[0].Table)
	assert.EqualValues(t, 1, stats[0].Copied)

	var copied entities.Hazard
	require.NoError(t, dst.First(&copied, h.ID).Error)
	assert.Equal(t, h.UUID, copied.UUID)
	assert.Equal(t, h.OccurAt, copied.OccurAt)

	var eq entities.Earthquake
	require.NoError(t, dst.Where("hazard_id = ?", h.ID).First(&eq).Error)
	assert.InDelta(t, 5.1, eq.Magnitude, 1e-9)

	counts, err := VerifyCounts(t.Context(), src, dst)
	require.NoError(t, err)
	for _, c := range counts {
		assert.True(t, c.Match(), "%s: %d != %d", c.Table, c.Source, c.Target)
	}
}

func TestCopyIsRepeatable(t *testing.T) {
	src, dst := openPair(t)
	seed(t, src)

	_, err := Copy(t.Context(), src, dst, 0)
	require.NoError(t, err)
	stats, err := Copy(t.Context(), src, dst, 0)
	require.NoError(t, err)

	for _, s := range stats {
		assert.Zero(t, s.Copied, s.Table)
		assert.Equal(t, s.Source, s.Skipped, s.Table)
	}
}

func TestCopyStopsWhenCancelled(t *testing.T) {
	src, dst := openPair(t)
	seed(t, src)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := Copy(ctx, src, dst, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestVerifyCountsReportsMismatch(t *testing.T) {
	src, dst := openPair(t)
	seed(t, src)

	counts, err := VerifyCounts(t.Context(), src, dst)
	require.NoError(t, err)
	assert.False(t, counts[0].Match())
	assert.EqualValues(t, 1, counts[0].Source)
	assert.Zero(t, counts[0].Target)
}
