package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
)

// detailRepository implements DetailRepository.
type detailRepository struct {
	db *gorm.DB
}

// NewDetailRepository creates a new DetailRepository.
func NewDetailRepository(db *gorm.DB) DetailRepository {
	return &detailRepository{db: db}
}

func (r *detailRepository) Get(ctx context.Context, hazardID uint) (hazard.Detail, error) {
	for _, c := range hazard.Classifications {
		rec := recordFor(c)
		err := r.db.WithContext(ctx).Where("hazard_id = ?", hazardID).First(rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return detailFromRecord(rec), nil
	}
	return nil, ErrDetailNotFound
}

func (r *detailRepository) Kinds(ctx context.Context, hazardID uint) ([]hazard.Classification, error) {
	kinds, err := r.KindsOf(ctx, []uint{hazardID})
	if err != nil {
		return nil, err
	}
	return kinds[hazardID], nil
}

// kindsQuery selects (hazard_id, kind) from every sub-record table.
var kindsQuery = func() string {
	parts := make([]string, 0, len(hazard.Classifications))
	for _, c := range hazard.Classifications {
		parts = append(parts, fmt.Sprintf("SELECT hazard_id, '%s' AS kind FROM %s WHERE hazard_id IN @ids",
			string(c), recordFor(c).TableName()))
	}
	return strings.Join(parts, " UNION ALL ")
}()

func (r *detailRepository) KindsOf(ctx context.Context, hazardIDs []uint) (map[uint][]hazard.Classification, error) {
	kinds := make(map[uint][]hazard.Classification, len(hazardIDs))
	if len(hazardIDs) == 0 {
		return kinds, nil
	}

	var rows []struct {
		HazardID uint
		Kind     string
	}
	err := r.db.WithContext(ctx).
		Raw(kindsQuery, sql.Named("ids", hazardIDs)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// Keep the order of hazard.Classifications within each hazard
	for _, c := range hazard.Classifications {
		for _, row := range rows {
			if row.Kind == string(c) {
				kinds[row.HazardID] = append(kinds[row.HazardID], c)
			}
		}
	}
	return kinds, nil
}

func (r *detailRepository) Put(ctx context.Context, hazardID uint, d hazard.Detail) error {
	if d == nil || hazardID == 0 {
		return ErrInvalidInput
	}
	target := d.Classification()
	db := r.db.WithContext(ctx)

	for _, c := range hazard.Classifications {
		if c == target {
			continue
		}
		if err := db.Where("hazard_id = ?", hazardID).Delete(recordFor(c)).Error; err != nil {
			return err
		}
	}

	rec := recordFromDetail(d)
	rec.SetHazardID(hazardID)

	existing := recordFor(target)
	err := db.Where("hazard_id = ?", hazardID).First(existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(rec).Error
	case err != nil:
		return err
	}

	rec.Base().ID = existing.Base().ID
	rec.Base().CreatedAt = existing.Base().CreatedAt
	return db.Save(rec).Error
}

func (r *detailRepository) Delete(ctx context.Context, hazardID uint) error {
	for _, c := range hazard.Classifications {
		if err := r.db.WithContext(ctx).Where("hazard_id = ?", hazardID).Delete(recordFor(c)).Error; err != nil {
			return err
		}
	}
	return nil
}

// recordFor returns an empty row of the sub-record table of c.
func recordFor(c hazard.Classification) entities.DetailRecord {
	switch c {
	case hazard.Flood:
		return &entities.Flood{}
	case hazard.Storm:
		return &entities.Storm{}
	case hazard.Landslide:
		return &entities.Landslide{}
	case hazard.Wildfire:
		return &entities.Wildfire{}
	case hazard.Earthquake:
		return &entities.Earthquake{}
	case hazard.Abrasion:
		return &entities.Abrasion{}
	case hazard.Drought:
		return &entities.Drought{}
	case hazard.Tsunami:
		return &entities.Tsunami{}
	case hazard.VolcanicEruption:
		return &entities.VolcanicEruption{}
	case hazard.Other:
		return &entities.OtherHazard{}
	default:
		panic(fmt.Sprintf("repository: no sub-record table for classification %q", string(c)))
	}
}

func recordFromDetail(d hazard.Detail) entities.DetailRecord {
	if eq, ok := d.(hazard.EarthquakeDetail); ok {
		return &entities.Earthquake{
			Magnitude:   eq.Magnitude,
			Depth:       eq.Depth,
			Latitude:    eq.Latitude,
			Longitude:   eq.Longitude,
			ShakemapURL: eq.ShakemapURL,
		}
	}
	return recordFor(d.Classification())
}

func detailFromRecord(rec entities.DetailRecord) hazard.Detail {
	switch v := rec.(type) {
	case *entities.Earthquake:
		return hazard.EarthquakeDetail{
			Magnitude:   v.Magnitude,
			Depth:       v.Depth,
			Latitude:    v.Latitude,
			Longitude:   v.Longitude,
			ShakemapURL: v.ShakemapURL,
		}
	case *entities.Flood:
		return hazard.FloodDetail{}
	case *entities.Storm:
		return hazard.StormDetail{}
	case *entities.Landslide:
		return hazard.LandslideDetail{}
	case *entities.Wildfire:
		return hazard.WildfireDetail{}
	case *entities.Abrasion:
		return hazard.AbrasionDetail{}
	case *entities.Drought:
		return hazard.DroughtDetail{}
	case *entities.Tsunami:
		return hazard.TsunamiDetail{}
	case *entities.VolcanicEruption:
		return hazard.VolcanicEruptionDetail{}
	default:
		return hazard.OtherDetail{}
	}
}
