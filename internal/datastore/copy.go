package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
)

// DefaultCopyBatchSize is the number of rows read and written per statement.
const DefaultCopyBatchSize = 1000

// TableCopy reports the copy of one table.
type TableCopy struct {
	Table    string
	Source   int64
	Copied   int64
	Skipped  int64 // already present in the target
	Duration time.Duration
}

// TableCount compares the row counts of one table.
type TableCount struct {
	Table  string
	Source int64
	Target int64
}

// Match reports whether both sides hold the same number of rows.
func (c TableCount) Match() bool {
	return c.Source == c.Target
}

type tableCopier struct {
	table string
	model any
	copy  func(ctx context.Context, src, dst *gorm.DB, batchSize int) (*TableCopy, error)
}

func copier[T any](table string) tableCopier {
	return tableCopier{
		table: table,
		model: new(T),
		copy: func(ctx context.Context, src, dst *gorm.DB, batchSize int) (*TableCopy, error) {
			return copyTable[T](ctx, src, dst, table, batchSize)
		},
	}
}

// copiers lists every table; parents come before rows that reference them.
func copiers() []tableCopier {
	return []tableCopier{
		copier[entities.Hazard]("hazards"),
		copier[entities.Earthquake]("earthquakes"),
		copier[entities.Flood]("floods"),
		copier[entities.Storm]("storms"),
		copier[entities.Landslide]("landslides"),
		copier[entities.Wildfire]("wildfires"),
		copier[entities.Abrasion]("abrasions"),
		copier[entities.Drought]("droughts"),
		copier[entities.Tsunami]("tsunamis"),
		copier[entities.VolcanicEruption]("volcanic_eruptions"),
		copier[entities.OtherHazard]("other_hazards"),
		copier[entities.Location]("locations"),
		copier[entities.Impact]("impacts"),
		copier[entities.Attachment]("attachments"),
		copier[entities.Activity]("activities"),
	}
}

// Copy copies every row from src to dst, preserving primary keys, so a
// SQLite store can be moved to MySQL. dst is migrated first. Rows whose key
// already exists in dst are skipped, which makes Copy safe to re-run.
func Copy(ctx context.Context, src, dst *gorm.DB, batchSize int) ([]TableCopy, error) {
	if batchSize <= 0 {
		batchSize = DefaultCopyBatchSize
	}
	if err := Migrate(dst); err != nil {
		return nil, err
	}

	var stats []TableCopy
	for _, c := range copiers() {
		if err := ctx.Err(); err != nil {
			return stats, errors.New(err).
				Component("datastore").
				Category(errors.CategoryCancellation).
				Context("operation", "copy").
				Build()
		}
		s, err := c.copy(ctx, src, dst, batchSize)
		if err != nil {
			return stats, err
		}
		stats = append(stats, *s)
		getLogger().Info("table copied",
			"table", s.Table, "source", s.Source, "copied", s.Copied, "skipped", s.Skipped, "duration", s.Duration)
	}
	return stats, nil
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB, table string, batchSize int) (*TableCopy, error) {
	start := time.Now()
	stats := &TableCopy{Table: table}

	if err := src.WithContext(ctx).Model(new(T)).Count(&stats.Source).Error; err != nil {
		return nil, copyError(err, table, "count")
	}
	if stats.Source == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	// hooks would assign new identifiers and rewrite normalized columns
	target := dst.WithContext(ctx).Session(&gorm.Session{SkipHooks: true})

	var batch []T
	err := src.WithContext(ctx).Model(new(T)).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		result := target.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if result.Error != nil {
			return result.Error
		}
		stats.Copied += result.RowsAffected
		stats.Skipped += int64(len(batch)) - result.RowsAffected
		return nil
	}).Error
	if err != nil {
		return nil, copyError(err, table, "insert")
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// VerifyCounts compares the row count of every table in src and dst.
func VerifyCounts(ctx context.Context, src, dst *gorm.DB) ([]TableCount, error) {
	var counts []TableCount
	for _, c := range copiers() {
		tc := TableCount{Table: c.table}
		if err := src.WithContext(ctx).Model(c.model).Count(&tc.Source).Error; err != nil {
			return nil, copyError(err, c.table, "count")
		}
		if err := dst.WithContext(ctx).Model(c.model).Count(&tc.Target).Error; err != nil {
			return nil, copyError(err, c.table, "count")
		}
		counts = append(counts, tc)
	}
	return counts, nil
}

func copyError(err error, table, operation string) error {
	return errors.New(fmt.Errorf("copying %s: %w", table, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("table", table).
		Context("operation", operation).
		Build()
}
