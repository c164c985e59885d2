// Package cursor computes the ingestion high-water mark of a feed and filters
// candidates down to the ones a run still has to persist.
//
// The cursor is not stored anywhere. It is the occurrence time of the newest
// persisted hazard for the feed, classification and status predicate, or the
// epoch when none exists. A candidate is eligible when it is strictly newer
// than the cursor and no persisted hazard matches its natural key.
package cursor

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// Reader answers the cursor query.
type Reader interface {
	LatestOccurAt(ctx context.Context, feed string, classify hazard.Classification, statuses []string) (int64, bool, error)
}

// Matcher reports whether a persisted hazard already matches a natural key.
type Matcher interface {
	Match(ctx context.Context, key hazard.NaturalKey) (bool, error)
}

// Key selects the hazards a cursor is computed over.
type Key struct {
	Feed     string
	Category hazard.Classification // empty means any classification
	Statuses []string              // empty means any status
}

// Result is the outcome of filtering one batch of candidates.
type Result struct {
	Cursor    time.Time
	Eligible  []hazard.Candidate // sorted by occurrence time, ties by title
	Stale     int                // at or before the cursor
	Duplicate int                // natural key already persisted
	Malformed int                // dropped by validation
}

// Filter applies the cursor and natural-key conditions.
type Filter struct {
	reader  Reader
	matcher Matcher
}

// NewFilter creates a Filter.
func NewFilter(reader Reader, matcher Matcher) *Filter {
	return &Filter{reader: reader, matcher: matcher}
}

func getLogger() *slog.Logger {
	return logging.ForService("cursor")
}

// Position returns the cursor for key in Asia/Jakarta, hazard.Epoch when no
// hazard matches.
func (f *Filter) Position(ctx context.Context, key Key) (time.Time, error) {
	latest, ok, err := f.reader.LatestOccurAt(ctx, key.Feed, key.Category, key.Statuses)
	if err != nil {
		return time.Time{}, errors.New(err).
			Component("cursor").
			Category(errors.CategoryDatabase).
			Context("feed", key.Feed).
			Context("operation", "cursor_position").
			Build()
	}
	if !ok {
		return hazard.Epoch, nil
	}
	return time.Unix(latest, 0).In(hazard.Jakarta), nil
}

// Apply validates candidates and returns the eligible ones in ascending
// occurrence order. Malformed candidates are dropped and logged.
func (f *Filter) Apply(ctx context.Context, key Key, candidates []hazard.Candidate) (*Result, error) {
	cur, err := f.Position(ctx, key)
	if err != nil {
		return nil, err
	}

	res := &Result{Cursor: cur}
	for i := range candidates {
		c := candidates[i]
		if err := c.Validate(); err != nil {
			res.Malformed++
			getLogger().Warn("Dropping malformed candidate",
				"feed", key.Feed,
				"title", c.Title,
				"error", err)
			continue
		}

		// Validate already moved OccurAt into Asia/Jakarta; comparison is on instants
		if !c.OccurAt.After(cur) {
			res.Stale++
			continue
		}

		matched, err := f.matcher.Match(ctx, c.Key())
		if err != nil {
			return nil, errors.New(err).
				Component("cursor").
				Category(errors.CategoryDatabase).
				Context("feed", key.Feed).
				Context("operation", "natural_key_match").
				Build()
		}
		if matched {
			res.Duplicate++
			continue
		}
		res.Eligible = append(res.Eligible, c)
	}

	hazard.SortCandidates(res.Eligible)

	getLogger().Debug("Cursor filter applied",
		"feed", key.Feed,
		"cursor", cur.Format(time.RFC3339),
		"received", len(candidates),
		"eligible", len(res.Eligible),
		"stale", res.Stale,
		"duplicate", res.Duplicate,
		"malformed", res.Malformed)
	return res, nil
}

// Newest returns the latest occurrence time among candidates, or cur when
// candidates is empty. After a committed run this equals the new cursor.
func Newest(cur time.Time, candidates []hazard.Candidate) time.Time {
	if len(candidates) == 0 {
		return cur
	}
	latest := slices.MaxFunc(candidates, func(a, b hazard.Candidate) int {
		return a.OccurAt.Compare(b.OccurAt)
	})
	if latest.OccurAt.After(cur) {
		return latest.OccurAt
	}
	return cur
}
