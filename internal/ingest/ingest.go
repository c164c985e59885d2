// Package ingest runs one source through the pipeline: fetch, cursor
// filter, enrichment, attachment download, and a single transaction that
// upserts hazards and reconciles their children. Notifications and metrics
// follow the commit.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/assoc"
	"github.com/hazardwatch/hazardwatch/internal/attachment"
	"github.com/hazardwatch/hazardwatch/internal/cursor"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/geocode"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/notify"
	"github.com/hazardwatch/hazardwatch/internal/observability/metrics"
	"github.com/hazardwatch/hazardwatch/internal/sources"
	"github.com/hazardwatch/hazardwatch/internal/upsert"
)

// Sources resolves a source name to its registry entry.
type Sources interface {
	Get(name string) (sources.Entry, error)
}

// Pipeline ingests sources into the store.
type Pipeline struct {
	store       *repository.Store
	sources     Sources
	attachments *attachment.Manager
	downloader  *attachment.Downloader
	geocoder    geocode.Geocoder
	notifier    notify.Notifier
	recorder    metrics.IngestRecorder
	bulkInsert  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGeocoder enables location enrichment.
func WithGeocoder(g geocode.Geocoder) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// WithDownloader enables attachment downloads. Without one every attachment
// payload carrying a URL is skipped.
func WithDownloader(d *attachment.Downloader) Option {
	return func(p *Pipeline) { p.downloader = d }
}

// WithNotifier sets the notifier called after a commit that created hazards.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.IngestRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithBulkInsert toggles inserting new hazards of a run in one statement.
func WithBulkInsert(enabled bool) Option {
	return func(p *Pipeline) { p.bulkInsert = enabled }
}

// New creates a Pipeline.
func New(store *repository.Store, srcs Sources, attachments *attachment.Manager, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		sources:     srcs,
		attachments: attachments,
		notifier:    notify.Nop{},
		recorder:    metrics.NopRecorder{},
		bulkInsert:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func getLogger() *slog.Logger {
	return logging.ForService("ingest")
}

// Report summarizes one run.
type Report struct {
	Source    string
	Cursor    time.Time // before the run
	NewCursor time.Time // after the run
	Fetched   int
	Eligible  int
	Stale     int
	Duplicate int
	Malformed int

	Created []notify.HazardSummary
	Matched int

	Locations          assoc.Stats
	Impacts            assoc.Stats
	Attachments        assoc.Stats
	AttachmentsCloned  int
	AttachmentsSkipped int
	Geocoded           int

	Duration time.Duration
}

// HasNewData reports whether the run stored at least one hazard.
func (r *Report) HasNewData() bool {
	return len(r.Created) > 0
}

// Run ingests the named source on behalf of actor and reports whether new
// hazards were stored.
func (p *Pipeline) Run(ctx context.Context, name string, actor hazard.Actor) (bool, error) {
	report, err := p.RunReport(ctx, name, actor)
	if err != nil {
		return false, err
	}
	return report.HasNewData(), nil
}

// RunReport is Run returning the full report.
func (p *Pipeline) RunReport(ctx context.Context, name string, actor hazard.Actor) (report *Report, err error) {
	entry, err := p.sources.Get(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report = &Report{Source: name}
	defer func() {
		report.Duration = time.Since(start)
		p.recorder.RecordRun(name, outcomeOf(report, err), report.Duration)
	}()

	src := entry.Source
	key := cursor.Key{Feed: name, Category: src.Category(), Statuses: entry.CursorStatus}
	filter := cursor.NewFilter(p.store.Hazards, p.newUpserter(p.store))

	since, err := filter.Position(ctx, key)
	if err != nil {
		return report, err
	}
	report.Cursor, report.NewCursor = since, since

	candidates, err := src.Fetch(ctx, since)
	if err != nil {
		getLogger().Warn("Source fetch failed",
			"source", name,
			"error", err)
		return report, err
	}
	report.Fetched = len(candidates)
	p.recorder.RecordCandidates(name, metrics.DispositionFetched, len(candidates))

	res, err := filter.Apply(ctx, key, candidates)
	if err != nil {
		return report, err
	}
	report.Cursor, report.NewCursor = res.Cursor, res.Cursor
	report.Eligible, report.Stale = len(res.Eligible), res.Stale
	report.Duplicate, report.Malformed = res.Duplicate, res.Malformed
	p.recorder.RecordCandidates(name, metrics.DispositionEligible, report.Eligible)
	p.recorder.RecordCandidates(name, metrics.DispositionStale, report.Stale)
	p.recorder.RecordCandidates(name, metrics.DispositionDuplicate, report.Duplicate)
	p.recorder.RecordCandidates(name, metrics.DispositionMalformed, report.Malformed)

	if len(res.Eligible) == 0 {
		p.recorder.SetCursor(name, res.Cursor)
		getLogger().Debug("No new hazards",
			"source", name,
			"fetched", report.Fetched,
			"cursor", res.Cursor.Format(time.RFC3339))
		return report, nil
	}

	eligible := res.Eligible
	if p.geocoder != nil {
		for i := range eligible {
			report.Geocoded += geocode.EnrichCandidate(ctx, p.geocoder, &eligible[i])
		}
	}

	files := p.download(ctx, name, eligible, report)
	defer files.cleanup()

	if err := p.persist(ctx, eligible, files, actor, report); err != nil {
		getLogger().Error("Ingestion transaction rolled back",
			"source", name,
			"eligible", len(eligible),
			"error", err)
		return report, err
	}

	report.NewCursor = cursor.Newest(res.Cursor, eligible)
	p.recordCommitted(name, report)

	if len(report.Created) > 0 {
		if err := p.notifier.NotifyCreated(ctx, report.Created); err != nil {
			getLogger().Warn("Failed to notify about new hazards",
				"source", name,
				"hazards", len(report.Created),
				"error", err)
		}
	}

	getLogger().Info("Ingestion run committed",
		"source", name,
		"actor", actor.String(),
		"created", len(report.Created),
		"matched", report.Matched,
		"locations_created", report.Locations.Created,
		"attachments_created", report.Attachments.Created,
		"attachments_skipped", report.AttachmentsSkipped,
		"cursor", report.NewCursor.Format(time.RFC3339))
	return report, nil
}

func (p *Pipeline) newUpserter(store *repository.Store) *upsert.Upserter {
	return upsert.New(store, upsert.WithBulkInsert(p.bulkInsert))
}

func (p *Pipeline) recordCommitted(name string, r *Report) {
	p.recorder.RecordHazards(name, len(r.Created), r.Matched)
	p.recorder.RecordChildren(name, "location", r.Locations.Created, r.Locations.Updated, r.Locations.Unchanged, r.Locations.Deleted)
	p.recorder.RecordChildren(name, "impact", r.Impacts.Created, r.Impacts.Updated, r.Impacts.Unchanged, r.Impacts.Deleted)
	p.recorder.RecordChildren(name, "attachment", r.Attachments.Created, r.Attachments.Updated, r.Attachments.Unchanged, r.Attachments.Deleted)
	p.recorder.SetCursor(name, r.NewCursor)
}

// outcomeOf maps a finished run to its metric label.
func outcomeOf(r *Report, err error) string {
	switch {
	case err == nil && r.HasNewData():
		return metrics.OutcomeNewData
	case err == nil:
		return metrics.OutcomeNoData
	case errors.IsSourceUnavailable(err):
		return metrics.OutcomeUnavailable
	case errors.IsIntegrity(err):
		return metrics.OutcomeIntegrity
	default:
		return metrics.OutcomeError
	}
}
