package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for ingestion runs.
type IngestMetrics struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	candidatesTotal    *prometheus.CounterVec
	hazardsTotal       *prometheus.CounterVec
	childrenTotal      *prometheus.CounterVec
	attachmentsSkipped *prometheus.CounterVec
	cursorTimestamp    *prometheus.GaugeVec
	lastSuccess        *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewIngestMetrics creates and registers new ingestion metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *IngestMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingestion runs by outcome",
		},
		[]string{"source", "outcome"}, // outcome: new_data, no_data, source_unavailable, integrity_violation, error
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Time taken for an ingestion run including fetch and commit",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~200s
		},
		[]string{"source"},
	)

	m.candidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_candidates_total",
			Help: "Candidates seen by the eligibility filter",
		},
		[]string{"source", "disposition"}, // disposition: fetched, eligible, stale, duplicate, malformed
	)

	m.hazardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_hazards_total",
			Help: "Hazards written by committed runs",
		},
		[]string{"source", "result"}, // result: created, updated
	)

	m.childrenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_children_total",
			Help: "Association changes written by committed runs",
		},
		[]string{"source", "kind", "action"},
	)

	m.attachmentsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_attachments_skipped_total",
			Help: "Attachments that could not be downloaded",
		},
		[]string{"source", "reason"},
	)

	m.cursorTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_cursor_timestamp_seconds",
			Help: "Occurrence time of the newest persisted hazard per source",
		},
		[]string{"source"},
	)

	m.lastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_last_success_timestamp_seconds",
			Help: "Time of the last run that did not fail",
		},
		[]string{"source"},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.candidatesTotal,
		m.hazardsTotal,
		m.childrenTotal,
		m.attachmentsSkipped,
		m.cursorTimestamp,
		m.lastSuccess,
	}
}

// Describe implements the Collector interface
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRun implements IngestRecorder.
func (m *IngestMetrics) RecordRun(source, outcome string, duration time.Duration) {
	m.runsTotal.WithLabelValues(source, outcome).Inc()
	m.runDuration.WithLabelValues(source).Observe(duration.Seconds())
	if outcome == OutcomeNewData || outcome == OutcomeNoData {
		m.lastSuccess.WithLabelValues(source).SetToCurrentTime()
	}
}

// RecordCandidates implements IngestRecorder.
func (m *IngestMetrics) RecordCandidates(source, disposition string, n int) {
	if n <= 0 {
		return
	}
	m.candidatesTotal.WithLabelValues(source, disposition).Add(float64(n))
}

// RecordHazards implements IngestRecorder.
func (m *IngestMetrics) RecordHazards(source string, created, updated int) {
	if created > 0 {
		m.hazardsTotal.WithLabelValues(source, ActionCreated).Add(float64(created))
	}
	if updated > 0 {
		m.hazardsTotal.WithLabelValues(source, ActionUpdated).Add(float64(updated))
	}
}

// RecordChildren implements IngestRecorder.
func (m *IngestMetrics) RecordChildren(source, kind string, created, updated, unchanged, deleted int) {
	for action, n := range map[string]int{
		ActionCreated:   created,
		ActionUpdated:   updated,
		ActionUnchanged: unchanged,
		ActionDeleted:   deleted,
	} {
		if n > 0 {
			m.childrenTotal.WithLabelValues(source, kind, action).Add(float64(n))
		}
	}
}

// RecordAttachmentSkipped implements IngestRecorder.
func (m *IngestMetrics) RecordAttachmentSkipped(source, reason string) {
	m.attachmentsSkipped.WithLabelValues(source, reason).Inc()
}

// SetCursor implements IngestRecorder.
func (m *IngestMetrics) SetCursor(source string, cursor time.Time) {
	m.cursorTimestamp.WithLabelValues(source).Set(float64(cursor.Unix()))
}
