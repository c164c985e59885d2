// Package metrics provides custom Prometheus metrics for the hazardwatch service.
package metrics

import "time"

// IngestRecorder receives the outcome of ingestion runs. The pipeline
// depends on this interface so tests and commands without a metrics
// registry can pass NopRecorder.
type IngestRecorder interface {
	// RecordRun records a finished run with its outcome label and duration.
	RecordRun(source, outcome string, duration time.Duration)
	// RecordCandidates adds n candidates with the given disposition.
	RecordCandidates(source, disposition string, n int)
	// RecordHazards records created and matched hazards of a committed run.
	RecordHazards(source string, created, updated int)
	// RecordChildren records association changes of a committed run.
	// kind is location, impact or attachment.
	RecordChildren(source, kind string, created, updated, unchanged, deleted int)
	// RecordAttachmentSkipped records an attachment that could not be fetched.
	RecordAttachmentSkipped(source, reason string)
	// SetCursor publishes the cursor position of a source.
	SetCursor(source string, cursor time.Time)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordRun(string, string, time.Duration)           {}
func (NopRecorder) RecordCandidates(string, string, int)              {}
func (NopRecorder) RecordHazards(string, int, int)                    {}
func (NopRecorder) RecordChildren(string, string, int, int, int, int) {}
func (NopRecorder) RecordAttachmentSkipped(string, string)            {}
func (NopRecorder) SetCursor(string, time.Time)                       {}

var (
	_ IngestRecorder = NopRecorder{}
	_ IngestRecorder = (*IngestMetrics)(nil)
)
