// Package metrics provides constants used across metric definitions.
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Run outcome label values.
const (
	OutcomeNewData     = "new_data"
	OutcomeNoData      = "no_data"
	OutcomeUnavailable = "source_unavailable"
	OutcomeIntegrity   = "integrity_violation"
	OutcomeError       = "error"
)

// Candidate disposition label values.
const (
	DispositionFetched   = "fetched"
	DispositionEligible  = "eligible"
	DispositionStale     = "stale"
	DispositionDuplicate = "duplicate"
	DispositionMalformed = "malformed"
)

// Child action label values.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionUnchanged = "unchanged"
	ActionDeleted   = "deleted"
)

// Histogram bucket constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
)
