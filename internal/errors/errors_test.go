package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool              { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestBuildReportsWhenReporterActive(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("feed %s unreachable", "bmkg").
		Component("source.bmkg").
		Category(CategoryNetwork).
		Context("attempt", 3).
		Build()

	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.Equal(t, "source.bmkg", ee.GetComponent())
	assert.Equal(t, 3, ee.GetContext()["attempt"])
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	inner := New(NewStd("duplicate natural key")).Category(CategoryIntegrity).Build()
	outer := New(fmt.Errorf("upsert batch: %w", inner)).Category(CategoryDatabase).Build()

	assert.True(t, IsCategory(outer, CategoryDatabase))
	assert.True(t, IsIntegrity(outer))
	assert.False(t, IsSourceUnavailable(outer))
	assert.False(t, IsCategory(fmt.Errorf("plain"), CategoryIntegrity))
}

func TestDetectCategoryFromWrappedEnhancedError(t *testing.T) {
	inner := New(NewStd("boom")).Category(CategoryTimeout).Build()
	ee := New(fmt.Errorf("fetch: %w", inner)).Build()

	assert.Equal(t, CategoryTimeout, ee.Category)
	assert.True(t, IsSourceUnavailable(ee))
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.GetPriority())
}

func TestBasicURLScrub(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		absent  []string
		present string
	}{
		{
			name:    "query string",
			input:   "GET https://api.example.com/search?query=from:bmkg&token=abc",
			absent:  []string{"abc", "from:bmkg"},
			present: "https://api.example.com/search?[REDACTED]",
		},
		{
			name:   "bearer token",
			input:  "auth failed: Bearer AAAAxyz",
			absent: []string{"AAAAxyz"},
		},
		{
			name:   "password",
			input:  "dsn password=hunter2 rejected",
			absent: []string{"hunter2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := basicURLScrub(tt.input)
			for _, s := range tt.absent {
				assert.NotContains(t, got, s)
			}
			if tt.present != "" {
				assert.Contains(t, got, tt.present)
			}
		})
	}
}
