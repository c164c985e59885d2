package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/testutil"
)

func loadSettings(t *testing.T, extra string) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	content := `
database:
  type: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "hazards.db") + `
media:
  path: ` + filepath.Join(dir, "media") + `
sources:
  bmkg:
    recent:
      enabled: false
    felt:
      enabled: true
    realtime:
      enabled: false
  dibi:
    enabled: false
  social:
    enabled: false
webserver:
  enabled: false
` + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := conf.LoadFile(path)
	require.NoError(t, err)
	return settings
}

func TestNewWiresEnabledSources(t *testing.T) {
	settings := loadSettings(t, "scheduler:\n  enabled: false\n")

	a, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, []string{"bmkg-felt"}, a.Registry.Names())
	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Scheduler)
	assert.DirExists(t, filepath.Join(settings.Media.Path, incomingDir))

	// migrated schema is usable
	_, ok, err := a.Store.Hazards.LatestOccurAt(context.Background(), "BMKG", hazard.Earthquake, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServeStopsOnCancel(t *testing.T) {
	settings := loadSettings(t, "scheduler:\n  enabled: false\n")

	a, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	cancel()
	assert.NoError(t, testutil.Receive(t, done, testutil.DefaultTestTimeout, "Serve did not return after cancellation"))
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(loadSettings(t, ""))
	require.NoError(t, err)

	a.Close()
	a.Close()
}
