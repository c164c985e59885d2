// Package app assembles the hazardwatch components from settings.
package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/api"
	"github.com/hazardwatch/hazardwatch/internal/attachment"
	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/datastore"
	"github.com/hazardwatch/hazardwatch/internal/datastore/repository"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/geocode"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/ingest"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/notify"
	"github.com/hazardwatch/hazardwatch/internal/observability"
	"github.com/hazardwatch/hazardwatch/internal/scheduler"
	"github.com/hazardwatch/hazardwatch/internal/sources"
)

// incomingDir holds downloads until they are imported into the blob store.
const incomingDir = ".incoming"

// App holds the wired components of one process.
type App struct {
	Settings  *conf.Settings
	Metrics   *observability.Metrics
	DB        *gorm.DB
	Store     *repository.Store
	Registry  *sources.Registry
	Pipeline  *ingest.Pipeline
	Scheduler *scheduler.Scheduler

	notifier  notify.Notifier
	closeOnce sync.Once
}

func getLogger() *slog.Logger {
	return logging.ForService("app")
}

// New opens the database and builds every component enabled in settings.
// The caller must Close the returned App.
func New(settings *conf.Settings) (*App, error) {
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategorySystem).
			Context("operation", "create-metrics").
			Build()
	}

	db, err := datastore.Open(settings, datastore.Options{
		Debug:    settings.Debug,
		Observer: m.Datastore,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Settings: settings, Metrics: m, DB: db, Store: repository.NewStore(db)}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	settings := a.Settings

	tempDir := filepath.Join(settings.Media.Path, incomingDir)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryFileIO).
			Context("operation", "create-incoming-dir").
			Build()
	}

	client := httpclient.New(&httpclient.Config{
		DefaultTimeout: settings.HTTP.Timeout,
		UserAgent:      settings.HTTP.UserAgent,
		MaxRetries:     settings.HTTP.MaxRetries,
		RetryDelay:     settings.HTTP.RetryDelay,
		RateLimit:      settings.HTTP.RateLimit,
		TempDir:        tempDir,
	})

	registry, err := sources.FromSettings(settings, client)
	if err != nil {
		return err
	}
	a.Registry = registry

	blobs, err := attachment.NewBlobStore(settings.Media.Path)
	if err != nil {
		return err
	}

	notifier, err := notify.FromSettings(settings, a.Metrics.Notify)
	if err != nil {
		return err
	}
	a.notifier = notifier

	opts := []ingest.Option{
		ingest.WithDownloader(attachment.NewDownloader(client, settings.Media.MaxSize)),
		ingest.WithNotifier(notifier),
		ingest.WithRecorder(a.Metrics.Ingest),
		ingest.WithBulkInsert(settings.Database.BulkInsert),
	}
	if g := settings.Geocoder; g.Enabled {
		nominatim := geocode.NewNominatim(geocode.NominatimConfig{
			Endpoint:  g.Endpoint,
			Language:  g.Language,
			RateLimit: g.RateLimit,
			Timeout:   g.Timeout,
			UserAgent: settings.HTTP.UserAgent,
		})
		opts = append(opts, ingest.WithGeocoder(geocode.NewCached(nominatim, g.CacheTTL)))
	}

	a.Pipeline = ingest.New(a.Store, registry, attachment.NewManager(blobs), opts...)
	a.Scheduler = scheduler.New(a.Pipeline, registry, settings.Scheduler.Parallel)

	getLogger().Info("components ready",
		"sources", registry.Names(),
		"database", settings.Database.Type,
		"geocoder", settings.Geocoder.Enabled)
	return nil
}

// Serve runs the scheduler and the admin API, as enabled, until ctx is
// cancelled, then shuts both down. In-flight runs are allowed to finish.
func (a *App) Serve(ctx context.Context) error {
	logger := getLogger()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var server *api.Server
	serverErr := make(chan error, 1)
	if a.Settings.WebServer.Enabled {
		var err error
		server, err = api.New(api.ConfigFromSettings(a.Settings), a.Scheduler, a.Registry, api.WithMetrics(a.Metrics))
		if err != nil {
			return err
		}
		go func() {
			if err := server.Start(); err != nil {
				serverErr <- err
			}
			close(serverErr)
		}()
	}

	if a.Settings.Scheduler.Enabled {
		a.Scheduler.Start(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err, ok := <-serverErr:
		if ok {
			runErr = err
		}
	}

	if server != nil {
		if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("admin API shutdown failed", "error", err)
		}
	}

	cancel()
	start := time.Now()
	a.Scheduler.Wait()
	logger.Info("scheduler stopped", "waited", time.Since(start))
	return runErr
}

// Close releases the notifier and the database connection.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.notifier != nil {
			a.notifier.Close()
		}
		if err := datastore.Close(a.DB); err != nil {
			getLogger().Warn("closing database failed", "error", err)
		}
	})
}
