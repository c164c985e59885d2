// Package scheduler triggers source ingestion periodically and on demand.
//
// Concurrent triggers of the same source and category share one run. A run
// that has started is detached from its caller's cancellation so the batch
// either commits or rolls back as a whole; cancellation is only observed
// between sources.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/sources"
)

// Runner ingests one source.
type Runner interface {
	Run(ctx context.Context, name string, actor hazard.Actor) (bool, error)
}

// Scheduler coordinates runs of the registered sources.
type Scheduler struct {
	runner   Runner
	registry *sources.Registry
	parallel int

	group singleflight.Group

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Scheduler. parallel bounds the sources RunAll ingests at
// once; values below 2 run them one after another.
func New(runner Runner, registry *sources.Registry, parallel int) *Scheduler {
	if parallel < 1 {
		parallel = 1
	}
	return &Scheduler{runner: runner, registry: registry, parallel: parallel}
}

func getLogger() *slog.Logger {
	return logging.ForService("scheduler")
}

func flightKey(e sources.Entry) string {
	return e.Source.Name() + "|" + string(e.Source.Category())
}

// ErrStopped is returned by Trigger once Wait has been called.
var ErrStopped = errors.NewStd("scheduler stopped")

// track registers work with the WaitGroup unless Wait has begun.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func cancelled(err error, name string) error {
	return errors.New(err).
		Component("scheduler").
		Category(errors.CategoryCancellation).
		Context("source", name).
		Build()
}

// Trigger runs the named source, or joins the run already in progress for
// it. When ctx ends first Trigger returns a cancellation error while the run
// itself continues to completion.
func (s *Scheduler) Trigger(ctx context.Context, name string, actor hazard.Actor) (bool, error) {
	entry, err := s.registry.Get(name)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, cancelled(err, name)
	}

	// Every caller stays tracked until the run it started or joined ends
	if !s.track() {
		return false, cancelled(ErrStopped, name)
	}

	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey(entry), func() (any, error) {
		return s.runner.Run(detached, name, actor)
	})

	select {
	case r := <-ch:
		s.wg.Done()
		if r.Shared {
			getLogger().Debug("Joined running ingestion", "source", name, "actor", actor.String())
		}
		hadData, _ := r.Val.(bool)
		return hadData, r.Err
	case <-ctx.Done():
		go func() {
			<-ch
			s.wg.Done()
		}()
		return false, cancelled(ctx.Err(), name)
	}
}

// RunAll triggers every registered source as actor. One failing source does
// not stop the others; their errors are joined. Sources not yet started when
// ctx ends are skipped.
func (s *Scheduler) RunAll(ctx context.Context, actor hazard.Actor) (bool, error) {
	var (
		mu      sync.Mutex
		errs    []error
		hadData bool
	)
	run := func(name string) {
		got, err := s.Trigger(ctx, name, actor)
		mu.Lock()
		defer mu.Unlock()
		hadData = hadData || got
		if err != nil {
			errs = append(errs, err)
		}
	}

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for _, name := range s.registry.Names() {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			errs = append(errs, cancelled(err, name))
			mu.Unlock()
			break
		}
		g.Go(func() error {
			run(name)
			return nil
		})
	}
	_ = g.Wait()

	return hadData, errors.Join(errs...)
}

// Start launches one ticker per source with a positive interval. Each source
// is ingested once immediately and then on every tick until ctx ends. Call
// Wait to block until every loop and detached run has finished.
func (s *Scheduler) Start(ctx context.Context) {
	for _, entry := range s.registry.Entries() {
		if entry.Interval <= 0 {
			continue
		}
		if !s.track() {
			return
		}
		go s.loop(ctx, entry)
	}
}

func (s *Scheduler) loop(ctx context.Context, entry sources.Entry) {
	defer s.wg.Done()

	name := entry.Source.Name()
	getLogger().Info("Scheduling source", "source", name, "interval", entry.Interval.String())

	ticker := time.NewTicker(entry.Interval)
	defer ticker.Stop()

	for {
		s.tick(ctx, name)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, name string) {
	hadData, err := s.Trigger(ctx, name, hazard.SystemActor)
	switch {
	case err == nil:
		getLogger().Debug("Scheduled ingestion finished", "source", name, "has_data", hadData)
	case errors.IsCategory(err, errors.CategoryCancellation):
	default:
		getLogger().Warn("Scheduled ingestion failed", "source", name, "error", err)
	}
}

// Wait blocks until the loops started by Start have returned and detached
// runs have finished. Afterwards the scheduler accepts no new runs.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}
