// Package sources defines the source adapter contract and builds the set of
// enabled adapters from settings.
package sources

import (
	"context"
	"slices"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/sources/bmkg"
	"github.com/hazardwatch/hazardwatch/internal/sources/dibi"
	"github.com/hazardwatch/hazardwatch/internal/sources/social"
)

// ErrUnknownSource is returned for names no enabled source carries.
var ErrUnknownSource = errors.NewStd("unknown source")

// Source fetches and parses one upstream feed into candidates.
type Source interface {
	// Name identifies the source and keys its ingestion cursor.
	Name() string
	// Category is the classification the source is restricted to, empty for all.
	Category() hazard.Classification
	// Fetch returns the candidates currently published upstream. since is
	// the cursor value and only a hint for pruning.
	Fetch(ctx context.Context, since time.Time) ([]hazard.Candidate, error)
}

// Entry is a registered source with its polling settings.
type Entry struct {
	Source       Source
	Interval     time.Duration
	CursorStatus []string
}

// Registry holds the enabled sources in registration order.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a source. Names must be unique.
func (r *Registry) Register(src Source, feed conf.FeedSettings) error {
	name := src.Name()
	if _, exists := r.entries[name]; exists {
		return errors.Newf("source %q registered twice", name).
			Component("sources").
			Category(errors.CategoryConfiguration).
			Build()
	}
	r.entries[name] = Entry{
		Source:       src,
		Interval:     feed.Interval,
		CursorStatus: slices.Clone(feed.CursorStatus),
	}
	r.order = append(r.order, name)
	return nil
}

// Get returns the named entry.
func (r *Registry) Get(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, errors.New(ErrUnknownSource).
			Component("sources").
			Category(errors.CategoryNotFound).
			Context("source", name).
			Build()
	}
	return e, nil
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Entries returns every entry in registration order.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}
	return entries
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}

// FromSettings registers every enabled source. client is shared by the
// anonymous feeds; the social source gets its own authenticated client.
func FromSettings(settings *conf.Settings, client *httpclient.Client) (*Registry, error) {
	r := NewRegistry()
	s := &settings.Sources

	feeds := []struct {
		kind bmkg.Kind
		feed conf.FeedSettings
	}{
		{bmkg.Recent, s.BMKG.Recent},
		{bmkg.Felt, s.BMKG.Felt},
		{bmkg.Realtime, s.BMKG.Realtime},
	}
	for _, f := range feeds {
		if !f.feed.Enabled {
			continue
		}
		if err := r.Register(bmkg.New(f.kind, f.feed.URL, s.BMKG.ShakemapBaseURL, client), f.feed); err != nil {
			return nil, err
		}
	}

	if s.DIBI.Enabled {
		scraper, err := dibi.New(dibi.Config{
			URL:      s.DIBI.URL,
			Classify: s.DIBI.Classify,
			Pages:    s.DIBI.Pages,
		}, client)
		if err != nil {
			return nil, err
		}
		if err := r.Register(scraper, s.DIBI.FeedSettings); err != nil {
			return nil, err
		}
	}

	if s.Social.Enabled {
		authed := httpclient.New(&httpclient.Config{
			DefaultTimeout: settings.HTTP.Timeout,
			UserAgent:      settings.HTTP.UserAgent,
			MaxRetries:     settings.HTTP.MaxRetries,
			RetryDelay:     settings.HTTP.RetryDelay,
			RateLimit:      settings.HTTP.RateLimit,
			Transport:      social.NewTransport(s.Social.BearerToken, nil),
		})
		src := social.New(social.Config{
			URL:        s.Social.URL,
			Accounts:   s.Social.Accounts,
			MaxResults: s.Social.MaxResults,
		}, authed)
		if err := r.Register(src, s.Social.FeedSettings); err != nil {
			return nil, err
		}
	}

	return r, nil
}
