package geocode

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

// notFound marks a cached negative answer.
type notFound struct{}

// Cached memoizes another Geocoder, including negative answers.
type Cached struct {
	next  Geocoder
	cache *cache.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps next with a cache whose entries live for ttl.
func NewCached(next Geocoder, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cached{next: next, cache: cache.New(ttl, ttl*2)}
}

func cacheKey(q Query) string {
	return strings.ToLower(q.CountryCode + "|" + q.Area + "|" + q.Name)
}

// Geocode implements Geocoder.
func (c *Cached) Geocode(ctx context.Context, q Query) (*Place, error) {
	key := cacheKey(q)
	if cached, found := c.cache.Get(key); found {
		c.hits.Add(1)
		switch v := cached.(type) {
		case *Place:
			p := *v
			return &p, nil
		case notFound:
			return nil, ErrNoResult
		}
	}
	c.misses.Add(1)

	place, err := c.next.Geocode(ctx, q)
	switch {
	case errors.Is(err, ErrNoResult):
		c.cache.Set(key, notFound{}, cache.DefaultExpiration)
		return nil, err
	case err != nil:
		return nil, err
	}

	stored := *place
	c.cache.Set(key, &stored, cache.DefaultExpiration)
	return place, nil
}

// Stats returns cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
