// Package bmkg reads the BMKG earthquake JSON feeds.
package bmkg

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// SourceLabel is stored as the source of every BMKG hazard.
const SourceLabel = "BMKG"

// Kind selects one of the BMKG feeds.
type Kind int

const (
	// Recent is autogempa.json, the single most recent earthquake.
	Recent Kind = iota
	// Felt is gempadirasakan.json, recent earthquakes that were felt.
	Felt
	// Realtime is gempaterkini.json, recent M5.0+ earthquakes.
	Realtime
)

// Name returns the feed name used as the source and cursor key.
func (k Kind) Name() string {
	switch k {
	case Recent:
		return "bmkg-recent"
	case Felt:
		return "bmkg-felt"
	case Realtime:
		return "bmkg-realtime"
	default:
		return "bmkg-unknown"
	}
}

// Fetcher retrieves a response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...httpclient.RequestOption) ([]byte, error)
}

// Feed is a source over one BMKG feed.
type Feed struct {
	kind         Kind
	url          string
	shakemapBase string
	client       Fetcher
}

// New creates a feed of the given kind. shakemapBase is the directory the
// shakemap image names are resolved against.
func New(kind Kind, url, shakemapBase string, client Fetcher) *Feed {
	if shakemapBase != "" && !strings.HasSuffix(shakemapBase, "/") {
		shakemapBase += "/"
	}
	return &Feed{kind: kind, url: url, shakemapBase: shakemapBase, client: client}
}

func getLogger() *slog.Logger {
	return logging.ForService("sources.bmkg")
}

// Name implements sources.Source.
func (f *Feed) Name() string { return f.kind.Name() }

// Category implements sources.Source.
func (f *Feed) Category() hazard.Classification { return hazard.Earthquake }

// Fetch downloads the feed and parses every record. The feeds are small and
// fully re-read on each run, so since is not used.
func (f *Feed) Fetch(ctx context.Context, _ time.Time) ([]hazard.Candidate, error) {
	body, err := f.client.Fetch(ctx, f.url)
	if err != nil {
		return nil, err
	}

	candidates, err := Parse(f.kind, body, f.shakemapBase)
	if err != nil {
		getLogger().Warn("BMKG feed payload is malformed, nothing ingested",
			"feed", f.Name(),
			"url", f.url,
			"error", err)
		return nil, nil
	}
	if len(candidates) == 0 {
		getLogger().Warn("BMKG feed returned no usable records",
			"feed", f.Name(),
			"url", f.url)
	}
	return candidates, nil
}
