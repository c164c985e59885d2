// Package geocode resolves place names to coordinates and administrative
// areas. It is an optional enrichment step of ingestion; callers treat
// failures as non-fatal.
package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/placename"
)

// ErrNoResult is returned when the service knows no place for a query.
var ErrNoResult = errors.NewStd("no geocoding result")

// Query is a forward geocoding request.
type Query struct {
	Name        string // most specific place name
	Area        string // enclosing administrative area, optional
	CountryCode string // ISO 3166-1 alpha-2, optional
}

// String renders the free-form search text.
func (q Query) String() string {
	parts := []string{q.Name}
	if q.Area != "" {
		parts = append(parts, q.Area)
	}
	return strings.Join(parts, ", ")
}

// Place is a geocoding result.
type Place struct {
	Latitude              float64
	Longitude             float64
	DisplayName           string
	Country               string
	CountryCode           string
	AdministrativeArea    string // province
	SubAdministrativeArea string // regency or city
	Locality              string // district
	SubLocality           string // village
	PostalCode            string
}

// Geocoder looks up a place.
type Geocoder interface {
	Geocode(ctx context.Context, q Query) (*Place, error)
}

func getLogger() *slog.Logger {
	return logging.ForService("geocode")
}

// EnrichCandidate fills coordinates and missing administrative names of
// every location of c that has none. Lookup failures are logged and leave
// the location as it was. It returns the number of locations enriched.
func EnrichCandidate(ctx context.Context, g Geocoder, c *hazard.Candidate) int {
	enriched := 0
	for i := range c.Locations {
		loc := &c.Locations[i]
		if loc.Deleted() || loc.Fields.HasCoordinates() {
			continue
		}
		name := placename.Normalize(loc.Fields.Name())
		if name == "" {
			continue
		}

		q := Query{Name: name, CountryCode: "id"}
		if area := loc.Fields.AdministrativeArea; area != "" && placename.Normalize(area) != name {
			q.Area = placename.Normalize(area)
		}

		place, err := g.Geocode(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return enriched
			}
			level := slog.LevelWarn
			if errors.Is(err, ErrNoResult) {
				level = slog.LevelDebug
			}
			getLogger().Log(ctx, level, "Geocoding failed, location left without coordinates",
				"feed", c.Feed,
				"query", q.String(),
				"error", err)
			continue
		}

		applyPlace(&loc.Fields, place)
		enriched++
	}
	return enriched
}

// applyPlace copies coordinates and fills only empty name fields.
func applyPlace(f *hazard.LocationFields, p *Place) {
	lat, lon := p.Latitude, p.Longitude
	f.Latitude, f.Longitude = &lat, &lon
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&f.Country, p.Country)
	fill(&f.CountryCode, strings.ToUpper(p.CountryCode))
	fill(&f.AdministrativeArea, p.AdministrativeArea)
	fill(&f.SubAdministrativeArea, p.SubAdministrativeArea)
	fill(&f.Locality, p.Locality)
	fill(&f.SubLocality, p.SubLocality)
	fill(&f.PostalCode, p.PostalCode)
}
