package geocode

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
)

// Nominatim queries an OpenStreetMap Nominatim search endpoint.
// Its public usage policy allows one request per second; the client's rate
// limiter enforces that.
type Nominatim struct {
	client   *httpclient.Client
	endpoint string
	language string
	timeout  time.Duration
}

// NominatimConfig configures a Nominatim client.
type NominatimConfig struct {
	Endpoint  string
	Language  string
	RateLimit float64 // requests per second
	Timeout   time.Duration
	UserAgent string
}

// NewNominatim creates a Nominatim geocoder with its own rate-limited client.
func NewNominatim(cfg NominatimConfig) *Nominatim {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.RateLimit <= 0 || cfg.RateLimit > 1 {
		cfg.RateLimit = 1
	}
	return newNominatim(cfg, httpclient.New(&httpclient.Config{
		DefaultTimeout: cfg.Timeout,
		UserAgent:      cfg.UserAgent,
		RateLimit:      cfg.RateLimit,
		MaxRetries:     1,
	}))
}

func newNominatim(cfg NominatimConfig, client *httpclient.Client) *Nominatim {
	return &Nominatim{
		client:   client,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		language: cfg.Language,
		timeout:  cfg.Timeout,
	}
}

// Client exposes the HTTP client, for tests.
func (n *Nominatim) Client() *httpclient.Client {
	return n.client
}

type nominatimResult struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

// Geocode implements Geocoder.
func (n *Nominatim) Geocode(ctx context.Context, q Query) (*Place, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, errors.ValidationError("geocode query has no name")
	}

	params := map[string]string{
		"q":              q.String(),
		"format":         "jsonv2",
		"addressdetails": "1",
		"limit":          "1",
	}
	if n.language != "" {
		params["accept-language"] = n.language
	}
	if q.CountryCode != "" {
		params["countrycodes"] = strings.ToLower(q.CountryCode)
	}

	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := n.client.Fetch(reqCtx, n.endpoint+"/search", httpclient.WithQuery(params))
	if err != nil {
		return nil, errors.New(err).
			Component("geocode").
			Category(errors.CategoryGeocoding).
			Context("query", q.String()).
			Build()
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, errors.New(err).
			Component("geocode").
			Category(errors.CategoryFileParsing).
			Context("query", q.String()).
			Build()
	}
	if len(results) == 0 {
		return nil, ErrNoResult
	}
	return results[0].place()
}

func (r *nominatimResult) place() (*Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, errors.New(err).Component("geocode").Category(errors.CategoryFileParsing).Build()
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, errors.New(err).Component("geocode").Category(errors.CategoryFileParsing).Build()
	}

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := r.Address[k]; v != "" {
				return v
			}
		}
		return ""
	}
	return &Place{
		Latitude:              lat,
		Longitude:             lon,
		DisplayName:           r.DisplayName,
		Country:               first("country"),
		CountryCode:           first("country_code"),
		AdministrativeArea:    first("state", "region"),
		SubAdministrativeArea: first("county", "city", "regency"),
		Locality:              first("city_district", "municipality", "town", "suburb"),
		SubLocality:           first("village", "hamlet", "neighbourhood", "quarter"),
		PostalCode:            first("postcode"),
	}, nil
}
