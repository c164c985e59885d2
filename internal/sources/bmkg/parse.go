package bmkg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/placename"
)

// monthAbbreviations are the Indonesian month names used in the Tanggal field.
var monthAbbreviations = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "mei": time.May, "jun": time.June,
	"jul": time.July, "agu": time.August, "agt": time.August,
	"sep": time.September, "okt": time.October, "nov": time.November,
	"des": time.December,
}

// Parse decodes a feed body. The "gempa" member is a single object in the
// recent feed and an array in the others; both are accepted. Records that
// fail to parse are dropped with a warning.
func Parse(kind Kind, body []byte, shakemapBase string) ([]hazard.Candidate, error) {
	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, malformed(err, kind)
	}

	records, err := root.GetObjectArray("Infogempa", "gempa")
	if err != nil {
		single, objErr := root.GetObject("Infogempa", "gempa")
		if objErr != nil {
			return nil, malformed(fmt.Errorf("no Infogempa.gempa member: %w", objErr), kind)
		}
		records = []*jason.Object{single}
	}

	candidates := make([]hazard.Candidate, 0, len(records))
	for i, rec := range records {
		c, err := parseRecord(kind, rec, shakemapBase)
		if err != nil {
			getLogger().Warn("Dropping malformed BMKG record",
				"feed", kind.Name(),
				"index", i,
				"error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func malformed(err error, kind Kind) error {
	return errors.New(err).
		Component("sources.bmkg").
		Category(errors.CategoryFileParsing).
		Context("feed", kind.Name()).
		Build()
}

func parseRecord(kind Kind, rec *jason.Object, shakemapBase string) (hazard.Candidate, error) {
	occurAt, err := occurrenceTime(rec)
	if err != nil {
		return hazard.Candidate{}, err
	}

	lat, lon, err := coordinates(field(rec, "Coordinates"))
	if err != nil {
		return hazard.Candidate{}, err
	}

	magnitudeText := field(rec, "Magnitude")
	magnitude, err := strconv.ParseFloat(magnitudeText, 64)
	if err != nil {
		return hazard.Candidate{}, fmt.Errorf("magnitude %q: %w", magnitudeText, err)
	}

	depthText := field(rec, "Kedalaman")
	depth, err := ParseDepth(depthText)
	if err != nil {
		return hazard.Candidate{}, err
	}

	title := field(rec, "Wilayah")
	if title == "" {
		return hazard.Candidate{}, fmt.Errorf("record has no Wilayah")
	}

	felt := field(rec, "Dirasakan")
	potency := field(rec, "Potensi")

	var description string
	switch kind {
	case Felt:
		description = felt
	case Recent:
		description = strings.TrimSpace(felt + " " + potency)
	case Realtime:
		description = potency
	}

	shakemapURL := ""
	switch kind {
	case Recent:
		if name := field(rec, "Shakemap"); name != "" {
			shakemapURL = shakemapBase + name
		}
	case Felt:
		shakemapURL = ShakemapURL(shakemapBase, occurAt)
	}

	c := hazard.Candidate{
		Feed:           kind.Name(),
		Source:         SourceLabel,
		Classification: hazard.Earthquake,
		Title:          title,
		OccurAt:        occurAt,
		Description:    description,
		Detail: hazard.EarthquakeDetail{
			Magnitude:   magnitude,
			Depth:       float64(depth),
			Latitude:    lat,
			Longitude:   lon,
			ShakemapURL: shakemapURL,
		},
		Locations:       FeltLocations(felt),
		RawLocationText: felt,
		RawMetrics: map[string]string{
			"magnitude": magnitudeText,
			"depth":     depthText,
		},
	}
	if shakemapURL != "" {
		c.Attachments = []hazard.AttachmentPayload{{
			URL:        shakemapURL,
			Identifier: hazard.AttachmentShakemap,
			Caption:    title,
		}}
	}
	return c, nil
}

// field returns a member as text whether it is encoded as a string or number.
func field(rec *jason.Object, key string) string {
	v, err := rec.GetValue(key)
	if err != nil {
		return ""
	}
	if s, err := v.String(); err == nil {
		return strings.TrimSpace(s)
	}
	if n, err := v.Number(); err == nil {
		return n.String()
	}
	return ""
}

// occurrenceTime reads DateTime, falling back to Tanggal and Jam.
func occurrenceTime(rec *jason.Object) (time.Time, error) {
	if raw := field(rec, "DateTime"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.In(hazard.Jakarta), nil
		}
	}
	return parseLocalDate(field(rec, "Tanggal"), field(rec, "Jam"))
}

// parseLocalDate parses "23 Okt 2021" and "09:51:58 WIB" as Jakarta time.
func parseLocalDate(date, clock string) (time.Time, error) {
	parts := strings.Fields(date)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("unrecognized date %q", date)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized day in %q", date)
	}
	month, ok := monthAbbreviations[strings.ToLower(parts[1])]
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized month in %q", date)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized year in %q", date)
	}

	clock = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(clock), "WIB"))
	tod, err := time.Parse(time.TimeOnly, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q: %w", clock, err)
	}
	return time.Date(year, month, day, tod.Hour(), tod.Minute(), tod.Second(), 0, hazard.Jakarta), nil
}

func coordinates(raw string) (lat, lon float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("coordinates %q are not lat,lon", raw)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("latitude in %q: %w", raw, err)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("longitude in %q: %w", raw, err)
	}
	return lat, lon, nil
}

// ParseDepth returns the first whitespace separated numeric token rounded to
// whole kilometers. "10 km" yields 10, "7.5 km" yields 8.
func ParseDepth(text string) (int, error) {
	for _, token := range strings.Fields(text) {
		f, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return int(math.Round(f)), nil
	}
	return 0, fmt.Errorf("no depth in %q", text)
}

// ShakemapURL derives the shakemap image of an event from its local
// occurrence time: 20211023095158.mmi.jpg.
func ShakemapURL(base string, occurAt time.Time) string {
	return base + occurAt.In(hazard.Jakarta).Format("20060102150405") + ".mmi.jpg"
}

// FeltLocations turns a felt-at report into locations, each with one MMI
// scale impact.
func FeltLocations(felt string) []hazard.LocationPayload {
	places := placename.ParseFelt(felt)
	if len(places) == 0 {
		return nil
	}
	locations := make([]hazard.LocationPayload, 0, len(places))
	for _, p := range places {
		locations = append(locations, hazard.LocationPayload{
			Fields: hazard.LocationFields{
				SubAdministrativeArea: p.Name,
				Severity:              p.Severity,
			},
			Impacts: []hazard.ImpactPayload{{
				Identifier: hazard.ImpactScale,
				Value:      p.Severity,
				Metric:     hazard.MetricMMI,
			}},
		})
	}
	return locations
}
