package hazard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength bounds the incident title column.
const MaxTitleLength = 255

// Candidate is one event parsed from an upstream feed, not yet persisted.
type Candidate struct {
	Feed           string // adapter that produced it, keys the ingestion cursor
	Source         string // source label stored with the event, part of the natural key
	Classification Classification
	Title          string // incident, part of the natural key
	OccurAt        time.Time
	Description    string
	Reason         string
	Chronology     string
	Detail         Detail

	Locations   []LocationPayload
	Attachments []AttachmentPayload

	RawLocationText string            // upstream location text before parsing
	RawMetrics      map[string]string // upstream magnitude/depth text before parsing
}

// NaturalKey identifies an event across runs.
type NaturalKey struct {
	OccurAt        int64 // unix seconds
	Title          string
	Classification Classification
	Source         string
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Source, k.Classification, k.Title, k.OccurAt)
}

// Key returns the natural key of c.
func (c *Candidate) Key() NaturalKey {
	return NaturalKey{
		OccurAt:        c.OccurAt.Unix(),
		Title:          c.Title,
		Classification: c.Classification,
		Source:         c.Source,
	}
}

// Validate checks the fields every persisted event needs and normalizes the
// title and occurrence time. A failing candidate is a malformed payload.
func (c *Candidate) Validate() error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return fmt.Errorf("candidate has no title")
	}
	if utf8.RuneCountInString(c.Title) > MaxTitleLength {
		c.Title = string([]rune(c.Title)[:MaxTitleLength])
	}
	if c.Source == "" {
		return fmt.Errorf("candidate %q has no source label", c.Title)
	}
	if c.OccurAt.IsZero() {
		return fmt.Errorf("candidate %q has no occurrence time", c.Title)
	}
	if !c.Classification.Valid() {
		return fmt.Errorf("candidate %q has unknown classification %q", c.Title, string(c.Classification))
	}
	if c.Detail == nil {
		d, err := EmptyDetail(c.Classification)
		if err != nil {
			return err
		}
		c.Detail = d
	}
	if c.Detail.Classification() != c.Classification {
		return fmt.Errorf("candidate %q: %s detail does not match classification %s",
			c.Title, c.Detail.Classification(), c.Classification)
	}
	c.OccurAt = c.OccurAt.Truncate(time.Second).In(Jakarta)
	return nil
}

// SortCandidates orders candidates by occurrence time ascending, ties by title.
func SortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int {
		if c := a.OccurAt.Compare(b.OccurAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
}

// LocationFields are the stored attributes of a location.
type LocationFields struct {
	Country                   string
	CountryCode               string
	AdministrativeArea        string
	AdministrativeAreaCode    string
	SubAdministrativeArea     string
	SubAdministrativeAreaCode string
	Locality                  string
	LocalityCode              string
	SubLocality               string
	SubLocalityCode           string
	Thoroughfare              string
	SubThoroughfare           string
	PostalCode                string
	AreasOfInterest           string
	Severity                  string
	Latitude                  *float64
	Longitude                 *float64
}

// HasCoordinates reports whether both coordinates are set.
func (f LocationFields) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Name returns the most specific populated place name.
func (f LocationFields) Name() string {
	for _, s := range []string{f.SubLocality, f.Locality, f.SubAdministrativeArea, f.AdministrativeArea, f.Country} {
		if s != "" {
			return s
		}
	}
	return ""
}

// LocationPayload is an incoming location for an owner.
// UUID empty means create; Delete with a UUID removes that location.
type LocationPayload struct {
	UUID    string
	Delete  bool
	Fields  LocationFields
	Impacts []ImpactPayload
}

// Key implements the synchronizer payload contract.
func (p LocationPayload) Key() string { return p.UUID }

// Deleted implements the synchronizer payload contract.
func (p LocationPayload) Deleted() bool { return p.Delete }

// ImpactPayload is an incoming impact for a location.
type ImpactPayload struct {
	UUID        string
	Delete      bool
	Identifier  ImpactIdentifier
	Value       string
	Metric      ImpactMetric
	Description string
}

// Key implements the synchronizer payload contract.
func (p ImpactPayload) Key() string { return p.UUID }

// Deleted implements the synchronizer payload contract.
func (p ImpactPayload) Deleted() bool { return p.Delete }

// AttachmentPayload refers to an attachment for an owner. Sources set URL;
// user edits reference an existing attachment by UUID.
type AttachmentPayload struct {
	UUID       string
	Delete     bool
	URL        string
	Identifier string
	Caption    string
}

// Key implements the synchronizer payload contract.
func (p AttachmentPayload) Key() string { return p.UUID }

// Deleted implements the synchronizer payload contract.
func (p AttachmentPayload) Deleted() bool { return p.Delete }
