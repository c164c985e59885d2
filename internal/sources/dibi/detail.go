package dibi

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/placename"
)

// DefaultSource labels records whose detail page names no source.
const DefaultSource = "BNPB"

// dateLayouts are the forms seen in the tgl field.
var dateLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"02-01-2006",
	"02/01/2006",
}

// coded is a "code. name" pair such as "32. JAWA BARAT".
type coded struct {
	Code string
	Name string
}

func parseCoded(raw string) (coded, bool) {
	code, name, ok := strings.Cut(raw, ".")
	if !ok {
		return coded{}, false
	}
	return coded{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)}, true
}

// ParseDetail builds a candidate from a DIBI detail page.
func ParseDetail(body []byte) (*hazard.Candidate, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(err)
	}

	value := func(id string) string {
		n := find(doc, byID(id))
		if n == nil {
			return ""
		}
		return strings.TrimSpace(attr(n, "value"))
	}
	content := func(id string) string {
		return text(find(doc, byID(id)))
	}
	input := func(name string) string {
		n := find(doc, byTagAttr("input", "name", name))
		if n == nil {
			return ""
		}
		return strings.TrimSpace(attr(n, "value"))
	}

	typeCode, _, _ := strings.Cut(value("id_jenis_bencana"), ".")
	typeCode = strings.ReplaceAll(typeCode, " ", "")
	classification, ok := hazard.FromDIBI(typeCode)
	if !ok {
		return nil, fmt.Errorf("unknown DIBI disaster type %q", typeCode)
	}

	title := value("nama_kejadian")
	if title == "" {
		return nil, fmt.Errorf("detail page has no nama_kejadian")
	}

	occurAt, err := parseDate(value("tgl"))
	if err != nil {
		return nil, err
	}

	source := value("sumber")
	if source == "" {
		source = DefaultSource
	}

	detail, err := hazard.EmptyDetail(classification)
	if err != nil {
		return nil, err
	}

	base := hazard.LocationFields{Country: "Indonesia", CountryCode: "ID"}
	if prop, ok := parseCoded(input("prop")); ok {
		base.AdministrativeArea = placename.Title(prop.Name)
		base.AdministrativeAreaCode = prop.Code
	}
	if kab, ok := parseCoded(input("kab")); ok {
		base.SubAdministrativeArea = placename.Title(kab.Name)
		base.SubAdministrativeAreaCode = kab.Code
	}
	if lat, err := strconv.ParseFloat(value("latitude"), 64); err == nil {
		if lon, err := strconv.ParseFloat(value("longitude"), 64); err == nil {
			base.Latitude, base.Longitude = &lat, &lon
		}
	}

	var crumbs []string
	if hal := find(doc, byID("hal3")); hal != nil {
		for _, li := range findAll(hal, byTag("li")) {
			crumbs = append(crumbs, text(li))
		}
	}

	return &hazard.Candidate{
		Feed:           Name,
		Source:         source,
		Classification: classification,
		Title:          title,
		OccurAt:        occurAt,
		Description:    content("keterangan"),
		Reason:         content("penyebab"),
		Chronology:     content("kronologis"),
		Detail:         detail,
		Locations:      expandLocations(base, crumbs),
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, hazard.Jakarta); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized tgl %q", raw)
}

// district is a Kec. entry with the villages listed after it.
type district struct {
	coded
	villages []coded
}

// expandLocations turns the breadcrumb into one location per (district,
// village) pair, one per district without villages, or just base when the
// page lists no district.
//
// Entries look like "3204010. Kec. Ciwidey" and "3204010001. Desa Lebakmuncang";
// a village belongs to the district listed before it.
func expandLocations(base hazard.LocationFields, crumbs []string) []hazard.LocationPayload {
	var districts []*district
	for _, crumb := range crumbs {
		switch {
		case strings.Contains(crumb, "Kec."):
			parts := strings.Split(crumb, ".")
			if len(parts) < 3 {
				continue
			}
			districts = append(districts, &district{coded: coded{
				Code: strings.TrimSpace(parts[0]),
				Name: strings.TrimSpace(strings.Join(parts[2:], ".")),
			}})
		case strings.Contains(crumb, "Desa"):
			if len(districts) == 0 {
				continue
			}
			village, ok := parseCoded(crumb)
			if !ok {
				continue
			}
			village.Name = strings.TrimSpace(strings.ReplaceAll(village.Name, "Desa", ""))
			current := districts[len(districts)-1]
			current.villages = append(current.villages, village)
		}
	}

	if len(districts) == 0 {
		return []hazard.LocationPayload{{Fields: base}}
	}

	var locations []hazard.LocationPayload
	for _, d := range districts {
		fields := base
		fields.Locality, fields.LocalityCode = d.Name, d.Code
		if len(d.villages) == 0 {
			locations = append(locations, hazard.LocationPayload{Fields: fields})
			continue
		}
		for _, v := range d.villages {
			f := fields
			f.SubLocality, f.SubLocalityCode = v.Name, v.Code
			locations = append(locations, hazard.LocationPayload{Fields: f})
		}
	}
	return locations
}
