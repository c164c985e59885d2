// Package hazard defines the domain model shared by sources, the upserter and
// the association synchronizer: classifications, their detail records,
// owner references, actors and the candidate events produced by sources.
package hazard

import "strings"

// Classification is the three digit hazard classification code.
type Classification string

const (
	Flood            Classification = "101"
	Storm            Classification = "102"
	Landslide        Classification = "103"
	Wildfire         Classification = "104"
	Earthquake       Classification = "105"
	Abrasion         Classification = "106"
	Drought          Classification = "107"
	Tsunami          Classification = "108"
	VolcanicEruption Classification = "109"
	Other            Classification = "999"
)

// Classifications lists every known classification in code order.
var Classifications = []Classification{
	Flood, Storm, Landslide, Wildfire, Earthquake,
	Abrasion, Drought, Tsunami, VolcanicEruption, Other,
}

var classificationNames = map[Classification]string{
	Flood:            "flood",
	Storm:            "storm",
	Landslide:        "landslide",
	Wildfire:         "wildfire",
	Earthquake:       "earthquake",
	Abrasion:         "abrasion",
	Drought:          "drought",
	Tsunami:          "tsunami",
	VolcanicEruption: "volcanic eruption",
	Other:            "other",
}

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	_, ok := classificationNames[c]
	return ok
}

// String returns the human readable name.
func (c Classification) String() string {
	if name, ok := classificationNames[c]; ok {
		return name
	}
	return "unknown(" + string(c) + ")"
}

// Code returns the prefixed identifier, e.g. "HAC105".
func (c Classification) Code() string {
	return "HAC" + string(c)
}

// ParseClassification accepts "105", "HAC105" or a name such as "earthquake".
func ParseClassification(s string) (Classification, bool) {
	s = strings.TrimSpace(s)
	c := Classification(strings.TrimPrefix(strings.ToUpper(s), "HAC"))
	if c.Valid() {
		return c, true
	}
	for code, name := range classificationNames {
		if strings.EqualFold(name, s) {
			return code, true
		}
	}
	return "", false
}

// dibiClassifications maps BNPB DIBI disaster type codes to classifications.
var dibiClassifications = map[string]Classification{
	"101": Flood,
	"102": Landslide,
	"103": Abrasion,
	"105": Storm,
	"106": Drought,
	"107": Wildfire,
	"108": Earthquake,
	"109": Tsunami,
	"111": VolcanicEruption,
	"999": Other,
}

// FromDIBI maps a DIBI disaster type code. Unknown codes return false.
func FromDIBI(code string) (Classification, bool) {
	c, ok := dibiClassifications[strings.TrimSpace(code)]
	return c, ok
}

// DIBICode is the inverse of FromDIBI, used to build DIBI list queries.
func DIBICode(c Classification) (string, bool) {
	for code, mapped := range dibiClassifications {
		if mapped == c {
			return code, true
		}
	}
	return "", false
}
