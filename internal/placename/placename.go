// Package placename normalizes Indonesian administrative place names and
// parses the "felt at" text published by BMKG.
package placename

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// administrativeTerms are stripped from stored administrative area names.
var administrativeTerms = []string{"Desa", "Kelurahan", "Kecamatan", "Kabupaten", "Provinsi"}

// feltAbbreviations are stripped from felt-at place names.
var feltAbbreviations = []string{"Des.", "Kel.", "Kec.", "Kab."}

var titleCaser = cases.Title(language.Indonesian)

// Normalize removes administrative level words from name and trims it.
// "Kabupaten Bantul" becomes "Bantul". Text is NFC-normalized first so
// decomposed input compares equal to stored values.
func Normalize(name string) string {
	name = norm.NFC.String(name)
	for _, term := range administrativeTerms {
		name = strings.ReplaceAll(name, term, "")
	}
	return strings.Join(strings.Fields(name), " ")
}

// Title converts an all-caps name like "DI YOGYAKARTA" into "Di Yogyakarta".
// Names that already mix case are returned unchanged.
func Title(name string) string {
	if name == "" || strings.ToUpper(name) != name {
		return name
	}
	return titleCaser.String(strings.ToLower(name))
}

// FeltPlace is one place in a felt-at report with its MMI intensity.
type FeltPlace struct {
	Severity string // roman numeral MMI scale, e.g. "III" or "II-III"
	Name     string
}

// ParseFelt splits a felt-at report such as
// "III Bantul, II - III Kab. Gunung Kidul" into places.
// Segments that do not start with an intensity token are skipped.
func ParseFelt(text string) []FeltPlace {
	var places []FeltPlace
	for _, segment := range strings.Split(text, ",") {
		segment = strings.TrimSpace(segment)
		segment = strings.ReplaceAll(segment, " - ", "-")
		if segment == "" {
			continue
		}

		tokens := strings.Fields(segment)
		severity := tokens[0]
		if !isIntensity(severity) {
			continue
		}

		rest := strings.Join(tokens[1:], " ")
		for _, abbr := range feltAbbreviations {
			rest = strings.ReplaceAll(rest, abbr, "")
		}
		name := strings.Join(strings.Fields(rest), " ")
		if name == "" {
			continue
		}
		places = append(places, FeltPlace{Severity: severity, Name: name})
	}
	return places
}

// isIntensity reports whether token looks like a roman numeral MMI value or range.
func isIntensity(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r != '-' && !strings.ContainsRune("IVX", unicode.ToUpper(r)) {
			return false
		}
	}
	return strings.Trim(token, "-") != ""
}
