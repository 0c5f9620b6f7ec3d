package geocode

import (
	"regexp"
	"strings"
)

// abbreviations are expanded, in order, for the third and fourth fallback variants.
var abbreviations = []struct {
	pattern *regexp.Regexp
	full    string
}{
	{regexp.MustCompile(`(?i)\bB\.\s*`), "Bairro "},
	{regexp.MustCompile(`(?i)\bR\.\s*`), "Rua "},
}

// Normalize trims the address and collapses internal whitespace.
func Normalize(address string) string {
	return strings.Join(strings.Fields(address), " ")
}

// countrySuffix strips and appends a trailing ", <country>". The pattern is
// compiled once per Geocoder.
type countrySuffix struct {
	name string
	re   *regexp.Regexp
}

func newCountrySuffix(country string) countrySuffix {
	if country == "" {
		return countrySuffix{}
	}
	return countrySuffix{
		name: country,
		re:   regexp.MustCompile(`(?i),\s*` + regexp.QuoteMeta(country) + `\s*$`),
	}
}

// strip removes the suffix, case-insensitively.
func (c countrySuffix) strip(address string) string {
	if c.re == nil {
		return address
	}
	return strings.TrimSpace(c.re.ReplaceAllString(address, ""))
}

func (c countrySuffix) appendTo(address string) string {
	if c.name == "" {
		return address
	}
	return address + ", " + c.name
}

// expandAbbreviations spells out "B." and "R.".
func expandAbbreviations(address string) string {
	for _, a := range abbreviations {
		address = a.pattern.ReplaceAllString(address, a.full)
	}
	return Normalize(address)
}

// fallbackVariants returns the queries tried against the fallback provider:
// the address without the country suffix, the same with the suffix, the
// abbreviation-expanded address, and the expanded address with the suffix.
func fallbackVariants(address string, country countrySuffix) []string {
	base := country.strip(address)
	expanded := expandAbbreviations(base)

	return []string{
		base,
		country.appendTo(base),
		expanded,
		country.appendTo(expanded),
	}
}
