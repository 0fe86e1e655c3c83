package geocode

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// "Suite 120", "Ste. 5B", "Fl 21", "Floor 3", "3rd Floor", "Unit 4", "Apt 2R", "Room 101", "#304"
	unitRe = regexp.MustCompile(`(?i)(,?\s*\b(suite|ste|fl|floor|unit|apt|apartment|room|rm)\b\.?\s*#?\s*[0-9a-z-]+\b)|(,?\s*\b\d+(st|nd|rd|th)\s+(fl|floor)\b\.?)|(,?\s*#\s*[0-9a-z-]+\b)`)

	// ", NY 10118", " 10118-1234", ", New York, NY", ", Manhattan"
	postalRe  = regexp.MustCompile(`(?i)[,\s]+\d{5}(-\d{4})?\s*$`)
	stateRe   = regexp.MustCompile(`(?i)[,\s]+(ny|n\.y\.|new york)\s*$`)
	boroughRe = regexp.MustCompile(`(?i),\s*(manhattan|brooklyn|queens|the bronx|bronx|staten island|new york city|nyc|new york)\s*$`)

	leadingTrailingPunct = regexp.MustCompile(`^[\s,]+|[\s,]+$`)
	repeatedCommas       = regexp.MustCompile(`\s*,\s*(,\s*)*`)
)

// Avenue aliases, both directions. Matching is case-insensitive on word boundaries.
var synonyms = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bavenue of the americas\b`), "6th Avenue"},
	{regexp.MustCompile(`(?i)\b(6th|sixth)\s+ave(nue)?\b\.?`), "Avenue of the Americas"},
	{regexp.MustCompile(`(?i)\bfashion\s+ave(nue)?\b`), "7th Avenue"},
	{regexp.MustCompile(`(?i)\bmalcolm x\s+(blvd|boulevard)\b`), "Lenox Avenue"},
	{regexp.MustCompile(`(?i)\blenox\s+ave(nue)?\b`), "Malcolm X Boulevard"},
	{regexp.MustCompile(`(?i)\badam clayton powell( jr\.?)?\s+(blvd|boulevard)\b`), "7th Avenue"},
	{regexp.MustCompile(`(?i)\bfrederick douglass\s+(blvd|boulevard)\b`), "8th Avenue"},
}

// NormalizeQuery trims the input and collapses internal whitespace.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(q, " "))
}

// CacheKey is the lookup key for a query: normalized and lowercased.
func CacheKey(q string) string {
	return strings.ToLower(NormalizeQuery(q))
}

// StripUnits removes suite, floor, unit and "#" tokens.
func StripUnits(q string) string {
	return tidy(unitRe.ReplaceAllString(q, ""))
}

// StripPostal removes a trailing ZIP, state and borough, in that order.
func StripPostal(q string) string {
	prev := ""
	for q != prev {
		prev = q
		q = postalRe.ReplaceAllString(q, "")
		q = stateRe.ReplaceAllString(q, "")
		q = boroughRe.ReplaceAllString(q, "")
		q = tidy(q)
	}
	return q
}

// ExpandSynonyms rewrites the first known avenue alias it finds; the input is
// returned unchanged when none applies.
func ExpandSynonyms(q string) string {
	for _, s := range synonyms {
		if s.pattern.MatchString(q) {
			return tidy(s.pattern.ReplaceAllString(q, s.replace))
		}
	}
	return q
}

func tidy(q string) string {
	q = repeatedCommas.ReplaceAllString(q, ", ")
	q = leadingTrailingPunct.ReplaceAllString(q, "")
	return NormalizeQuery(q)
}

// withCity appends the city when the query does not already mention it.
func withCity(q, city string) string {
	if city == "" || q == "" {
		return q
	}
	if strings.Contains(strings.ToLower(q), strings.ToLower(strings.SplitN(city, ",", 2)[0])) {
		return q
	}
	return q + ", " + city
}

// Variants returns the fallback ladder for q, most literal first:
// raw, units stripped, postal suffix stripped, avenue aliases, and the bare city
// when cityFallback is set. Duplicates and empty variants are dropped.
func Variants(q, city string, cityFallback bool) []string {
	raw := NormalizeQuery(q)
	if raw == "" {
		return nil
	}

	noUnits := StripUnits(raw)
	noPostal := withCity(StripPostal(noUnits), city)
	aliased := ExpandSynonyms(noPostal)

	candidates := []string{raw, noUnits, noPostal, aliased}
	if cityFallback && city != "" {
		candidates = append(candidates, city)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := CacheKey(c)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
