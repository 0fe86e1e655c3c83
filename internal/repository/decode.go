package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/models"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrDataLoad marks a dataset that is missing, unreachable or structurally invalid.
var ErrDataLoad = errors.New("data load failed")

// LoadError describes why a dataset could not be loaded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load places: %v", e.Err)
	}
	return fmt.Sprintf("load places from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrDataLoad, e.Err} }

// LoadStats counts what happened to the raw records during decoding.
type LoadStats struct {
	Records    int `json:"records"`
	Malformed  int `json:"malformed"`
	Duplicates int `json:"duplicates"`
}

// placeNamespace seeds deterministic IDs for records that arrive without one.
var placeNamespace = uuid.MustParse("6f1c7d2e-58b4-4a8e-9c71-2f0d3b9a6e15")

// flexFloat accepts 40.75 and "40.75".
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", b, err)
	}
	f.v, f.set = v, true
	return nil
}

// flexString accepts "$$", 2 and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

// flexStrings accepts ["a","b"] and "a, b".
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected string list, got %s", b)
	}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			*f = append(*f, p)
		}
	}
	return nil
}

type rawPlace struct {
	ID           flexString  `json:"id"`
	Name         string      `json:"name"`
	Address      string      `json:"address"`
	Lat          flexFloat   `json:"lat"`
	Latitude     flexFloat   `json:"latitude"`
	Lon          flexFloat   `json:"lon"`
	Lng          flexFloat   `json:"lng"`
	Longitude    flexFloat   `json:"longitude"`
	Type         string      `json:"type"`
	Category     string      `json:"category"`
	Tags         flexStrings `json:"tags"`
	Dietary      flexStrings `json:"dietary"`
	PriceLevel   flexString  `json:"price_level"`
	PriceLevelCC flexString  `json:"priceLevel"`
	Price        flexString  `json:"price"`
	Website      string      `json:"website"`
	Phone        string      `json:"phone"`
	Note         string      `json:"note"`
	FeaturedFor  flexStrings `json:"featured_for"`
	FeaturedCC   flexStrings `json:"featuredFor"`
	Clinics      flexStrings `json:"clinics"`
}

func (r rawPlace) coordinates() *geo.Point {
	lat := firstSet(r.Lat, r.Latitude)
	lon := firstSet(r.Lon, r.Lng, r.Longitude)
	if !lat.set || !lon.set {
		return nil
	}
	if lat.v < -90 || lat.v > 90 || lon.v < -180 || lon.v > 180 {
		return nil
	}
	if lat.v == 0 && lon.v == 0 {
		return nil
	}
	return &geo.Point{Lat: lat.v, Lon: lon.v}
}

func firstSet(vals ...flexFloat) flexFloat {
	for _, v := range vals {
		if v.set {
			return v
		}
	}
	return flexFloat{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// toPlace converts a raw record. ok is false when the record is unusable.
func (r rawPlace) toPlace(defaultType string) (models.Place, bool) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return models.Place{}, false
	}

	p := models.Place{
		ID:          strings.TrimSpace(string(r.ID)),
		Name:        name,
		Address:     strings.TrimSpace(r.Address),
		Coordinates: r.coordinates(),
		Type:        firstNonEmpty(r.Type, r.Category, defaultType),
		PriceLevel:  firstNonEmpty(string(r.PriceLevel), string(r.PriceLevelCC), string(r.Price)),
		Website:     strings.TrimSpace(r.Website),
		Phone:       strings.TrimSpace(r.Phone),
		Note:        strings.TrimSpace(r.Note),
	}
	p.Tags = mergeTags(r.Tags, r.Dietary)
	if len(r.FeaturedFor) > 0 {
		p.FeaturedFor = append([]string(nil), r.FeaturedFor...)
	} else if len(r.FeaturedCC) > 0 {
		p.FeaturedFor = append([]string(nil), r.FeaturedCC...)
	}
	if len(r.Clinics) > 0 {
		p.Clinics = append([]string(nil), r.Clinics...)
	}
	if p.ID == "" {
		p.ID = uuid.NewSHA1(placeNamespace, []byte(p.DedupeKey())).String()
	}
	return p, true
}

func mergeTags(lists ...flexStrings) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, l := range lists {
		for _, t := range l {
			t = strings.TrimSpace(t)
			k := strings.ToLower(t)
			if t == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Decode parses a dataset in any of the supported shapes:
//
//	[ {...}, ... ]                                  bare list
//	{"places": [...], "clinics": [...]}             flat list with a type discriminator
//	{"clinics": [{..., "categories": {"cafe": [...]}}], "mustSees": [...]}
//
// Individual bad records are skipped and counted; only a document that matches
// none of the shapes returns an error.
func Decode(data []byte) ([]models.Place, LoadStats, error) {
	var stats LoadStats
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, stats, &LoadError{Err: errors.New("empty document")}
	}

	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, stats, &LoadError{Err: fmt.Errorf("invalid place list: %w", err)}
		}
		places := decodeList(items, "", nil, &stats)
		return places, stats, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, stats, &LoadError{Err: fmt.Errorf("invalid document: %w", err)}
	}

	clinicsRaw, hasClinics := doc["clinics"]
	placesRaw, hasPlaces := doc["places"]
	mustSeesRaw, hasMustSees := doc["mustSees"]
	if !hasMustSees {
		mustSeesRaw, hasMustSees = doc["must_sees"]
	}
	if !hasClinics && !hasPlaces && !hasMustSees {
		return nil, stats, &LoadError{Err: errors.New(`document has none of "places", "clinics" or "mustSees"`)}
	}

	var places []models.Place
	if hasClinics {
		clinics, err := decodeClinics(clinicsRaw, &stats)
		if err != nil {
			return nil, stats, &LoadError{Err: err}
		}
		places = append(places, clinics...)
	}
	if hasPlaces {
		items, err := rawItems(placesRaw)
		if err != nil {
			return nil, stats, &LoadError{Err: fmt.Errorf("invalid places: %w", err)}
		}
		places = append(places, decodeList(items, "", nil, &stats)...)
	}
	if hasMustSees {
		items, err := rawItems(mustSeesRaw)
		if err != nil {
			return nil, stats, &LoadError{Err: fmt.Errorf("invalid mustSees: %w", err)}
		}
		places = append(places, decodeList(items, "iconic", nil, &stats)...)
	}
	return places, stats, nil
}

func rawItems(raw json.RawMessage) ([]json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeList(items []json.RawMessage, defaultType string, clinics []string, stats *LoadStats) []models.Place {
	out := make([]models.Place, 0, len(items))
	for _, item := range items {
		stats.Records++
		var r rawPlace
		if err := json.Unmarshal(item, &r); err != nil {
			stats.Malformed++
			continue
		}
		p, ok := r.toPlace(defaultType)
		if !ok {
			stats.Malformed++
			continue
		}
		for _, id := range clinics {
			if !slices.Contains(p.Clinics, id) {
				p.Clinics = append(p.Clinics, id)
			}
		}
		out = append(out, p)
	}
	return out
}

// clinic fields that are arrays but never nested place lists
var scalarListKeys = map[string]struct{}{
	"tags": {}, "dietary": {}, "featured_for": {}, "featuredFor": {}, "clinics": {},
}

func decodeClinics(raw json.RawMessage, stats *LoadStats) ([]models.Place, error) {
	items, err := rawItems(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid clinics: %w", err)
	}

	var out []models.Place
	for _, item := range items {
		stats.Records++
		var r rawPlace
		if err := json.Unmarshal(item, &r); err != nil {
			stats.Malformed++
			continue
		}
		clinic, ok := r.toPlace(models.TypeClinic)
		if !ok {
			stats.Malformed++
			continue
		}
		clinic.Type = models.TypeClinic
		out = append(out, clinic)

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		out = append(out, decodeNested(fields, clinic.ID, stats)...)
	}
	return out, nil
}

// decodeNested pulls categorized sub-lists out of a clinic record, either from
// a "categories" object or from array-valued keys named after the category.
func decodeNested(fields map[string]json.RawMessage, clinicID string, stats *LoadStats) []models.Place {
	var out []models.Place
	clinics := []string{clinicID}

	if catsRaw, ok := fields["categories"]; ok {
		var cats map[string]json.RawMessage
		if err := json.Unmarshal(catsRaw, &cats); err == nil {
			for _, key := range sortedKeys(cats) {
				items, err := rawItems(cats[key])
				if err != nil {
					continue
				}
				out = append(out, decodeList(items, key, clinics, stats)...)
			}
		}
	}

	for _, key := range sortedKeys(fields) {
		if key == "categories" {
			continue
		}
		if _, skip := scalarListKeys[key]; skip {
			continue
		}
		v := bytes.TrimSpace(fields[key])
		if len(v) == 0 || v[0] != '[' {
			continue
		}
		items, err := rawItems(v)
		if err != nil || len(items) == 0 {
			continue
		}
		if first := bytes.TrimSpace(items[0]); len(first) == 0 || first[0] != '{' {
			continue
		}
		out = append(out, decodeList(items, key, clinics, stats)...)
	}
	return out
}

func shortHash(key string) string {
	return uuid.NewSHA1(placeNamespace, []byte(key)).String()[:8]
}
