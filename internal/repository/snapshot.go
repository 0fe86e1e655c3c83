package repository

import (
	"maps"
	"nearby-guide/internal/category"
	"nearby-guide/internal/models"
	"slices"
	"strings"
)

// Snapshot is an immutable, deduplicated view of the dataset.
// Every accessor returns a fresh slice; callers may not reach the backing storage.
type Snapshot struct {
	places     []models.Place
	byID       map[string]int
	normalizer category.Normalizer
	duplicates int
}

// New deduplicates places by lower(name)|lower(address); the first occurrence wins.
// Clinic associations of later duplicates are merged into the survivor.
func New(places []models.Place, normalizer category.Normalizer) *Snapshot {
	s := &Snapshot{
		places:     make([]models.Place, 0, len(places)),
		byID:       make(map[string]int, len(places)),
		normalizer: normalizer,
	}
	byKey := make(map[string]int, len(places))

	for _, p := range places {
		key := p.DedupeKey()
		if idx, ok := byKey[key]; ok {
			s.duplicates++
			s.places[idx].Clinics = mergeIDs(s.places[idx].Clinics, p.Clinics)
			continue
		}
		if _, taken := s.byID[p.ID]; taken {
			// same id, different place: keep both, disambiguate the newcomer
			p.ID = p.ID + "-" + shortHash(key)
		}
		p = clonePlace(p)
		byKey[key] = len(s.places)
		s.byID[p.ID] = len(s.places)
		s.places = append(s.places, p)
	}
	return s
}

// Empty returns a snapshot with no places.
func Empty() *Snapshot {
	return New(nil, category.Normalizer{})
}

// Len returns the number of deduplicated records, clinics included.
func (s *Snapshot) Len() int { return len(s.places) }

// Duplicates returns how many records were dropped as duplicates.
func (s *Snapshot) Duplicates() int { return s.duplicates }

// Normalizer returns the category normalizer the snapshot was built with.
func (s *Snapshot) Normalizer() category.Normalizer { return s.normalizer }

// All returns every record.
func (s *Snapshot) All() []models.Place {
	return s.filter(func(models.Place) bool { return true })
}

// Places returns every record that is not a clinic.
func (s *Snapshot) Places() []models.Place {
	return s.ExcludingType(models.TypeClinic)
}

// ExcludingType returns the records whose raw type differs from typ.
func (s *Snapshot) ExcludingType(typ string) []models.Place {
	return s.filter(func(p models.Place) bool { return !strings.EqualFold(p.Type, typ) })
}

// ByCategory returns the non-clinic records normalizing to c.
func (s *Snapshot) ByCategory(c category.Category) []models.Place {
	return s.filter(func(p models.Place) bool {
		return !p.IsClinic() && s.normalizer.Normalize(p.Type, p.Name) == c
	})
}

// Clinics returns the anchor clinics.
func (s *Snapshot) Clinics() []models.Place {
	return s.filter(models.Place.IsClinic)
}

// ByClinic returns the records nested under or featured for a clinic.
func (s *Snapshot) ByClinic(clinicID string) []models.Place {
	return s.filter(func(p models.Place) bool {
		return !p.IsClinic() && (slices.Contains(p.Clinics, clinicID) || p.IsFeaturedFor(clinicID))
	})
}

// Place looks a record up by id.
func (s *Snapshot) Place(id string) (models.Place, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return models.Place{}, false
	}
	return clonePlace(s.places[idx]), true
}

// Clinic looks a clinic up by id.
func (s *Snapshot) Clinic(id string) (models.Place, bool) {
	p, ok := s.Place(id)
	if !ok || !p.IsClinic() {
		return models.Place{}, false
	}
	return p, true
}

// CountByCategory returns how many non-clinic records fall into each category.
func (s *Snapshot) CountByCategory() map[category.Category]int {
	out := make(map[category.Category]int)
	for _, p := range s.places {
		if p.IsClinic() {
			continue
		}
		out[s.normalizer.Normalize(p.Type, p.Name)]++
	}
	return out
}

// MissingCoordinates counts records without coordinates.
func (s *Snapshot) MissingCoordinates() int {
	n := 0
	for _, p := range s.places {
		if !p.HasCoordinates() {
			n++
		}
	}
	return n
}

func (s *Snapshot) filter(keep func(models.Place) bool) []models.Place {
	out := make([]models.Place, 0, len(s.places))
	for _, p := range s.places {
		if keep(p) {
			out = append(out, clonePlace(p))
		}
	}
	return out
}

func clonePlace(p models.Place) models.Place {
	if p.Coordinates != nil {
		c := *p.Coordinates
		p.Coordinates = &c
	}
	p.Tags = slices.Clone(p.Tags)
	p.FeaturedFor = slices.Clone(p.FeaturedFor)
	p.Clinics = slices.Clone(p.Clinics)
	return p
}

func mergeIDs(dst, src []string) []string {
	for _, id := range src {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
