// Package matcher ranks places around an anchor point. It performs no I/O and
// never mutates the places it is given.
package matcher

import (
	"cmp"
	"slices"
	"strings"

	"nearby-guide/internal/category"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/models"
)

const (
	// DefaultRadiusMeters is used when a query carries no positive radius.
	DefaultRadiusMeters = 1200
	// DefaultClosestN is used when FindClosest is asked for no positive count.
	DefaultClosestN = 12
)

// PlaceLister supplies candidate places. *repository.Snapshot satisfies it.
type PlaceLister interface {
	Places() []models.Place
}

// Places adapts a plain slice to PlaceLister.
type Places []models.Place

func (p Places) Places() []models.Place { return p }

// Filter narrows candidates before distances are computed.
// Empty Categories means every category; empty RequiredTags means no tag requirement.
type Filter struct {
	Categories   []category.Category
	RequiredTags []string // any one of them suffices
}

// Options configures FindNearby.
type Options struct {
	Filter
	RadiusMeters float64
	Limit        int // <= 0 returns every match
}

// Matcher computes match results using a category normalizer.
type Matcher struct {
	normalizer category.Normalizer
}

func New(normalizer category.Normalizer) *Matcher {
	return &Matcher{normalizer: normalizer}
}

// Normalizer returns the normalizer results are categorized with.
func (m *Matcher) Normalizer() category.Normalizer {
	return m.normalizer
}

// FindNearby returns the places within the radius of anchor. Places featured for
// the anchor's clinic come first, ordered by distance; the rest follow ordered by
// distance, then price level length, then name. Places without coordinates, or an
// anchor without coordinates, never match.
func (m *Matcher) FindNearby(anchor models.AnchorPoint, src PlaceLister, opts Options) []models.MatchResult {
	radius := opts.RadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	accept := m.compile(opts.Filter)

	var featured, regular []models.MatchResult
	for _, p := range src.Places() {
		if p.IsClinic() {
			continue
		}
		r := m.result(anchor, p)
		if !accept(r) {
			continue
		}
		if r.DistanceMeters == nil || *r.DistanceMeters > radius {
			continue
		}
		if anchor.ClinicID != "" && p.IsFeaturedFor(anchor.ClinicID) {
			r.Featured = true
			featured = append(featured, r)
			continue
		}
		regular = append(regular, r)
	}

	featured = uniqueByID(featured, nil)
	regular = uniqueByID(regular, featured)

	slices.SortStableFunc(featured, func(a, b models.MatchResult) int {
		return compareDistance(a.DistanceMeters, b.DistanceMeters)
	})
	slices.SortStableFunc(regular, compareRegular)

	out := append(featured, regular...)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// FindClosest returns the n places nearest to anchor regardless of radius, using
// the same ordering as the regular results of FindNearby. Places whose distance
// is unknown are omitted.
func (m *Matcher) FindClosest(anchor models.AnchorPoint, src PlaceLister, n int, filter Filter) []models.MatchResult {
	if n <= 0 {
		n = DefaultClosestN
	}
	accept := m.compile(filter)

	var out []models.MatchResult
	for _, p := range src.Places() {
		if p.IsClinic() {
			continue
		}
		r := m.result(anchor, p)
		if r.DistanceMeters == nil || !accept(r) {
			continue
		}
		out = append(out, r)
	}
	out = uniqueByID(out, nil)
	slices.SortStableFunc(out, compareRegular)
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// GroupedNearby runs FindNearby once per category, applying the limit to each
// group, and returns the non-empty groups in display order.
func (m *Matcher) GroupedNearby(anchor models.AnchorPoint, src PlaceLister, opts Options) []models.CategoryGroup {
	cats := opts.Categories
	if len(cats) == 0 {
		cats = category.All
	}
	cats = slices.Clone(cats)
	slices.SortStableFunc(cats, func(a, b category.Category) int { return cmp.Compare(a.Rank(), b.Rank()) })
	cats = slices.Compact(cats)

	lister := Places(src.Places())
	var all []models.MatchResult
	for _, c := range cats {
		q := opts
		q.Categories = []category.Category{c}
		all = append(all, m.FindNearby(anchor, lister, q)...)
	}
	return Group(all)
}

// Group buckets results by category in display order, keeping their relative order.
func Group(results []models.MatchResult) []models.CategoryGroup {
	buckets := make(map[category.Category][]models.MatchResult)
	for _, r := range results {
		buckets[r.Category] = append(buckets[r.Category], r)
	}
	groups := make([]models.CategoryGroup, 0, len(buckets))
	for _, c := range category.All {
		if rs, ok := buckets[c]; ok {
			groups = append(groups, models.CategoryGroup{Category: c, Title: c.Title(), Results: rs})
		}
	}
	return groups
}

func (m *Matcher) result(anchor models.AnchorPoint, p models.Place) models.MatchResult {
	r := models.MatchResult{
		Place:    p,
		Category: m.normalizer.Normalize(p.Type, p.Name),
	}
	if anchor.Coordinates != nil && p.Coordinates != nil {
		d := geo.DistanceMeters(*anchor.Coordinates, *p.Coordinates)
		r.DistanceMeters = &d
	}
	return r
}

func (m *Matcher) compile(f Filter) func(models.MatchResult) bool {
	var cats map[category.Category]struct{}
	if len(f.Categories) > 0 {
		cats = make(map[category.Category]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			cats[c] = struct{}{}
		}
	}
	var tags map[string]struct{}
	for _, t := range f.RequiredTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if tags == nil {
			tags = make(map[string]struct{})
		}
		tags[t] = struct{}{}
	}

	return func(r models.MatchResult) bool {
		if cats != nil {
			if _, ok := cats[r.Category]; !ok {
				return false
			}
		}
		return r.HasAnyTag(tags)
	}
}

// uniqueByID drops results whose ID repeats within rs or appears in exclude.
func uniqueByID(rs, exclude []models.MatchResult) []models.MatchResult {
	if len(rs) == 0 {
		return rs
	}
	seen := make(map[string]struct{}, len(rs)+len(exclude))
	for _, r := range exclude {
		seen[r.ID] = struct{}{}
	}
	out := rs[:0]
	for _, r := range rs {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func compareRegular(a, b models.MatchResult) int {
	if c := compareDistance(a.DistanceMeters, b.DistanceMeters); c != 0 {
		return c
	}
	if c := cmp.Compare(len(a.PriceLevel), len(b.PriceLevel)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// compareDistance orders known distances ascending with unknown ones last.
func compareDistance(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*a, *b)
}
