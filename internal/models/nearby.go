package models

import "nearby-guide/internal/category"

// CategoryGroup is one display section of match results.
type CategoryGroup struct {
	Category category.Category `json:"category"`
	Title    string            `json:"title"`
	Results  []MatchResult     `json:"results"`
}

// PlaceCard is the presentation payload for a single result.
type PlaceCard struct {
	MatchResult
	Miles       *float64 `json:"miles,omitempty"`
	WalkMinutes *int     `json:"walk_minutes,omitempty"`
}

// Card converts r into its presentation payload.
func (r MatchResult) Card() PlaceCard {
	return PlaceCard{MatchResult: r, Miles: r.Miles(), WalkMinutes: r.WalkMinutes()}
}

// GroupView is a CategoryGroup rendered as cards.
type GroupView struct {
	Category category.Category `json:"category"`
	Title    string            `json:"title"`
	Places   []PlaceCard       `json:"places"`
}

// FallbackView holds the closest places regardless of radius.
type FallbackView struct {
	Label  string      `json:"label"`
	Places []PlaceCard `json:"places"`
}

// NearbyResponse is the grouped result for one anchor.
type NearbyResponse struct {
	Anchor            AnchorPoint   `json:"anchor"`
	RadiusMeters      float64       `json:"radius_meters"`
	RadiusMiles       float64       `json:"radius_miles"`
	RadiusWalkMinutes float64       `json:"radius_walk_minutes"`
	Groups            []GroupView   `json:"groups"`
	Fallback          *FallbackView `json:"fallback,omitempty"`
	Banner            string        `json:"banner,omitempty"`
}

// Cards converts a slice of results.
func Cards(results []MatchResult) []PlaceCard {
	out := make([]PlaceCard, 0, len(results))
	for _, r := range results {
		out = append(out, r.Card())
	}
	return out
}

// NearbyQuery carries the filters shared by clinic and address searches.
type NearbyQuery struct {
	RadiusMeters float64
	Limit        int
	Categories   []category.Category
	Tags         []string
}
