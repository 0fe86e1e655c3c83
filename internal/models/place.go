package models

import (
	"nearby-guide/internal/category"
	"nearby-guide/internal/geo"
	"strings"
)

// TypeClinic marks places that act as anchors.
const TypeClinic = "clinic"

// Place is a curated point of interest or a clinic. Coordinates is nil until geocoded.
type Place struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address,omitempty"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
	Type        string     `json:"type,omitempty"` // raw category label from the source
	Tags        []string   `json:"tags,omitempty"`
	PriceLevel  string     `json:"price_level,omitempty"`
	Website     string     `json:"website,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Note        string     `json:"note,omitempty"`
	FeaturedFor []string   `json:"featured_for,omitempty"`
	Clinics     []string   `json:"clinics,omitempty"` // clinics this record was nested under
}

// IsClinic reports whether p is an anchor clinic.
func (p Place) IsClinic() bool {
	return strings.EqualFold(p.Type, TypeClinic)
}

// HasCoordinates reports whether p can take part in distance computations.
func (p Place) HasCoordinates() bool {
	return p.Coordinates != nil
}

// IsFeaturedFor reports whether p is pinned for the given clinic.
func (p Place) IsFeaturedFor(clinicID string) bool {
	if clinicID == "" {
		return false
	}
	for _, id := range p.FeaturedFor {
		if id == clinicID {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether p carries at least one of want (case-insensitive).
// An empty want matches everything.
func (p Place) HasAnyTag(want map[string]struct{}) bool {
	if len(want) == 0 {
		return true
	}
	for _, t := range p.Tags {
		if _, ok := want[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

// DedupeKey is lower(name)|lower(address).
func (p Place) DedupeKey() string {
	return DedupeKey(p.Name, p.Address)
}

// DedupeKey builds the repository dedupe key for a name/address pair.
func DedupeKey(name, address string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(address))
}

// WithCoordinates returns a copy of p located at c. The receiver is left untouched.
func (p Place) WithCoordinates(c geo.Point) Place {
	p.Coordinates = &c
	return p
}

// AnchorPoint is the reference point distances are measured from.
type AnchorPoint struct {
	Coordinates *geo.Point `json:"coordinates,omitempty"`
	Label       string     `json:"label"`
	ClinicID    string     `json:"clinic_id,omitempty"`
}

// AnchorForClinic builds the anchor for a clinic. A clinic without coordinates
// yields an anchor that matches nothing.
func AnchorForClinic(c Place) AnchorPoint {
	return AnchorPoint{Coordinates: c.Coordinates, Label: c.Name, ClinicID: c.ID}
}

// MatchResult is a Place enriched with its distance from an anchor and its canonical category.
type MatchResult struct {
	Place
	Category       category.Category `json:"category"`
	DistanceMeters *float64          `json:"distance_meters"`
	Featured       bool              `json:"featured,omitempty"`
}

// Miles returns the distance in miles, or nil when unknown.
func (r MatchResult) Miles() *float64 {
	if r.DistanceMeters == nil {
		return nil
	}
	m := geo.MetersToMiles(*r.DistanceMeters)
	return &m
}

// WalkMinutes returns the walking time, or nil when unknown.
func (r MatchResult) WalkMinutes() *int {
	if r.DistanceMeters == nil {
		return nil
	}
	m := geo.MetersToWalkMinutes(*r.DistanceMeters)
	return &m
}
