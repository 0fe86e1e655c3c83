package repository

import (
	"encoding/json"
	"fmt"
	"nearby-guide/internal/models"
)

type exportPlace struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Type        string   `json:"type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	PriceLevel  string   `json:"price_level,omitempty"`
	Website     string   `json:"website,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Note        string   `json:"note,omitempty"`
	FeaturedFor []string `json:"featured_for,omitempty"`
	Clinics     []string `json:"clinics,omitempty"`
}

type exportDocument struct {
	Clinics []exportPlace `json:"clinics"`
	Places  []exportPlace `json:"places"`
}

// Export serializes places in the flat {"clinics": [...], "places": [...]} shape,
// which Decode reads back unchanged.
func Export(places []models.Place) ([]byte, error) {
	doc := exportDocument{Clinics: []exportPlace{}, Places: []exportPlace{}}
	for _, p := range places {
		e := exportPlace{
			ID:          p.ID,
			Name:        p.Name,
			Address:     p.Address,
			Type:        p.Type,
			Tags:        p.Tags,
			PriceLevel:  p.PriceLevel,
			Website:     p.Website,
			Phone:       p.Phone,
			Note:        p.Note,
			FeaturedFor: p.FeaturedFor,
			Clinics:     p.Clinics,
		}
		if p.Coordinates != nil {
			lat, lon := p.Coordinates.Lat, p.Coordinates.Lon
			e.Lat, e.Lon = &lat, &lon
		}
		if p.IsClinic() {
			e.Type = ""
			e.Clinics = nil
			doc.Clinics = append(doc.Clinics, e)
			continue
		}
		doc.Places = append(doc.Places, e)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal places: %w", err)
	}
	return append(out, '\n'), nil
}
