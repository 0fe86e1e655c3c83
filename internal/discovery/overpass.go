// Package discovery finds candidate places around clinics in OpenStreetMap.
package discovery

import (
	"context"
	"fmt"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/models"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"
)

// Querier runs a raw Overpass QL query. *overpass.Client satisfies it.
type Querier interface {
	Query(query string) (overpass.Result, error)
}

type Discoverer struct {
	client  Querier
	timeout time.Duration
	logr    *zap.Logger
}

func New(endpoint string, timeout time.Duration, logr *zap.Logger) *Discoverer {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 1, httpClient)
	return NewWithQuerier(&client, timeout, logr)
}

func NewWithQuerier(q Querier, timeout time.Duration, logr *zap.Logger) *Discoverer {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Discoverer{client: q, timeout: timeout, logr: logr}
}

// BuildQuery selects named food, shop and sightseeing nodes within radius of center.
func BuildQuery(center geo.Point, radiusMeters float64) string {
	around := fmt.Sprintf("around:%.0f,%.6f,%.6f", radiusMeters, center.Lat, center.Lon)
	return fmt.Sprintf(`
		[out:json][timeout:25];
		(
			node["amenity"~"^(cafe|restaurant|fast_food|theatre)$"]["name"](%[1]s);
			node["shop"]["name"](%[1]s);
			node["tourism"~"^(museum|attraction|gallery)$"]["name"](%[1]s);
		);
		out body;
	`, around)
}

// Around returns the places OpenStreetMap knows within radius of center, each
// associated with clinicID. Results are ordered by OSM id.
func (d *Discoverer) Around(ctx context.Context, center geo.Point, radiusMeters float64, clinicID string) ([]models.Place, error) {
	query := BuildQuery(center, radiusMeters)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	type answer struct {
		res overpass.Result
		err error
	}
	done := make(chan answer, 1)
	go func() {
		res, err := d.client.Query(query)
		done <- answer{res, err}
	}()

	var res overpass.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query abandoned: %w", ctx.Err())
	case a := <-done:
		if a.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", a.err)
		}
		res = a.res
	}

	ids := make([]int64, 0, len(res.Nodes))
	for id := range res.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	places := make([]models.Place, 0, len(ids))
	for _, id := range ids {
		p, ok := NodeToPlace(res.Nodes[id])
		if !ok {
			continue
		}
		if clinicID != "" {
			p.Clinics = []string{clinicID}
		}
		places = append(places, p)
	}
	d.logr.Info("overpass discovery",
		zap.String("clinic", clinicID),
		zap.Int("nodes", len(res.Nodes)),
		zap.Int("places", len(places)))
	return places, nil
}

// NodeToPlace converts an OSM node to a place. Nodes without a name or a
// recognizable kind are rejected.
func NodeToPlace(n *overpass.Node) (models.Place, bool) {
	if n == nil {
		return models.Place{}, false
	}
	name := strings.TrimSpace(n.Tags["name"])
	typ := rawType(n.Tags)
	if name == "" || typ == "" {
		return models.Place{}, false
	}
	c := geo.Point{Lat: n.Lat, Lon: n.Lon}
	return models.Place{
		ID:          "osm-node-" + strconv.FormatInt(n.ID, 10),
		Name:        name,
		Address:     address(n.Tags),
		Coordinates: &c,
		Type:        typ,
		Tags:        dietTags(n.Tags),
		Website:     n.Tags["website"],
		Phone:       n.Tags["phone"],
	}, true
}

// rawType maps OSM tags onto labels the category normalizer understands.
func rawType(tags map[string]string) string {
	cuisine := strings.ToLower(tags["cuisine"])
	switch tags["amenity"] {
	case "cafe":
		return "cafe"
	case "restaurant", "fast_food":
		switch {
		case strings.Contains(cuisine, "pizza"):
			return "pizza"
		case strings.Contains(cuisine, "bagel"):
			return "bagel"
		}
		return "restaurant"
	case "theatre":
		return "theater"
	}
	switch tags["tourism"] {
	case "museum", "gallery":
		return "museum"
	case "attraction":
		return "attraction"
	}
	switch tags["shop"] {
	case "":
	case "bakery", "coffee":
		return "bakery"
	default:
		return "shopping"
	}
	return ""
}

func address(tags map[string]string) string {
	street := strings.TrimSpace(strings.Join([]string{tags["addr:housenumber"], tags["addr:street"]}, " "))
	parts := []string{}
	if street != "" {
		parts = append(parts, street)
	}
	if city := tags["addr:city"]; city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}

var dietKeys = []struct{ key, tag string }{
	{"diet:vegan", "vegan"},
	{"diet:vegetarian", "vegetarian"},
	{"diet:gluten_free", "gluten-free"},
	{"diet:kosher", "kosher"},
	{"diet:halal", "halal"},
}

func dietTags(tags map[string]string) []string {
	var out []string
	for _, d := range dietKeys {
		if v := tags[d.key]; v == "yes" || v == "only" {
			out = append(out, d.tag)
		}
	}
	return out
}
