package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// BoundingBox is the rectangle used to bias geocoding toward one city.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// ParseBoundingBox parses a bbox string in format "minLat,minLon,maxLat,maxLon".
func ParseBoundingBox(bbox string) (BoundingBox, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox must have 4 components, got %d", len(parts))
	}

	var vals [4]float64
	names := [4]string{"minLat", "minLon", "maxLat", "maxLon"}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
		vals[i] = v
	}
	b := BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}

	if b.MinLat < -90 || b.MinLat > 90 || b.MaxLat < -90 || b.MaxLat > 90 {
		return BoundingBox{}, fmt.Errorf("latitude out of range [-90, 90]")
	}
	if b.MinLon < -180 || b.MinLon > 180 || b.MaxLon < -180 || b.MaxLon > 180 {
		return BoundingBox{}, fmt.Errorf("longitude out of range [-180, 180]")
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return BoundingBox{}, fmt.Errorf("minLat must be <= maxLat and minLon must be <= maxLon")
	}
	return b, nil
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Viewbox renders the box in Nominatim order: left,top,right,bottom.
func (b BoundingBox) Viewbox() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		strconv.FormatFloat(b.MinLon, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64),
		strconv.FormatFloat(b.MinLat, 'f', -1, 64),
	)
}

// IsZero reports whether the box was never set.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}
