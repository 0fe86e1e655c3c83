package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"nearby-guide/internal/geo"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Match is the best candidate a provider returned for one query.
type Match struct {
	Point       geo.Point
	DisplayName string
}

// Provider performs a single lookup against a geocoding service.
// Failures are returned as *Error so the caller can tell them apart.
type Provider interface {
	Search(ctx context.Context, query string) (Match, error)
}

// NominatimProvider queries a Nominatim-compatible /search endpoint.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	viewbox   geo.BoundingBox
	client    *http.Client
}

func NewNominatimProvider(baseURL, userAgent string, viewbox geo.BoundingBox, timeout time.Duration) *NominatimProvider {
	return &NominatimProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		viewbox:   viewbox,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p *NominatimProvider) Search(ctx context.Context, query string) (Match, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	if !p.viewbox.IsZero() {
		params.Set("viewbox", p.viewbox.Viewbox())
		params.Set("bounded", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Match{}, newError(KindRejected, query, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Match{}, newError(KindNetwork, query, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return Match{}, newError(KindRateLimited, query, resp.StatusCode, nil)
	case resp.StatusCode >= 500:
		return Match{}, newError(KindNetwork, query, resp.StatusCode, nil)
	case resp.StatusCode != http.StatusOK:
		return Match{}, newError(KindRejected, query, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Match{}, newError(KindNetwork, query, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Match{}, newError(KindParse, query, resp.StatusCode, fmt.Errorf("error decoding response: %w", err))
	}
	if len(results) == 0 {
		return Match{}, newError(KindNotFound, query, resp.StatusCode, nil)
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if err := errors.Join(latErr, lonErr); err != nil {
		return Match{}, newError(KindParse, query, resp.StatusCode, fmt.Errorf("invalid coordinates: %w", err))
	}

	return Match{
		Point:       geo.Point{Lat: lat, Lon: lon},
		DisplayName: results[0].DisplayName,
	}, nil
}
