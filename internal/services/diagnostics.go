package services

import "sync/atomic"

// Diagnostics counts events worth watching that never reach the user as errors.
type Diagnostics struct {
	ImplausibleMatches atomic.Int64
	SupersededSearches atomic.Int64
	GeocodeLookups     atomic.Int64
	GeocodeCacheHits   atomic.Int64
	GeocodeRequests    atomic.Int64
	GeocodeFailures    atomic.Int64
	FallbackViews      atomic.Int64
	RouteFailures      atomic.Int64
}

// DiagnosticsReport is a point-in-time copy of Diagnostics.
type DiagnosticsReport struct {
	ImplausibleMatches int64 `json:"implausible_matches"`
	SupersededSearches int64 `json:"superseded_searches"`
	GeocodeLookups     int64 `json:"geocode_lookups"`
	GeocodeCacheHits   int64 `json:"geocode_cache_hits"`
	GeocodeRequests    int64 `json:"geocode_requests"`
	GeocodeFailures    int64 `json:"geocode_failures"`
	FallbackViews      int64 `json:"fallback_views"`
	RouteFailures      int64 `json:"route_failures"`
}

func (d *Diagnostics) Report() DiagnosticsReport {
	return DiagnosticsReport{
		ImplausibleMatches: d.ImplausibleMatches.Load(),
		SupersededSearches: d.SupersededSearches.Load(),
		GeocodeLookups:     d.GeocodeLookups.Load(),
		GeocodeCacheHits:   d.GeocodeCacheHits.Load(),
		GeocodeRequests:    d.GeocodeRequests.Load(),
		GeocodeFailures:    d.GeocodeFailures.Load(),
		FallbackViews:      d.FallbackViews.Load(),
		RouteFailures:      d.RouteFailures.Load(),
	}
}
