package geocode

import (
	"fmt"
	"nearby-guide/internal/config"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/retry"
	"nearby-guide/internal/utils"
	"time"

	"go.uber.org/zap"
)

// NewFromConfig builds a Nominatim-backed geocoder from cfg. cache may be nil for
// an in-memory cache.
func NewFromConfig(cfg *config.Config, cache Cache, logr *zap.Logger) (*Geocoder, error) {
	var viewbox geo.BoundingBox
	if cfg.GeocoderViewbox != "" {
		vb, err := geo.ParseBoundingBox(cfg.GeocoderViewbox)
		if err != nil {
			return nil, fmt.Errorf("GEOCODER_VIEWBOX: %w", err)
		}
		viewbox = vb
	}

	provider := NewNominatimProvider(cfg.GeocoderURL, cfg.GeocoderUserAgent, viewbox, cfg.GeocoderTimeout)
	policy := retry.Policy{
		MaxAttempts: cfg.GeocoderMaxAttempts,
		BaseDelay:   cfg.GeocoderBackoff,
		MaxDelay:    8 * time.Second,
	}

	return New(provider, cache, utils.NewRateLimiter(cfg.GeocoderMinInterval), Options{
		City:         cfg.GeocoderCity,
		CityFallback: cfg.GeocoderCityFallback,
		Retry:        policy,
	}, logr), nil
}
