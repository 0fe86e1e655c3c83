package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("GEOCODER_MAX_ATTEMPTS", "")
	t.Setenv("DEFAULT_RADIUS_METERS", "")

	cfg := Load()

	if cfg.Port != "8780" {
		t.Errorf("Port = %q, want 8780", cfg.Port)
	}
	if cfg.GeocoderMaxAttempts != 3 {
		t.Errorf("GeocoderMaxAttempts = %d, want 3", cfg.GeocoderMaxAttempts)
	}
	if cfg.DefaultRadiusMeters != 1200 {
		t.Errorf("DefaultRadiusMeters = %v, want 1200", cfg.DefaultRadiusMeters)
	}
	if cfg.GeocoderMinInterval != time.Second {
		t.Errorf("GeocoderMinInterval = %v, want 1s", cfg.GeocoderMinInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULT_RADIUS_METERS", "800.5")
	t.Setenv("FOLD_PIZZA_BAGELS", "true")
	t.Setenv("GEOCODER_BACKOFF_MS", "250")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LIMIT_PER_GROUP", "not-a-number")

	cfg := Load()

	if cfg.DefaultRadiusMeters != 800.5 {
		t.Errorf("DefaultRadiusMeters = %v", cfg.DefaultRadiusMeters)
	}
	if !cfg.FoldPizzaBagels {
		t.Error("FoldPizzaBagels should be true")
	}
	if cfg.GeocoderBackoff != 250*time.Millisecond {
		t.Errorf("GeocoderBackoff = %v", cfg.GeocoderBackoff)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LimitPerGroup != 8 {
		t.Errorf("LimitPerGroup = %d, want fallback 8", cfg.LimitPerGroup)
	}
}

func TestRouterURLEmptyDisablesRouting(t *testing.T) {
	t.Setenv("ROUTER_URL", "")
	if got := Load().RouterURL; got != "" {
		t.Errorf("RouterURL = %q, want empty when set to empty", got)
	}

	t.Setenv("ROUTER_URL", "http://osrm.internal:5000")
	if got := Load().RouterURL; got != "http://osrm.internal:5000" {
		t.Errorf("RouterURL = %q", got)
	}

	os.Unsetenv("ROUTER_URL")
	if got := Load().RouterURL; got != "https://router.project-osrm.org" {
		t.Errorf("RouterURL = %q, want the public default when unset", got)
	}
}
