package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Dataset
	PlacesSource string // file path or http(s) URL

	// Persistent geocode cache (optional)
	DatabaseURL string
	BunDebug    bool

	// Geocoder
	GeocoderURL          string
	GeocoderUserAgent    string
	GeocoderViewbox      string // minLat,minLon,maxLat,maxLon
	GeocoderCity         string
	GeocoderCityFallback bool
	GeocoderTimeout      time.Duration
	GeocoderMaxAttempts  int
	GeocoderBackoff      time.Duration
	GeocoderMinInterval  time.Duration

	// Routing / discovery
	RouterURL   string
	OverpassURL string

	// Matching
	DefaultRadiusMeters   float64
	LimitPerGroup         int
	FallbackClosestN      int
	ImplausibleDistanceKm float64
	FoldPizzaBagels       bool
	IconicAsActivity      bool
	ResolveMissingCoords  bool // geocode unlocated places for the closest fallback
	SessionTTL            time.Duration

	// Admin tokens
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	AdminTokenTTL     time.Duration

	AllowedOrigins []string
}

// Load loads environment variables and returns a Config struct
func Load() *Config {
	_ = godotenv.Load()

	allowedOrigins := strings.Split(
		getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		",",
	)
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	return &Config{
		Port:         getEnv("APP_PORT", "8780"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		PlacesSource: getEnv("PLACES_SOURCE", "places.json"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		BunDebug:     getEnvAsBool("BUNDEBUG", false),

		GeocoderURL:          getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:    getEnv("GEOCODER_USER_AGENT", "nearby-guide/1.0"),
		GeocoderViewbox:      getEnv("GEOCODER_VIEWBOX", "40.4774,-74.2591,40.9176,-73.7004"),
		GeocoderCity:         getEnv("GEOCODER_CITY", "New York, NY"),
		GeocoderCityFallback: getEnvAsBool("GEOCODER_CITY_FALLBACK", false),
		GeocoderTimeout:      time.Duration(getEnvAsInt("GEOCODER_TIMEOUT_SECONDS", 10)) * time.Second,
		GeocoderMaxAttempts:  getEnvAsInt("GEOCODER_MAX_ATTEMPTS", 3),
		GeocoderBackoff:      time.Duration(getEnvAsInt("GEOCODER_BACKOFF_MS", 500)) * time.Millisecond,
		GeocoderMinInterval:  time.Duration(getEnvAsInt("GEOCODER_MIN_INTERVAL_MS", 1000)) * time.Millisecond,

		RouterURL:   getEnvAllowEmpty("ROUTER_URL", "https://router.project-osrm.org"),
		OverpassURL: getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),

		DefaultRadiusMeters:   getEnvAsFloat("DEFAULT_RADIUS_METERS", 1200),
		LimitPerGroup:         getEnvAsInt("LIMIT_PER_GROUP", 8),
		FallbackClosestN:      getEnvAsInt("FALLBACK_CLOSEST_N", 12),
		ImplausibleDistanceKm: getEnvAsFloat("IMPLAUSIBLE_DISTANCE_KM", 300),
		FoldPizzaBagels:       getEnvAsBool("FOLD_PIZZA_BAGELS", false),
		IconicAsActivity:      getEnvAsBool("ICONIC_AS_ACTIVITY", false),
		ResolveMissingCoords:  getEnvAsBool("RESOLVE_MISSING_COORDS", false),
		SessionTTL:            time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 30)) * time.Minute,

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "keys/jwt_private.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "keys/jwt_public.pem"),
		AdminTokenTTL:     time.Duration(getEnvAsInt("ADMIN_TOKEN_HOURS", 12)) * time.Hour,

		AllowedOrigins: allowedOrigins,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvAllowEmpty keeps an explicitly empty value; only an unset key falls back.
func getEnvAllowEmpty(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("invalid bool for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsInt(key string, fallback int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("invalid int for %s, defaulting to %d\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Printf("invalid float for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}
