package geocode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// CachedGeocode is one persisted lookup.
type CachedGeocode struct {
	bun.BaseModel `bun:"table:geocode_cache,alias:gc"`

	Key         string    `bun:"key,pk" json:"key"`
	Lat         float64   `bun:"lat" json:"lat"`
	Lon         float64   `bun:"lon" json:"lon"`
	DisplayName string    `bun:"display_name" json:"display_name"`
	NotFound    bool      `bun:"not_found,notnull,default:false" json:"not_found"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// BunCache persists lookups in Postgres so they survive restarts.
type BunCache struct {
	db *bun.DB
}

func NewBunCache(db *bun.DB) *BunCache {
	return &BunCache{db: db}
}

// EnsureSchema creates the cache table when missing.
func (c *BunCache) EnsureSchema(ctx context.Context) error {
	_, err := c.db.NewCreateTable().
		Model((*CachedGeocode)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create geocode_cache: %w", err)
	}
	return nil
}

func (c *BunCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	row := new(CachedGeocode)
	err := c.db.NewSelect().
		Model(row).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read geocode cache: %w", err)
	}
	return Entry{Lat: row.Lat, Lon: row.Lon, DisplayName: row.DisplayName, NotFound: row.NotFound}, true, nil
}

func (c *BunCache) Set(ctx context.Context, key string, e Entry) error {
	row := &CachedGeocode{
		Key:         key,
		Lat:         e.Lat,
		Lon:         e.Lon,
		DisplayName: e.DisplayName,
		NotFound:    e.NotFound,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := c.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("lat = EXCLUDED.lat").
		Set("lon = EXCLUDED.lon").
		Set("display_name = EXCLUDED.display_name").
		Set("not_found = EXCLUDED.not_found").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	return nil
}

// Count returns how many lookups are persisted.
func (c *BunCache) Count(ctx context.Context) (int, error) {
	return c.db.NewSelect().Model((*CachedGeocode)(nil)).Count(ctx)
}
