package geocode

import (
	"context"
	"errors"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/logger"
	"nearby-guide/internal/retry"
	"nearby-guide/internal/utils"
	"time"

	"go.uber.org/zap"
)

// Result is a resolved query.
type Result struct {
	Point       geo.Point `json:"point"`
	DisplayName string    `json:"display_name,omitempty"`
	Query       string    `json:"query"`     // the input as given
	Variant     string    `json:"variant"`   // the ladder variant that matched
	CacheHit    bool      `json:"cache_hit"` // no network call was made
	Requests    int       `json:"requests"`  // network calls made for this lookup
}

// Options configures a Geocoder.
type Options struct {
	City         string // appended to stripped variants and used as the last resort
	CityFallback bool   // try the bare city as the final variant
	Retry        retry.Policy
}

// Geocoder resolves free text to coordinates through a Provider, a Cache, a shared
// RateLimiter and a retry policy. It is safe for concurrent use, but callers are
// expected to run lookups sequentially so the rate limiter paces them.
type Geocoder struct {
	provider Provider
	cache    Cache
	limiter  *utils.RateLimiter
	opts     Options
	logr     *zap.Logger
}

func New(provider Provider, cache Cache, limiter *utils.RateLimiter, opts Options, logr *zap.Logger) *Geocoder {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if limiter == nil {
		limiter = utils.NewRateLimiter(0)
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Geocoder{provider: provider, cache: cache, limiter: limiter, opts: opts, logr: logr}
}

// Cache exposes the cache backing the geocoder.
func (g *Geocoder) Cache() Cache {
	return g.cache
}

// Geocode resolves query. It walks the fallback ladder, answering each variant
// from the cache when possible. Definitive "no result" answers are cached and
// move on to the next variant; transient failures are retried per the policy and,
// once exhausted, end the lookup with that failure.
func (g *Geocoder) Geocode(ctx context.Context, query string) (Result, error) {
	inputKey := CacheKey(query)
	res := Result{Query: query}
	if inputKey == "" {
		return res, newError(KindNotFound, query, 0, errors.New("empty query"))
	}

	if e, ok := g.cacheGet(ctx, inputKey); ok {
		res.CacheHit = true
		res.Variant = NormalizeQuery(query)
		if e.NotFound {
			return res, newError(KindNotFound, query, 0, errors.New("cached negative result"))
		}
		res.Point, res.DisplayName = geo.Point{Lat: e.Lat, Lon: e.Lon}, e.DisplayName
		return res, nil
	}

	for _, variant := range Variants(query, g.opts.City, g.opts.CityFallback) {
		key := CacheKey(variant)
		res.Variant = variant

		if e, ok := g.cacheGet(ctx, key); ok {
			if e.NotFound {
				continue
			}
			res.Point, res.DisplayName = geo.Point{Lat: e.Lat, Lon: e.Lon}, e.DisplayName
			res.CacheHit = res.Requests == 0
			g.cacheSet(ctx, inputKey, e)
			return res, nil
		}

		match, n, err := g.search(ctx, variant)
		res.Requests += n
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// The input key is only marked not-found once the whole ladder misses.
				if key != inputKey {
					g.cacheSet(ctx, key, Entry{NotFound: true})
				}
				continue
			}
			return res, err
		}

		e := Entry{Lat: match.Point.Lat, Lon: match.Point.Lon, DisplayName: match.DisplayName}
		g.cacheSet(ctx, key, e)
		g.cacheSet(ctx, inputKey, e)
		res.Point, res.DisplayName = match.Point, match.DisplayName
		if variant != NormalizeQuery(query) {
			g.logr.Debug("geocode matched fallback variant",
				logger.Address("query", query),
				logger.Address("variant", variant))
		}
		return res, nil
	}

	g.cacheSet(ctx, inputKey, Entry{NotFound: true})
	return res, newError(KindNotFound, query, 0, nil)
}

// search performs one variant lookup under the retry policy, pacing every
// attempt through the rate limiter. It returns the number of requests sent.
func (g *Geocoder) search(ctx context.Context, variant string) (Match, int, error) {
	var (
		match    Match
		requests int
	)
	policy := g.opts.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		g.logr.Debug("geocode retry",
			logger.Address("variant", variant),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
	}

	err := policy.Do(ctx, IsRetryable, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return newError(KindNetwork, variant, 0, err)
		}
		requests++
		m, err := g.provider.Search(ctx, variant)
		if err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil && KindOf(err) == 0 {
		err = newError(KindNetwork, variant, 0, err)
	}
	if err != nil && IsRetryable(err) {
		g.logr.Warn("geocode failed after retries",
			logger.Address("variant", variant),
			zap.Int("requests", requests),
			zap.Error(err))
	}
	return match, requests, err
}

func (g *Geocoder) cacheGet(ctx context.Context, key string) (Entry, bool) {
	e, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logr.Warn("geocode cache read failed", logger.Address("key", key), zap.Error(err))
		return Entry{}, false
	}
	return e, ok
}

func (g *Geocoder) cacheSet(ctx context.Context, key string, e Entry) {
	if err := g.cache.Set(ctx, key, e); err != nil {
		g.logr.Warn("geocode cache write failed", logger.Address("key", key), zap.Error(err))
	}
}

// CheckPlausible returns ErrImplausibleMatch when p lies farther than maxMeters from anchor.
func CheckPlausible(anchor, p geo.Point, maxMeters float64) (float64, error) {
	d := geo.DistanceMeters(anchor, p)
	if maxMeters > 0 && d > maxMeters {
		return d, ErrImplausibleMatch
	}
	return d, nil
}
