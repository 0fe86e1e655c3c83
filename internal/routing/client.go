// Package routing asks an OSRM-compatible service for travel time between two points.
// Results only decorate place cards; matching never depends on them.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/retry"
	"nearby-guide/internal/utils"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNoRoute     = errors.New("no route between the points")
	ErrUnavailable = errors.New("routing service unavailable")
	ErrBadResponse = errors.New("routing response unreadable")
)

// Profile is the travel mode.
type Profile string

const (
	Walking Profile = "walking"
	Driving Profile = "driving"
)

// ParseProfile accepts "walking", "walk", "foot", "driving", "drive" and "car".
// An empty string means walking.
func ParseProfile(s string) (Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "walking", "walk", "foot":
		return Walking, true
	case "driving", "drive", "car":
		return Driving, true
	}
	return "", false
}

// osrm names the walking profile "foot".
func (p Profile) osrm() string {
	if p == Walking {
		return "foot"
	}
	return string(p)
}

// Route is the best route found.
type Route struct {
	Profile         Profile `json:"profile"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Minutes rounds the duration to whole minutes.
func (r Route) Minutes() int {
	return int(math.Round(r.DurationSeconds / 60))
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *utils.RateLimiter
	policy  retry.Policy
	logr    *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, limiter *utils.RateLimiter, policy retry.Policy, logr *zap.Logger) *Client {
	if limiter == nil {
		limiter = utils.NewRateLimiter(0)
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		policy:  policy,
		logr:    logr,
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// transient marks failures worth retrying.
type transient struct{ err error }

func (t transient) Error() string { return t.err.Error() }
func (t transient) Unwrap() error { return t.err }

func isTransient(err error) bool {
	var t transient
	return errors.As(err, &t)
}

// Route returns the travel distance and duration from one point to another.
func (c *Client) Route(ctx context.Context, from, to geo.Point, profile Profile) (Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=false",
		c.baseURL, profile.osrm(), from.Lon, from.Lat, to.Lon, to.Lat)

	var out Route
	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logr.Debug("route retry", zap.Int("attempt", attempt), zap.Duration("backoff", delay), zap.Error(err))
	}
	err := policy.Do(ctx, isTransient, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		r, err := c.fetch(ctx, endpoint)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var t transient
		if errors.As(err, &t) {
			err = t.err
		}
		return Route{}, err
	}
	out.Profile = profile
	return out, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Route{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, transient{fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Route{}, transient{fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Route{}, transient{fmt.Errorf("%w: read body: %w", ErrUnavailable, err)}
	}

	var data osrmResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return Route{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	// OSRM reports NoRoute and friends with a 400 and a code
	if data.Code != "Ok" || len(data.Routes) == 0 {
		return Route{}, fmt.Errorf("%w: %s %s", ErrNoRoute, data.Code, data.Message)
	}
	return Route{
		DistanceMeters:  data.Routes[0].Distance,
		DurationSeconds: data.Routes[0].Duration,
	}, nil
}
