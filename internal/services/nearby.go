package services

import (
	"context"
	"errors"
	"fmt"
	"nearby-guide/internal/category"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/logger"
	"nearby-guide/internal/matcher"
	"nearby-guide/internal/models"
	"nearby-guide/internal/repository"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrClinicNotFound = errors.New("clinic not found")
	ErrPlaceNotFound  = errors.New("place not found")
	ErrEmptyQuery     = errors.New("empty address")
)

// FallbackLabel heads the closest-places view shown when nothing is within the radius.
const FallbackLabel = "Closest places, outside the normal radius"

// Geocoder resolves free text to coordinates. *geocode.Geocoder satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geocode.Result, error)
}

type NearbyConfig struct {
	DefaultRadiusMeters float64
	LimitPerGroup       int
	FallbackClosestN    int
	ImplausibleMeters   float64
	// ResolveMissing geocodes places without coordinates when building the
	// closest-places fallback. Resolved points are never written back.
	ResolveMissing bool
}

// NearbyService answers "what is near this clinic / this address".
type NearbyService struct {
	store    *repository.Store
	matcher  *matcher.Matcher
	geocoder Geocoder
	sessions *Sessions
	diag     *Diagnostics
	cfg      NearbyConfig
	logr     *zap.Logger
}

func NewNearbyService(store *repository.Store, m *matcher.Matcher, g Geocoder, sessions *Sessions, diag *Diagnostics, cfg NearbyConfig, logr *zap.Logger) *NearbyService {
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = matcher.DefaultRadiusMeters
	}
	if cfg.FallbackClosestN <= 0 {
		cfg.FallbackClosestN = matcher.DefaultClosestN
	}
	if diag == nil {
		diag = &Diagnostics{}
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &NearbyService{
		store:    store,
		matcher:  m,
		geocoder: g,
		sessions: sessions,
		diag:     diag,
		cfg:      cfg,
		logr:     logr,
	}
}

// ForClinic groups the places around a clinic.
func (s *NearbyService) ForClinic(ctx context.Context, clinicID string, q models.NearbyQuery) (models.NearbyResponse, error) {
	snap := s.store.Snapshot()
	clinic, ok := snap.Clinic(clinicID)
	if !ok {
		return models.NearbyResponse{}, ErrClinicNotFound
	}
	if !clinic.HasCoordinates() {
		s.logr.Warn("clinic has no coordinates", zap.String("clinic", clinicID))
	}
	return s.respond(ctx, models.AnchorForClinic(clinic), snap, q), nil
}

// ForAddress geocodes address and groups the places around it. Searches within
// one session supersede each other: when a newer one starts first, this one
// returns ErrSuperseded and its result is dropped. The session id in use is
// returned so callers can hand it back to the client.
func (s *NearbyService) ForAddress(ctx context.Context, sessionID, address string, q models.NearbyQuery) (models.NearbyResponse, string, error) {
	address = strings.TrimSpace(address)
	sess := s.sessions.Get(sessionID)
	if address == "" {
		return models.NearbyResponse{}, sess.ID, ErrEmptyQuery
	}

	ticket, sctx, cancel := sess.Begin(ctx)
	defer cancel()

	anchor, err := s.ResolveAnchor(sctx, address)
	if !sess.Current(ticket) {
		s.diag.SupersededSearches.Add(1)
		s.logr.Debug("address search superseded",
			zap.String("session", sess.ID),
			zap.Uint64("generation", ticket.Generation))
		return models.NearbyResponse{}, sess.ID, ErrSuperseded
	}
	if err != nil {
		return models.NearbyResponse{}, sess.ID, err
	}

	resp := s.respond(sctx, anchor, s.store.Snapshot(), q)
	if err := sess.Commit(ticket, address, resp); err != nil {
		s.diag.SupersededSearches.Add(1)
		return models.NearbyResponse{}, sess.ID, err
	}
	return resp, sess.ID, nil
}

// Last returns the latest committed address search of a session.
func (s *NearbyService) Last(sessionID string) (models.NearbyResponse, string, bool) {
	return s.sessions.Get(sessionID).Last()
}

// Closest returns the n places nearest to a clinic regardless of radius.
func (s *NearbyService) Closest(ctx context.Context, clinicID string, n int, q models.NearbyQuery) (models.FallbackView, error) {
	snap := s.store.Snapshot()
	clinic, ok := snap.Clinic(clinicID)
	if !ok {
		return models.FallbackView{}, ErrClinicNotFound
	}
	if n <= 0 {
		n = s.cfg.FallbackClosestN
	}
	results := s.closest(ctx, models.AnchorForClinic(clinic), snap, n, filterOf(q))
	return models.FallbackView{Label: FallbackLabel, Places: models.Cards(results)}, nil
}

// Geocode resolves a query and records it in the diagnostics.
func (s *NearbyService) Geocode(ctx context.Context, query string) (geocode.Result, error) {
	if s.geocoder == nil {
		return geocode.Result{Query: query}, fmt.Errorf("geocoding disabled: %w", geocode.ErrRejected)
	}
	res, err := s.geocoder.Geocode(ctx, query)
	s.diag.GeocodeLookups.Add(1)
	s.diag.GeocodeRequests.Add(int64(res.Requests))
	if res.CacheHit {
		s.diag.GeocodeCacheHits.Add(1)
	}
	if err != nil {
		s.diag.GeocodeFailures.Add(1)
		s.logr.Info("geocode failed",
			logger.Address("query", query),
			zap.String("kind", geocode.KindOf(err).String()),
			zap.Error(err))
	}
	return res, err
}

// ResolveAnchor turns an address into an anchor point.
func (s *NearbyService) ResolveAnchor(ctx context.Context, address string) (models.AnchorPoint, error) {
	res, err := s.Geocode(ctx, address)
	if err != nil {
		return models.AnchorPoint{}, err
	}
	p := res.Point
	return models.AnchorPoint{Coordinates: &p, Label: address}, nil
}

func (s *NearbyService) respond(ctx context.Context, anchor models.AnchorPoint, snap *repository.Snapshot, q models.NearbyQuery) models.NearbyResponse {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = s.cfg.DefaultRadiusMeters
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.LimitPerGroup
	}
	filter := filterOf(q)

	groups := s.matcher.GroupedNearby(anchor, snap, matcher.Options{
		Filter:       filter,
		RadiusMeters: radius,
		Limit:        limit,
	})

	resp := models.NearbyResponse{
		Anchor:            anchor,
		RadiusMeters:      radius,
		RadiusMiles:       geo.MetersToMiles(radius),
		RadiusWalkMinutes: radius / geo.WalkingMetersPerMinute,
		Groups:            make([]models.GroupView, 0, len(groups)),
		Banner:            s.store.Status().Banner,
	}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, models.GroupView{
			Category: g.Category,
			Title:    g.Title,
			Places:   models.Cards(g.Results),
		})
	}

	if len(groups) == 0 && anchor.Coordinates != nil {
		closest := s.closest(ctx, anchor, snap, s.cfg.FallbackClosestN, filter)
		if len(closest) > 0 {
			s.diag.FallbackViews.Add(1)
			resp.Fallback = &models.FallbackView{Label: FallbackLabel, Places: models.Cards(closest)}
		}
	}
	return resp
}

func (s *NearbyService) closest(ctx context.Context, anchor models.AnchorPoint, snap *repository.Snapshot, n int, filter matcher.Filter) []models.MatchResult {
	places := snap.Places()
	if s.cfg.ResolveMissing && s.geocoder != nil && anchor.Coordinates != nil {
		places = s.resolveMissing(ctx, *anchor.Coordinates, places)
	}
	return s.matcher.FindClosest(anchor, matcher.Places(places), n, filter)
}

// resolveMissing geocodes the addresses of unlocated places, one at a time.
// Results implausibly far from the anchor are dropped and counted.
func (s *NearbyService) resolveMissing(ctx context.Context, anchor geo.Point, places []models.Place) []models.Place {
	for i, p := range places {
		if p.HasCoordinates() || p.Address == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res, err := s.Geocode(ctx, p.Address)
		if err != nil {
			continue
		}
		if d, err := geocode.CheckPlausible(anchor, res.Point, s.cfg.ImplausibleMeters); err != nil {
			s.diag.ImplausibleMatches.Add(1)
			s.logr.Warn("suppressed implausible geocode",
				zap.String("place", p.ID),
				zap.String("address", p.Address),
				zap.Float64("distance_m", d))
			continue
		}
		places[i] = p.WithCoordinates(res.Point)
	}
	return places
}

func filterOf(q models.NearbyQuery) matcher.Filter {
	return matcher.Filter{Categories: q.Categories, RequiredTags: q.Tags}
}

// ParseCategories validates category names, ignoring blanks.
func ParseCategories(names []string) ([]category.Category, error) {
	var out []category.Category
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		c, ok := category.Parse(n)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}
