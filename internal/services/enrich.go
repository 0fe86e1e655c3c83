package services

import (
	"context"
	"errors"
	"math"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/models"

	"go.uber.org/zap"
)

// Discoverer finds places around a point. *discovery.Discoverer satisfies it.
type Discoverer interface {
	Around(ctx context.Context, center geo.Point, radiusMeters float64, clinicID string) ([]models.Place, error)
}

type EnrichOptions struct {
	// Discover adds OpenStreetMap places found around each located clinic.
	Discover       bool
	DiscoverRadius float64
}

// EnrichReport summarizes an enrichment run.
type EnrichReport struct {
	Missing     int `json:"missing"`
	Resolved    int `json:"resolved"`
	NotFound    int `json:"not_found"`
	Failed      int `json:"failed"`
	Implausible int `json:"implausible"`
	Discovered  int `json:"discovered"`
}

// EnrichmentService fills in missing coordinates for a whole dataset. Lookups
// run one after another so the geocoder's rate limiter paces them.
type EnrichmentService struct {
	geocoder          Geocoder
	discoverer        Discoverer
	implausibleMeters float64
	diag              *Diagnostics
	logr              *zap.Logger
}

func NewEnrichmentService(g Geocoder, d Discoverer, implausibleMeters float64, diag *Diagnostics, logr *zap.Logger) *EnrichmentService {
	if diag == nil {
		diag = &Diagnostics{}
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &EnrichmentService{geocoder: g, discoverer: d, implausibleMeters: implausibleMeters, diag: diag, logr: logr}
}

// Enrich returns a copy of places with coordinates resolved where possible.
// Clinics are resolved first so places can be checked against them. When ctx is
// cancelled the partial result is returned together with the context error.
func (s *EnrichmentService) Enrich(ctx context.Context, places []models.Place, opts EnrichOptions) ([]models.Place, EnrichReport, error) {
	out := make([]models.Place, len(places))
	copy(out, places)
	var report EnrichReport

	order := make([]int, 0, len(out))
	for i, p := range out {
		if p.IsClinic() {
			order = append(order, i)
		}
	}
	for i, p := range out {
		if !p.IsClinic() {
			order = append(order, i)
		}
	}

	for _, i := range order {
		p := out[i]
		if p.HasCoordinates() || p.Address == "" {
			continue
		}
		report.Missing++
		if err := ctx.Err(); err != nil {
			return out, report, err
		}

		res, err := s.geocoder.Geocode(ctx, p.Address)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return out, report, err
			case errors.Is(err, geocode.ErrNotFound):
				report.NotFound++
			default:
				report.Failed++
			}
			s.logr.Info("could not geocode place",
				zap.String("place", p.ID),
				zap.String("address", p.Address),
				zap.String("kind", geocode.KindOf(err).String()))
			continue
		}

		if !p.IsClinic() {
			if anchor, ok := nearestClinic(out, p, res.Point); ok {
				if d, err := geocode.CheckPlausible(anchor, res.Point, s.implausibleMeters); err != nil {
					report.Implausible++
					s.diag.ImplausibleMatches.Add(1)
					s.logr.Warn("suppressed implausible geocode",
						zap.String("place", p.ID),
						zap.String("address", p.Address),
						zap.Float64("distance_m", d))
					continue
				}
			}
		}
		out[i] = p.WithCoordinates(res.Point)
		report.Resolved++
	}

	if opts.Discover && s.discoverer != nil {
		for _, c := range out {
			if !c.IsClinic() || !c.HasCoordinates() {
				continue
			}
			found, err := s.discoverer.Around(ctx, *c.Coordinates, opts.DiscoverRadius, c.ID)
			if err != nil {
				s.logr.Warn("discovery failed", zap.String("clinic", c.ID), zap.Error(err))
				if ctx.Err() != nil {
					return out, report, ctx.Err()
				}
				continue
			}
			report.Discovered += len(found)
			out = append(out, found...)
		}
	}

	s.logr.Info("enrichment finished",
		zap.Int("missing", report.Missing),
		zap.Int("resolved", report.Resolved),
		zap.Int("not_found", report.NotFound),
		zap.Int("failed", report.Failed),
		zap.Int("implausible", report.Implausible),
		zap.Int("discovered", report.Discovered))
	return out, report, nil
}

// nearestClinic picks the located clinic p belongs to, or the one closest to
// at when p is not associated with any.
func nearestClinic(all []models.Place, p models.Place, at geo.Point) (geo.Point, bool) {
	best, bestD, found := geo.Point{}, math.Inf(1), false
	for _, c := range all {
		if !c.IsClinic() || !c.HasCoordinates() {
			continue
		}
		own := false
		for _, id := range p.Clinics {
			if id == c.ID {
				own = true
			}
		}
		if own {
			return *c.Coordinates, true
		}
		if d := geo.DistanceMeters(*c.Coordinates, at); d < bestD {
			best, bestD, found = *c.Coordinates, d, true
		}
	}
	return best, found
}
