package services

import (
	"context"
	"errors"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/repository"
	"nearby-guide/internal/routing"

	"go.uber.org/zap"
)

// ErrNoCoordinates means one end of a route is not located.
var ErrNoCoordinates = errors.New("place has no coordinates")

// Router computes a route. *routing.Client satisfies it.
type Router interface {
	Route(ctx context.Context, from, to geo.Point, profile routing.Profile) (routing.Route, error)
}

// RouteResult is the travel estimate between a clinic and a place. When the
// routing service cannot answer, Route is nil and the estimate is derived from
// the straight-line distance.
type RouteResult struct {
	ClinicID           string          `json:"clinic_id"`
	PlaceID            string          `json:"place_id"`
	Profile            routing.Profile `json:"profile"`
	Route              *routing.Route  `json:"route,omitempty"`
	StraightLineMeters float64         `json:"straight_line_meters"`
	Minutes            int             `json:"minutes"`
	Estimated          bool            `json:"estimated"`
}

type RouteService struct {
	store  *repository.Store
	router Router
	diag   *Diagnostics
	logr   *zap.Logger
}

func NewRouteService(store *repository.Store, router Router, diag *Diagnostics, logr *zap.Logger) *RouteService {
	if diag == nil {
		diag = &Diagnostics{}
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &RouteService{store: store, router: router, diag: diag, logr: logr}
}

func (s *RouteService) Route(ctx context.Context, clinicID, placeID string, profile routing.Profile) (RouteResult, error) {
	snap := s.store.Snapshot()
	clinic, ok := snap.Clinic(clinicID)
	if !ok {
		return RouteResult{}, ErrClinicNotFound
	}
	place, ok := snap.Place(placeID)
	if !ok {
		return RouteResult{}, ErrPlaceNotFound
	}
	if !clinic.HasCoordinates() || !place.HasCoordinates() {
		return RouteResult{}, ErrNoCoordinates
	}

	straight := geo.DistanceMeters(*clinic.Coordinates, *place.Coordinates)
	res := RouteResult{
		ClinicID:           clinic.ID,
		PlaceID:            place.ID,
		Profile:            profile,
		StraightLineMeters: straight,
		Minutes:            geo.MetersToWalkMinutes(straight),
		Estimated:          true,
	}
	if s.router == nil || profile != routing.Walking && profile != routing.Driving {
		return res, nil
	}

	r, err := s.router.Route(ctx, *clinic.Coordinates, *place.Coordinates, profile)
	if err != nil {
		s.diag.RouteFailures.Add(1)
		s.logr.Warn("route lookup failed, using straight-line estimate",
			zap.String("clinic", clinic.ID),
			zap.String("place", place.ID),
			zap.Error(err))
		return res, nil
	}
	res.Route = &r
	res.Minutes = r.Minutes()
	res.Estimated = false
	return res, nil
}
