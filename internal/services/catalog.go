package services

import (
	"context"
	"nearby-guide/internal/category"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/models"
	"nearby-guide/internal/repository"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// PlacesFilter narrows a catalog listing. Zero values match everything.
type PlacesFilter struct {
	Type     string
	Category category.Category
	ClinicID string
}

// StatusReport describes the dataset in service and the runtime counters.
type StatusReport struct {
	repository.Status
	Categories         map[category.Category]int `json:"categories"`
	MissingCoordinates int                       `json:"missing_coordinates"`
	Sessions           int                       `json:"sessions"`
	GeocodeCache       *int                      `json:"geocode_cache_entries,omitempty"`
	Diagnostics        DiagnosticsReport         `json:"diagnostics"`
}

// CatalogService exposes the dataset and reloads it.
type CatalogService struct {
	store    *repository.Store
	source   repository.Source
	sessions *Sessions
	cache    geocode.Cache
	diag     *Diagnostics
	logr     *zap.Logger

	reloadMu sync.Mutex
}

// NewCatalogService builds the catalog. cache is the geocode cache whose size is
// reported by Status; nil leaves it out.
func NewCatalogService(store *repository.Store, source repository.Source, sessions *Sessions, cache geocode.Cache, diag *Diagnostics, logr *zap.Logger) *CatalogService {
	if diag == nil {
		diag = &Diagnostics{}
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &CatalogService{store: store, source: source, sessions: sessions, cache: cache, diag: diag, logr: logr}
}

func (s *CatalogService) Clinics() []models.Place {
	return s.store.Snapshot().Clinics()
}

func (s *CatalogService) Clinic(id string) (models.Place, error) {
	c, ok := s.store.Snapshot().Clinic(id)
	if !ok {
		return models.Place{}, ErrClinicNotFound
	}
	return c, nil
}

func (s *CatalogService) Place(id string) (models.Place, error) {
	p, ok := s.store.Snapshot().Place(id)
	if !ok {
		return models.Place{}, ErrPlaceNotFound
	}
	return p, nil
}

// Places lists the non-clinic places matching f.
func (s *CatalogService) Places(f PlacesFilter) ([]models.Place, error) {
	snap := s.store.Snapshot()

	var places []models.Place
	switch {
	case f.ClinicID != "":
		if _, ok := snap.Clinic(f.ClinicID); !ok {
			return nil, ErrClinicNotFound
		}
		places = snap.ByClinic(f.ClinicID)
	case f.Category != "":
		places = snap.ByCategory(f.Category)
	default:
		places = snap.Places()
	}

	out := places[:0]
	norm := snap.Normalizer()
	for _, p := range places {
		if f.Type != "" && !strings.EqualFold(p.Type, f.Type) {
			continue
		}
		if f.Category != "" && norm.Normalize(p.Type, p.Name) != f.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Status reports on the dataset and the service counters.
func (s *CatalogService) Status(ctx context.Context) StatusReport {
	snap := s.store.Snapshot()
	r := StatusReport{
		Status:             s.store.Status(),
		Categories:         snap.CountByCategory(),
		MissingCoordinates: snap.MissingCoordinates(),
		Diagnostics:        s.diag.Report(),
	}
	if s.sessions != nil {
		r.Sessions = s.sessions.Len()
	}
	if s.cache != nil {
		n, err := geocode.Count(ctx, s.cache)
		if err != nil {
			s.logr.Warn("geocode cache count failed", zap.Error(err))
		} else {
			r.GeocodeCache = &n
		}
	}
	return r
}

// Diagnostics returns the runtime counters.
func (s *CatalogService) Diagnostics() DiagnosticsReport {
	return s.diag.Report()
}

// Reload reads the source again and swaps the dataset in. On failure the
// previous dataset stays in service.
func (s *CatalogService) Reload(ctx context.Context) (StatusReport, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if _, err := s.store.Load(ctx, s.source); err != nil {
		return s.Status(ctx), err
	}
	return s.Status(ctx), nil
}
