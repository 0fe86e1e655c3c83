package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nearby-guide/internal/category"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/matcher"
	"nearby-guide/internal/models"
	"nearby-guide/internal/repository"
	"nearby-guide/internal/routing"
)

const dataset = `{
  "clinics": [
    {"id": "midtown", "name": "Aster Midtown", "address": "1 W 46th St, New York, NY", "lat": 40.7590, "lon": -73.9845},
    {"id": "island", "name": "Aster Staten Island", "address": "2655 Richmond Ave", "lat": 40.5795, "lon": -74.1502}
  ],
  "places": [
    {"id": "blue-bottle", "name": "Blue Bottle", "type": "cafe", "lat": 40.7595, "lon": -73.9850, "tags": ["coffee"]},
    {"id": "joes", "name": "Joe's Pizza", "type": "pizza_bagels", "lat": 40.7546, "lon": -73.9870, "price_level": "$"},
    {"id": "ess", "name": "Ess-a-Bagel", "type": "pizza_bagels", "lat": 40.7566, "lon": -73.9722},
    {"id": "rink", "name": "Rockefeller Rink", "type": "iconic", "lat": 40.7587, "lon": -73.9787, "featured_for": ["midtown"]},
    {"id": "ghost", "name": "Ghost Cafe", "type": "cafe", "address": "10 Unknown St"},
    {"id": "moma-store", "name": "MoMA Design Store", "type": "museum", "lat": 40.7615, "lon": -73.9776, "clinics": ["midtown"]}
  ]
}`

type fakeGeocoder struct {
	mu      sync.Mutex
	calls   []string
	points  map[string]geo.Point
	errs    map[string]error
	started chan string
	release chan struct{}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, q string) (geocode.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()

	if q == "slow" && f.release != nil {
		f.started <- q
		<-f.release // arrives late even if the caller gave up
	}
	if err, ok := f.errs[q]; ok {
		return geocode.Result{Query: q, Requests: 1}, err
	}
	p, ok := f.points[q]
	if !ok {
		return geocode.Result{Query: q, Requests: 1}, geocode.ErrNotFound
	}
	return geocode.Result{Query: q, Point: p, Variant: q, Requests: 1}, nil
}

func loadStore(t *testing.T) *repository.Store {
	t.Helper()
	store := repository.NewStore(category.Normalizer{}, zap.NewNop())
	if _, err := store.Load(context.Background(), repository.BytesSource{Label: "test", Data: []byte(dataset)}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return store
}

func newNearby(t *testing.T, g Geocoder, cfg NearbyConfig) (*NearbyService, *Diagnostics) {
	t.Helper()
	diag := &Diagnostics{}
	if cfg.LimitPerGroup == 0 {
		cfg.LimitPerGroup = 8
	}
	if cfg.ImplausibleMeters == 0 {
		cfg.ImplausibleMeters = 300_000
	}
	svc := NewNearbyService(loadStore(t), matcher.New(category.Normalizer{}), g, NewSessions(time.Hour), diag, cfg, zap.NewNop())
	return svc, diag
}

func groupByCategory(resp models.NearbyResponse) map[category.Category]models.GroupView {
	out := map[category.Category]models.GroupView{}
	for _, g := range resp.Groups {
		out[g.Category] = g
	}
	return out
}

func TestForClinicGroups(t *testing.T) {
	svc, _ := newNearby(t, nil, NearbyConfig{})
	resp, err := svc.ForClinic(context.Background(), "midtown", models.NearbyQuery{})
	if err != nil {
		t.Fatalf("ForClinic: %v", err)
	}
	if resp.RadiusMeters != 1200 || resp.Fallback != nil {
		t.Errorf("radius=%v fallback=%v", resp.RadiusMeters, resp.Fallback)
	}
	if resp.Groups[0].Category != category.Cafe {
		t.Fatalf("first group = %s, want cafe", resp.Groups[0].Category)
	}

	cafe := resp.Groups[0].Places[0]
	if cafe.ID != "blue-bottle" || cafe.WalkMinutes == nil || *cafe.WalkMinutes != 1 {
		t.Errorf("first cafe card = %+v", cafe)
	}

	groups := groupByCategory(resp)
	if g, ok := groups[category.Iconic]; !ok || !g.Places[0].Featured {
		t.Errorf("featured rink missing from iconic group: %+v", g)
	}
	if g, ok := groups[category.Shopping]; !ok || g.Places[0].ID != "moma-store" {
		t.Error("design store should be grouped under shopping")
	}
	if g, ok := groups[category.Bagel]; !ok || g.Places[0].ID != "ess" {
		t.Error("Ess-a-Bagel should be in the bagel group")
	}
	if g, ok := groups[category.Pizza]; !ok || g.Places[0].ID != "joes" {
		t.Error("Joe's Pizza should be in the pizza group")
	}
}

func TestForClinicFiltersAndUnknown(t *testing.T) {
	svc, _ := newNearby(t, nil, NearbyConfig{})

	if _, err := svc.ForClinic(context.Background(), "nope", models.NearbyQuery{}); !errors.Is(err, ErrClinicNotFound) {
		t.Errorf("err = %v, want clinic not found", err)
	}

	resp, err := svc.ForClinic(context.Background(), "midtown", models.NearbyQuery{Tags: []string{"Coffee"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Places[0].ID != "blue-bottle" {
		t.Errorf("tag filter groups = %+v", resp.Groups)
	}
}

func TestForClinicFallsBackToClosest(t *testing.T) {
	svc, diag := newNearby(t, nil, NearbyConfig{})
	resp, err := svc.ForClinic(context.Background(), "island", models.NearbyQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Groups) != 0 {
		t.Errorf("nothing is within walking distance of the island clinic, got %d groups", len(resp.Groups))
	}
	if resp.Fallback == nil || resp.Fallback.Label != FallbackLabel {
		t.Fatalf("fallback = %+v", resp.Fallback)
	}
	if len(resp.Fallback.Places) != 5 {
		t.Errorf("fallback places = %d, want the 5 located places", len(resp.Fallback.Places))
	}
	for _, p := range resp.Fallback.Places {
		if p.ID == "ghost" {
			t.Error("unlocated place must not appear in the fallback")
		}
	}
	if diag.FallbackViews.Load() != 1 {
		t.Errorf("fallback views = %d", diag.FallbackViews.Load())
	}
}

func TestFallbackResolvesMissingCoordinates(t *testing.T) {
	g := &fakeGeocoder{points: map[string]geo.Point{"10 Unknown St": {Lat: 40.5800, Lon: -74.1500}}}
	svc, _ := newNearby(t, g, NearbyConfig{ResolveMissing: true})

	resp, err := svc.ForClinic(context.Background(), "island", models.NearbyQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Fallback == nil || resp.Fallback.Places[0].ID != "ghost" {
		t.Fatalf("freshly located place should lead the fallback: %+v", resp.Fallback)
	}

	// the dataset itself is untouched
	again, _ := svc.store.Snapshot().Place("ghost")
	if again.HasCoordinates() {
		t.Error("resolved coordinates leaked into the repository")
	}
}

func TestFallbackSuppressesImplausibleMatches(t *testing.T) {
	g := &fakeGeocoder{points: map[string]geo.Point{"10 Unknown St": {Lat: 48.8566, Lon: 2.3522}}}
	svc, diag := newNearby(t, g, NearbyConfig{ResolveMissing: true})

	resp, err := svc.Closest(context.Background(), "island", 20, models.NearbyQuery{})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range resp.Places {
		if p.ID == "ghost" {
			t.Error("implausible match should be suppressed")
		}
	}
	if diag.ImplausibleMatches.Load() != 1 {
		t.Errorf("implausible count = %d, want 1", diag.ImplausibleMatches.Load())
	}
}

func TestForAddress(t *testing.T) {
	g := &fakeGeocoder{points: map[string]geo.Point{"1 W 46th St": {Lat: 40.7590, Lon: -73.9845}}}
	svc, diag := newNearby(t, g, NearbyConfig{})

	resp, sid, err := svc.ForAddress(context.Background(), "", " 1 W 46th St ", models.NearbyQuery{})
	if err != nil {
		t.Fatalf("ForAddress: %v", err)
	}
	if _, err := uuid.Parse(sid); err != nil {
		t.Errorf("session id %q is not a uuid", sid)
	}
	if resp.Anchor.ClinicID != "" || len(resp.Groups) == 0 {
		t.Errorf("address anchor = %+v, groups %d", resp.Anchor, len(resp.Groups))
	}
	for _, g := range resp.Groups {
		for _, p := range g.Places {
			if p.Featured {
				t.Errorf("%s pinned for an address search", p.ID)
			}
		}
	}

	last, query, ok := svc.Last(sid)
	if !ok || query != "1 W 46th St" || len(last.Groups) != len(resp.Groups) {
		t.Errorf("last search not recorded: %q %v", query, ok)
	}
	if diag.GeocodeLookups.Load() != 1 {
		t.Errorf("lookups = %d", diag.GeocodeLookups.Load())
	}
}

func TestForAddressErrors(t *testing.T) {
	limited := errors.Join(geocode.ErrRateLimited, errors.New("503"))
	g := &fakeGeocoder{errs: map[string]error{"busy": limited}}
	svc, diag := newNearby(t, g, NearbyConfig{})

	if _, _, err := svc.ForAddress(context.Background(), "", "   ", models.NearbyQuery{}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank address err = %v", err)
	}
	if _, _, err := svc.ForAddress(context.Background(), "", "busy", models.NearbyQuery{}); !errors.Is(err, geocode.ErrRateLimited) {
		t.Errorf("err = %v, want rate limited", err)
	}
	if _, _, err := svc.ForAddress(context.Background(), "", "nowhere", models.NearbyQuery{}); !errors.Is(err, geocode.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
	if diag.GeocodeFailures.Load() != 2 {
		t.Errorf("failures = %d, want 2", diag.GeocodeFailures.Load())
	}
}

func TestSupersededSearchIsDiscarded(t *testing.T) {
	g := &fakeGeocoder{
		points: map[string]geo.Point{
			"slow": {Lat: 40.5795, Lon: -74.1502},
			"fast": {Lat: 40.7590, Lon: -73.9845},
		},
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	svc, diag := newNearby(t, g, NearbyConfig{})
	sid := uuid.NewString()

	type outcome struct {
		resp models.NearbyResponse
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		resp, _, err := svc.ForAddress(context.Background(), sid, "slow", models.NearbyQuery{})
		first <- outcome{resp, err}
	}()
	<-g.started

	second, _, err := svc.ForAddress(context.Background(), sid, "fast", models.NearbyQuery{})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	close(g.release)

	a := <-first
	if !errors.Is(a.err, ErrSuperseded) {
		t.Fatalf("first search err = %v, want superseded", a.err)
	}

	last, query, ok := svc.Last(sid)
	if !ok || query != "fast" {
		t.Fatalf("session shows %q, want the newer search", query)
	}
	if last.Anchor.Coordinates.Lat != second.Anchor.Coordinates.Lat {
		t.Error("late result overwrote the newer one")
	}
	if diag.SupersededSearches.Load() != 1 {
		t.Errorf("superseded = %d", diag.SupersededSearches.Load())
	}
}

func TestSessionBeginCancelsPrevious(t *testing.T) {
	s := NewSessions(time.Hour).Get("")
	t1, ctx1, cancel1 := s.Begin(context.Background())
	defer cancel1()
	t2, _, cancel2 := s.Begin(context.Background())
	defer cancel2()

	if ctx1.Err() == nil {
		t.Error("older search context should be cancelled")
	}
	if s.Current(t1) || !s.Current(t2) {
		t.Error("only the newest ticket is current")
	}
	if err := s.Commit(t1, "old", models.NearbyResponse{}); !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale commit err = %v", err)
	}
	if err := s.Commit(t2, "new", models.NearbyResponse{}); err != nil {
		t.Errorf("current commit: %v", err)
	}
}

func TestSessionsSweep(t *testing.T) {
	r := NewSessions(time.Minute)
	a := r.Get("")
	if r.Get(a.ID) != a {
		t.Error("known id should return the same session")
	}
	r.Get("")
	if r.Len() != 2 {
		t.Fatalf("sessions = %d", r.Len())
	}
	if n := r.Sweep(time.Now().Add(2 * time.Minute)); n != 2 || r.Len() != 0 {
		t.Errorf("swept %d, left %d", n, r.Len())
	}
}

func TestCatalog(t *testing.T) {
	store := loadStore(t)
	cache := geocode.NewMemoryCache()
	_ = cache.Set(context.Background(), "1 w 46th st", geocode.Entry{Lat: 40.7575, Lon: -73.9810})
	c := NewCatalogService(store, repository.BytesSource{Label: "broken", Data: []byte(`{"nothing": true}`)}, NewSessions(0), cache, nil, nil)

	if got := len(c.Clinics()); got != 2 {
		t.Errorf("clinics = %d", got)
	}
	shops, err := c.Places(PlacesFilter{Category: category.Shopping})
	if err != nil || len(shops) != 1 || shops[0].ID != "moma-store" {
		t.Errorf("shopping = %v, %v", shops, err)
	}
	byClinic, err := c.Places(PlacesFilter{ClinicID: "midtown"})
	if err != nil || len(byClinic) != 2 {
		t.Errorf("midtown places = %d, %v", len(byClinic), err)
	}
	if _, err := c.Places(PlacesFilter{ClinicID: "nope"}); !errors.Is(err, ErrClinicNotFound) {
		t.Errorf("unknown clinic err = %v", err)
	}

	st := c.Status(context.Background())
	if st.MissingCoordinates != 1 || st.Categories[category.Cafe] != 2 {
		t.Errorf("status = %+v", st)
	}
	if st.GeocodeCache == nil || *st.GeocodeCache != 1 {
		t.Errorf("geocode cache entries = %v, want 1", st.GeocodeCache)
	}

	report, err := c.Reload(context.Background())
	if err == nil {
		t.Fatal("reload of a broken source should fail")
	}
	if report.Places != 6 || report.Banner == "" {
		t.Errorf("previous data should stay in service with a banner: %+v", report.Status)
	}
}

type fakeRouter struct {
	route routing.Route
	err   error
}

func (f fakeRouter) Route(context.Context, geo.Point, geo.Point, routing.Profile) (routing.Route, error) {
	return f.route, f.err
}

func TestRouteService(t *testing.T) {
	store := loadStore(t)
	ok := NewRouteService(store, fakeRouter{route: routing.Route{Profile: routing.Walking, DistanceMeters: 700, DurationSeconds: 540}}, nil, nil)

	res, err := ok.Route(context.Background(), "midtown", "joes", routing.Walking)
	if err != nil {
		t.Fatal(err)
	}
	if res.Estimated || res.Minutes != 9 || res.Route == nil {
		t.Errorf("route = %+v", res)
	}

	down := NewRouteService(store, fakeRouter{err: routing.ErrUnavailable}, nil, nil)
	res, err = down.Route(context.Background(), "midtown", "joes", routing.Walking)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Estimated || res.Route != nil || res.Minutes < 6 || res.Minutes > 8 {
		t.Errorf("straight-line estimate = %+v", res)
	}

	var disabled Router
	off := NewRouteService(store, disabled, nil, nil)
	res, err = off.Route(context.Background(), "midtown", "joes", routing.Walking)
	if err != nil || !res.Estimated || res.Route != nil {
		t.Errorf("routing off should estimate: %+v, %v", res, err)
	}

	if _, err := ok.Route(context.Background(), "midtown", "ghost", routing.Walking); !errors.Is(err, ErrNoCoordinates) {
		t.Errorf("err = %v, want no coordinates", err)
	}
	if _, err := ok.Route(context.Background(), "midtown", "nope", routing.Walking); !errors.Is(err, ErrPlaceNotFound) {
		t.Errorf("err = %v, want place not found", err)
	}
}

type fakeDiscoverer struct{ places []models.Place }

func (f fakeDiscoverer) Around(_ context.Context, _ geo.Point, _ float64, clinicID string) ([]models.Place, error) {
	out := make([]models.Place, 0, len(f.places))
	for _, p := range f.places {
		p.Clinics = []string{clinicID}
		out = append(out, p)
	}
	return out, nil
}

func TestEnrich(t *testing.T) {
	places := []models.Place{
		{ID: "midtown", Name: "Aster Midtown", Type: models.TypeClinic, Address: "1 W 46th St"},
		{ID: "a", Name: "A", Type: "cafe", Address: "10 Known St", Clinics: []string{"midtown"}},
		{ID: "b", Name: "B", Type: "cafe", Address: "Rue de Rivoli", Clinics: []string{"midtown"}},
		{ID: "c", Name: "C", Type: "cafe", Address: "Nowhere"},
		{ID: "d", Name: "D", Type: "cafe"},
	}
	g := &fakeGeocoder{points: map[string]geo.Point{
		"1 W 46th St":   {Lat: 40.7590, Lon: -73.9845},
		"10 Known St":   {Lat: 40.7600, Lon: -73.9850},
		"Rue de Rivoli": {Lat: 48.8606, Lon: 2.3376},
	}}
	discovered := fakeDiscoverer{places: []models.Place{{ID: "osm-node-1", Name: "Corner Deli", Type: "restaurant", Coordinates: &geo.Point{Lat: 40.7591, Lon: -73.9846}}}}
	svc := NewEnrichmentService(g, discovered, 300_000, nil, nil)

	out, report, err := svc.Enrich(context.Background(), places, EnrichOptions{Discover: true, DiscoverRadius: 800})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if g.calls[0] != "1 W 46th St" {
		t.Errorf("clinics should be resolved first, calls = %v", g.calls)
	}
	want := EnrichReport{Missing: 4, Resolved: 2, NotFound: 1, Implausible: 1, Discovered: 1}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
	if !out[1].HasCoordinates() || out[2].HasCoordinates() {
		t.Error("plausible match kept, implausible one dropped")
	}
	if places[1].HasCoordinates() {
		t.Error("input slice was modified")
	}
	if len(out) != 6 || out[5].Clinics[0] != "midtown" {
		t.Errorf("discovered place not appended: %d records", len(out))
	}
}

func TestEnrichStopsOnCancel(t *testing.T) {
	g := &fakeGeocoder{points: map[string]geo.Point{}}
	svc := NewEnrichmentService(g, nil, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := svc.Enrich(ctx, []models.Place{{ID: "a", Name: "A", Address: "x"}}, EnrichOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if len(g.calls) != 0 {
		t.Error("no lookups after cancellation")
	}
}
