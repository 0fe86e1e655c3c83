package routes

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nearby-guide/internal/auth"
	"nearby-guide/internal/category"
	"nearby-guide/internal/config"
	"nearby-guide/internal/geo"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/handlers"
	"nearby-guide/internal/logger"
	"nearby-guide/internal/matcher"
	"nearby-guide/internal/repository"
	"nearby-guide/internal/services"
)

const dataset = `{
  "clinics": [
    {"id": "midtown", "name": "Aster Midtown", "lat": 40.7590, "lon": -73.9845}
  ],
  "places": [
    {"id": "blue-bottle", "name": "Blue Bottle", "type": "cafe", "lat": 40.7595, "lon": -73.9850, "tags": ["coffee"]},
    {"id": "joes", "name": "Joe's Pizza", "type": "pizza", "lat": 40.7546, "lon": -73.9870},
    {"id": "ghost", "name": "Ghost Cafe", "type": "cafe", "address": "10 Unknown St"}
  ]
}`

type stubGeocoder struct {
	points  map[string]geo.Point
	errs    map[string]error
	started chan struct{}
	release chan struct{}
}

func (s *stubGeocoder) Geocode(ctx context.Context, q string) (geocode.Result, error) {
	if q == "slow" {
		s.started <- struct{}{}
		<-s.release
	}
	if err, ok := s.errs[q]; ok {
		return geocode.Result{Query: q, Requests: 1}, err
	}
	p, ok := s.points[q]
	if !ok {
		return geocode.Result{Query: q, Requests: 1}, geocode.ErrNotFound
	}
	return geocode.Result{Query: q, Point: p, Variant: q, Requests: 1}, nil
}

type fixture struct {
	srv *httptest.Server
	key *rsa.PrivateKey
	geo *stubGeocoder
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()

	store := repository.NewStore(category.Normalizer{}, zap.NewNop())
	source := repository.BytesSource{Label: "test", Data: []byte(dataset)}
	if _, err := store.Load(context.Background(), source); err != nil {
		t.Fatalf("load: %v", err)
	}

	g := &stubGeocoder{
		points: map[string]geo.Point{
			"times square": {Lat: 40.7580, Lon: -73.9855},
			"slow":         {Lat: 40.7000, Lon: -74.0000},
		},
		errs: map[string]error{
			"busy": geocode.ErrRateLimited,
		},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}

	sessions := services.NewSessions(time.Hour)
	diag := &services.Diagnostics{}
	f := &fixture{geo: g}

	svc := Services{
		Nearby: services.NewNearbyService(store, matcher.New(category.Normalizer{}), g, sessions, diag,
			services.NearbyConfig{LimitPerGroup: 8, ImplausibleMeters: 300_000}, zap.NewNop()),
		Catalog: services.NewCatalogService(store, source, sessions, nil, diag, zap.NewNop()),
		Route:   services.NewRouteService(store, nil, diag, zap.NewNop()),
		Reports: services.NewReportService(store, nil, zap.NewNop()),
	}
	if withAuth {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatal(err)
		}
		f.key = key
		svc.JWT = auth.NewJWTManagerFromKeys(key, nil, auth.Issuer)
	}

	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}
	f.srv = httptest.NewServer(NewRouter(cfg, &logger.Logger{Logger: zap.NewNop()}, svc))
	t.Cleanup(f.srv.Close)
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Count   int             `json:"count"`
	Query   string          `json:"query"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path string, header http.Header) (*http.Response, envelope) {
	t.Helper()
	return f.send(t, method, path, header, "")
}

func (f *fixture) send(t *testing.T, method, path string, header http.Header, body string) (*http.Response, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp, env
}

func TestStatusCodes(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/api/v1/status", http.StatusOK},
		{"/api/v1/clinics", http.StatusOK},
		{"/api/v1/clinics/midtown/nearby", http.StatusOK},
		{"/api/v1/clinics/nope/nearby", http.StatusNotFound},
		{"/api/v1/clinics/midtown/nearby?category=spa", http.StatusBadRequest},
		{"/api/v1/places/ghost", http.StatusOK},
		{"/api/v1/places/nope", http.StatusNotFound},
		{"/api/v1/nearby", http.StatusBadRequest},
		{"/api/v1/nearby?address=nowhere", http.StatusNotFound},
		{"/api/v1/nearby/last", http.StatusBadRequest},
		{"/api/v1/geocode", http.StatusBadRequest},
		{"/api/v1/route?clinic=midtown", http.StatusBadRequest},
		{"/api/v1/route?clinic=midtown&place=ghost", http.StatusUnprocessableEntity},
		{"/api/v1/route?clinic=midtown&place=joes&profile=cycling", http.StatusBadRequest},
		{"/api/v1/admin/diagnostics", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		resp, env := f.do(t, http.MethodGet, tt.path, nil)
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
		if resp.StatusCode >= 400 && resp.Header.Get("Content-Type") == "application/json" && env.Message == "" {
			t.Errorf("GET %s: error without a message", tt.path)
		}
	}
}

func TestClinicNearbyResponse(t *testing.T) {
	f := newFixture(t, false)

	resp, env := f.do(t, http.MethodGet, "/api/v1/clinics/midtown/nearby?category=cafe", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		RadiusMeters float64 `json:"radius_meters"`
		Groups       []struct {
			Category string `json:"category"`
			Places   []struct {
				ID          string `json:"id"`
				WalkMinutes *int   `json:"walk_minutes"`
			} `json:"places"`
		} `json:"groups"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.RadiusMeters != matcher.DefaultRadiusMeters {
		t.Errorf("radius = %v", body.RadiusMeters)
	}
	if len(body.Groups) != 1 || body.Groups[0].Category != "cafe" {
		t.Fatalf("groups = %+v", body.Groups)
	}
	first := body.Groups[0].Places[0]
	if first.ID != "blue-bottle" || first.WalkMinutes == nil || *first.WalkMinutes != 1 {
		t.Errorf("first place = %+v", first)
	}
}

func TestAddressSearchSession(t *testing.T) {
	f := newFixture(t, false)

	resp, env := f.do(t, http.MethodGet, "/api/v1/nearby?address="+url.QueryEscape("times square"), nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("status = %d: %s", resp.StatusCode, env.Message)
	}
	sid := resp.Header.Get(handlers.SessionHeader)
	if _, err := uuid.Parse(sid); err != nil {
		t.Fatalf("session header = %q", sid)
	}

	h := http.Header{handlers.SessionHeader: {sid}}
	resp, env = f.do(t, http.MethodGet, "/api/v1/nearby/last", h)
	if resp.StatusCode != http.StatusOK || env.Query != "times square" {
		t.Errorf("last = %d %q", resp.StatusCode, env.Query)
	}

	resp, _ = f.do(t, http.MethodGet, "/api/v1/nearby/last", http.Header{handlers.SessionHeader: {uuid.NewString()}})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("fresh session last = %d, want 404", resp.StatusCode)
	}
}

func TestSupersededSearchConflict(t *testing.T) {
	f := newFixture(t, false)
	sid := uuid.NewString()
	h := http.Header{handlers.SessionHeader: {sid}}

	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/v1/nearby?address=slow", nil)
		req.Header = h.Clone()
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-f.geo.started

	resp, _ := f.do(t, http.MethodGet, "/api/v1/nearby?address="+url.QueryEscape("times square"), h)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("newer search = %d", resp.StatusCode)
	}
	close(f.geo.release)

	if code := <-done; code != http.StatusConflict {
		t.Errorf("older search = %d, want 409", code)
	}

	_, env := f.do(t, http.MethodGet, "/api/v1/nearby/last", h)
	if env.Query != "times square" {
		t.Errorf("last search = %q, want the newer one", env.Query)
	}
}

func TestRateLimitedGeocode(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/api/v1/geocode?q=busy", "/api/v1/nearby?address=busy"} {
		resp, env := f.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, resp.StatusCode)
		}
		if resp.Header.Get("Retry-After") != "60" {
			t.Errorf("GET %s Retry-After = %q", path, resp.Header.Get("Retry-After"))
		}
		if env.Success || env.Message == "" {
			t.Errorf("GET %s body = %+v", path, env)
		}
	}
}

func TestRouteEstimateWithoutRouter(t *testing.T) {
	f := newFixture(t, false)

	resp, env := f.do(t, http.MethodGet, "/api/v1/route?clinic=midtown&place=joes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res services.RouteResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Estimated || res.Minutes <= 0 || res.Route != nil {
		t.Errorf("route = %+v", res)
	}
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, true)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/admin/reload", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/reload", http.Header{"Authorization": {"Token abc"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad scheme = %d, want 401", resp.StatusCode)
	}

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	forged, _, _ := auth.NewJWTManagerFromKeys(other, nil, auth.Issuer).IssueAdminToken("mallory", time.Hour)
	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/reload", http.Header{"Authorization": {"Bearer " + forged}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged token = %d, want 401", resp.StatusCode)
	}

	token, _, err := auth.NewJWTManagerFromKeys(f.key, nil, auth.Issuer).IssueAdminToken("ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	bearer := http.Header{"Authorization": {"Bearer " + token}}

	resp, env := f.do(t, http.MethodPost, "/api/v1/admin/reload", bearer)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Errorf("reload = %d", resp.StatusCode)
	}
	resp, env = f.do(t, http.MethodGet, "/api/v1/admin/diagnostics", bearer)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Errorf("diagnostics = %d", resp.StatusCode)
	}
}

func TestPlaceReports(t *testing.T) {
	f := newFixture(t, true)

	resp, env := f.send(t, http.MethodPost, "/api/v1/places/joes/reports", nil, `{"kind":"closed"}`)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("create = %d: %s", resp.StatusCode, env.Message)
	}
	var created services.PlaceReport
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.Kind != services.ReportClosed || created.PlaceName != "Joe's Pizza" {
		t.Errorf("report = %+v", created)
	}

	bad := []struct {
		path, body string
		want       int
	}{
		{"/api/v1/places/nope/reports", `{"kind":"closed"}`, http.StatusNotFound},
		{"/api/v1/places/joes/reports", `{"kind":"haunted"}`, http.StatusBadRequest},
		{"/api/v1/places/joes/reports", `{"kind":"other"}`, http.StatusBadRequest},
		{"/api/v1/places/joes/reports", `not json`, http.StatusBadRequest},
	}
	for _, tt := range bad {
		if resp, _ := f.send(t, http.MethodPost, tt.path, nil, tt.body); resp.StatusCode != tt.want {
			t.Errorf("POST %s %s = %d, want %d", tt.path, tt.body, resp.StatusCode, tt.want)
		}
	}

	if resp, _ := f.do(t, http.MethodGet, "/api/v1/admin/reports", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("list without token = %d", resp.StatusCode)
	}

	token, _, err := auth.NewJWTManagerFromKeys(f.key, nil, auth.Issuer).IssueAdminToken("ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	bearer := http.Header{"Authorization": {"Bearer " + token}}

	resp, _ = f.send(t, http.MethodPatch, "/api/v1/admin/reports/1/status", bearer, `{"status":"resolved"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update = %d", resp.StatusCode)
	}
	resp, _ = f.send(t, http.MethodPatch, "/api/v1/admin/reports/99/status", bearer, `{"status":"resolved"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("update unknown = %d, want 404", resp.StatusCode)
	}

	resp, env = f.do(t, http.MethodGet, "/api/v1/admin/reports?status=resolved", bearer)
	if resp.StatusCode != http.StatusOK || env.Count != 1 {
		t.Errorf("resolved reports = %d count %d", resp.StatusCode, env.Count)
	}
	resp, env = f.do(t, http.MethodGet, "/api/v1/admin/reports?status=open", bearer)
	if resp.StatusCode != http.StatusOK || env.Count != 0 {
		t.Errorf("open reports = %d count %d", resp.StatusCode, env.Count)
	}
}
