package routes

import (
	"nearby-guide/internal/auth"
	"nearby-guide/internal/config"
	"nearby-guide/internal/handlers"
	"nearby-guide/internal/logger"
	mdlwr "nearby-guide/internal/middleware"
	"nearby-guide/internal/services"

	"github.com/go-chi/chi/v5/middleware"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-chi/cors"
)

// Services are the dependencies the HTTP layer exposes. JWT may be nil, which
// disables the admin endpoints.
type Services struct {
	Nearby  *services.NearbyService
	Catalog *services.CatalogService
	Route   *services.RouteService
	Reports *services.ReportService
	JWT     *auth.JWTManager
}

func NewRouter(cfg *config.Config, logr *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.SessionHeader},
		ExposedHeaders:   []string{handlers.SessionHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMW := mdlwr.NewAuthMiddleware(svc.JWT, logr.Named("auth"))

	nearbyHandler := handlers.NewNearbyHandler(svc.Nearby, logr.Named("nearby"))
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog, logr.Named("catalog"))
	routeHandler := handlers.NewRouteHandler(svc.Route, logr.Named("route"))
	reportHandler := handlers.NewReportHandler(svc.Reports, logr.Named("reports"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", catalogHandler.Status)

		r.Route("/clinics", func(r chi.Router) {
			r.Get("/", catalogHandler.ListClinics)
			r.Get("/{id}", catalogHandler.GetClinic)
			r.Get("/{id}/nearby", nearbyHandler.ClinicNearby)
			r.Get("/{id}/closest", nearbyHandler.ClinicClosest)
		})

		r.Route("/places", func(r chi.Router) {
			r.Get("/", catalogHandler.ListPlaces)
			r.Get("/{id}", catalogHandler.GetPlace)
			r.Post("/{id}/reports", reportHandler.CreateReport)
		})

		r.Get("/nearby", nearbyHandler.AddressNearby)
		r.Get("/nearby/last", nearbyHandler.LastSearch)
		r.Get("/geocode", nearbyHandler.Geocode)
		r.Get("/route", routeHandler.GetRoute)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMW.AdminAuth)
			r.Post("/reload", catalogHandler.Reload)
			r.Get("/diagnostics", catalogHandler.Diagnostics)
			r.Get("/reports", reportHandler.ListReports)
			r.Patch("/reports/{id}/status", reportHandler.UpdateReportStatus)
		})
	})

	return r
}
