package main

import (
	"context"
	"nearby-guide/internal/auth"
	"nearby-guide/internal/category"
	"nearby-guide/internal/config"
	"nearby-guide/internal/database"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/logger"
	"nearby-guide/internal/matcher"
	"nearby-guide/internal/repository"
	"nearby-guide/internal/retry"
	"nearby-guide/internal/routes"
	"nearby-guide/internal/routing"
	"nearby-guide/internal/services"
	"nearby-guide/internal/utils"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Persistent geocode cache is optional; without a database lookups are cached in memory.
	// Place reports follow the same rule.
	var (
		cache   geocode.Cache        = geocode.NewMemoryCache()
		reports services.ReportStore = services.NewMemoryReportStore()
	)
	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL, cfg)
		if err != nil {
			logr.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		bc := geocode.NewBunCache(db)
		if err := bc.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare geocode cache", zap.Error(err))
		}
		cache = &geocode.TieredCache{Fast: geocode.NewMemoryCache(), Slow: bc}

		rs := services.NewBunReportStore(db)
		if err := rs.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare place reports", zap.Error(err))
		}
		reports = rs
	}

	normalizer := category.Normalizer{
		FoldPizzaBagels:  cfg.FoldPizzaBagels,
		IconicAsActivity: cfg.IconicAsActivity,
	}

	store := repository.NewStore(normalizer, logr.Named("repository"))
	source := repository.NewSource(cfg.PlacesSource)
	if _, err := store.Load(ctx, source); err != nil {
		// Serve anyway; the status endpoint carries the banner until a reload succeeds.
		logr.Error("initial places load failed", zap.Error(err))
	}

	geocoder, err := geocode.NewFromConfig(cfg, cache, logr.Named("geocoder"))
	if err != nil {
		logr.Fatal("invalid geocoder configuration", zap.Error(err))
	}

	// An empty ROUTER_URL turns routing off; /route then answers with straight-line estimates.
	var router services.Router
	if cfg.RouterURL != "" {
		router = routing.NewClient(cfg.RouterURL, 10*time.Second, utils.NewRateLimiter(250*time.Millisecond), retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   500 * time.Millisecond,
		}, logr.Named("routing"))
	} else {
		logr.Warn("routing disabled, ROUTER_URL is empty")
	}

	sessions := services.NewSessions(cfg.SessionTTL)
	go sessions.Run(ctx, time.Minute)

	diag := &services.Diagnostics{}
	nearby := services.NewNearbyService(store, matcher.New(normalizer), geocoder, sessions, diag, services.NearbyConfig{
		DefaultRadiusMeters: cfg.DefaultRadiusMeters,
		LimitPerGroup:       cfg.LimitPerGroup,
		FallbackClosestN:    cfg.FallbackClosestN,
		ImplausibleMeters:   cfg.ImplausibleDistanceKm * 1000,
		ResolveMissing:      cfg.ResolveMissingCoords,
	}, logr.Named("nearby"))

	jwtMgr, err := auth.NewJWTManager("", cfg.JWTPublicKeyPath, auth.Issuer)
	if err != nil {
		logr.Warn("admin endpoints disabled", zap.Error(err))
		jwtMgr = nil
	}

	r := routes.NewRouter(cfg, logr, routes.Services{
		Nearby:  nearby,
		Catalog: services.NewCatalogService(store, source, sessions, geocoder.Cache(), diag, logr.Named("catalog")),
		Route:   services.NewRouteService(store, router, diag, logr.Named("route")),
		Reports: services.NewReportService(store, reports, logr.Named("reports")),
		JWT:     jwtMgr,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.String("places", source.Name()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	logr.Info("server exited gracefully")
}
