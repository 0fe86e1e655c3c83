// Command enrich geocodes places that have no coordinates and writes the
// enriched dataset back out. Lookups are sequential and rate limited.
package main

import (
	"context"
	"flag"
	"nearby-guide/internal/category"
	"nearby-guide/internal/config"
	"nearby-guide/internal/database"
	"nearby-guide/internal/discovery"
	"nearby-guide/internal/geocode"
	"nearby-guide/internal/logger"
	"nearby-guide/internal/repository"
	"nearby-guide/internal/services"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	in := flag.String("in", cfg.PlacesSource, "places dataset, file path or URL")
	out := flag.String("out", "places.enriched.json", "where to write the enriched dataset")
	discover := flag.Bool("discover", false, "also add OpenStreetMap places found around each clinic")
	radius := flag.Float64("radius", cfg.DefaultRadiusMeters, "discovery radius in meters")
	flag.Parse()

	logr := logger.New(cfg)
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache geocode.Cache = geocode.NewMemoryCache()
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
	}

	normalizer := category.Normalizer{
		FoldPizzaBagels:  cfg.FoldPizzaBagels,
		IconicAsActivity: cfg.IconicAsActivity,
	}
	store := repository.NewStore(normalizer, logr.Named("repository"))
	if _, err := store.Load(ctx, repository.NewSource(*in)); err != nil {
		logr.Fatal("failed to load places", zap.Error(err))
	}

	geocoder, err := geocode.NewFromConfig(cfg, cache, logr.Named("geocoder"))
	if err != nil {
		logr.Fatal("invalid geocoder configuration", zap.Error(err))
	}

	var disc services.Discoverer
	if *discover {
		disc = discovery.New(cfg.OverpassURL, 60*time.Second, logr.Named("discovery"))
	}

	svc := services.NewEnrichmentService(geocoder, disc, cfg.ImplausibleDistanceKm*1000, nil, logr.Named("enrich"))
	places, report, err := svc.Enrich(ctx, store.Snapshot().All(), services.EnrichOptions{
		Discover:       *discover,
		DiscoverRadius: *radius,
	})
	if err != nil {
		// Keep what was resolved before the interruption.
		logr.Warn("enrichment interrupted, writing partial result", zap.Error(err))
	}

	data, err := repository.Export(places)
	if err != nil {
		logr.Fatal("failed to encode places", zap.Error(err))
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logr.Fatal("failed to write places", zap.String("path", *out), zap.Error(err))
	}

	logr.Info("enrichment finished",
		zap.String("out", *out),
		zap.Int("missing", report.Missing),
		zap.Int("resolved", report.Resolved),
		zap.Int("not_found", report.NotFound),
		zap.Int("failed", report.Failed),
		zap.Int("implausible", report.Implausible),
		zap.Int("discovered", report.Discovered))
}
