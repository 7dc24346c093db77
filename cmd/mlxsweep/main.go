package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/config"
	dbValkey "github.com/yycdata/mlxsweep/internal/db/valkey"
	"github.com/yycdata/mlxsweep/internal/domain"
	logpkg "github.com/yycdata/mlxsweep/internal/logger"
	"github.com/yycdata/mlxsweep/internal/metrics"
	"github.com/yycdata/mlxsweep/internal/repository/geocache"
	"github.com/yycdata/mlxsweep/internal/repository/listing"
	"github.com/yycdata/mlxsweep/internal/status"
	"github.com/yycdata/mlxsweep/internal/throttle"
	"github.com/yycdata/mlxsweep/internal/transport/geocode"
	"github.com/yycdata/mlxsweep/internal/transport/mlx"
	"github.com/yycdata/mlxsweep/internal/usecase/enumerate"
	"github.com/yycdata/mlxsweep/internal/usecase/partition"
	"github.com/yycdata/mlxsweep/internal/version"
)

func main() {
	reset := flag.Bool("reset", false, "discard the checkpoint and sweep every slice again")
	stateDir := flag.String("state-dir", "", "override crawl.state_dir from the config file")
	flag.Parse()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if *stateDir != "" {
		cfg.Crawl.StateDir = *stateDir
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mlxsweep",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("areas", len(cfg.Crawl.Areas)),
		zap.Int("year_from", cfg.Crawl.YearFrom),
		zap.Int("year_to", cfg.Crawl.YearTo),
		zap.Int("status_port", cfg.Status.Port),
	)

	registry := prometheus.NewRegistry()
	m := metrics.NewCrawl(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Remote endpoint client behind the shared rate limiter.
	limiter := throttle.New(
		time.Duration(cfg.Throttle.BaseMs)*time.Millisecond,
		time.Duration(cfg.Throttle.JitterMs)*time.Millisecond,
		cfg.Throttle.MaxInflight,
	)

	client, err := mlx.NewClient(mlx.Config{
		HomeURL:      cfg.MLX.HomeURL,
		SearchURL:    cfg.MLX.SearchURL,
		TypeaheadURL: cfg.MLX.TypeaheadURL,
		Referer:      cfg.MLX.Referer,
		UserAgent:    cfg.MLX.UserAgent,
		CookieFile:   cfg.MLX.CookieFile,
		Timeout:      time.Duration(cfg.MLX.TimeoutSec) * time.Second,
		MaxRetries:   cfg.MLX.MaxRetries,
		PxWidth:      cfg.MLX.PxWidth,
		PxHeight:     cfg.MLX.PxHeight,
		MinTileSize:  cfg.MLX.MinTileSize,
		MaxTileSize:  cfg.MLX.MaxTileSize,
		Bounds: mlx.CityBounds{
			SWLat: cfg.MLX.Bounds.SWLat,
			SWLng: cfg.MLX.Bounds.SWLng,
			NELat: cfg.MLX.Bounds.NELat,
			NELng: cfg.MLX.Bounds.NELng,
		},
	}, limiter, logger)
	if err != nil {
		logger.Fatal("Failed to create MLX client", zap.Error(err))
	}

	if err := client.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap MLX session", zap.Error(err))
	}

	// Centroid lookups, optionally cached in Valkey.
	geocoder := geocode.New(geocode.Config{
		URL:        cfg.Geocoder.URL,
		UserAgent:  cfg.Geocoder.UserAgent,
		City:       cfg.Geocoder.City,
		Province:   cfg.Geocoder.Province,
		Country:    cfg.Geocoder.Country,
		MaxRetries: cfg.Geocoder.MaxRetries,
		RetryDelay: time.Duration(cfg.Geocoder.RetryDelay) * time.Second,
		Default:    domain.Point{Lat: cfg.Geocoder.DefaultLat, Lon: cfg.Geocoder.DefaultLon},
	}, logger)

	var centroids partition.Geocoder = geocoder
	var cache *dbValkey.Store
	if len(cfg.Cache.Addrs) > 0 {
		cache, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to connect geocode cache", zap.Error(err))
		}
		defer cache.Close()

		centroids = geocache.New(geocoder, cache,
			time.Duration(cfg.Cache.TTLHours)*time.Hour, m.GeocodeCache, logger)
		logger.Info("Geocode cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	planner := partition.New(client, centroids, partition.Config{
		PriceStep:    cfg.Crawl.PriceStep,
		MinPriceStep: cfg.Crawl.MinPriceStep,
		TileRadius:   cfg.Crawl.TileRadius,
		RetryRadius:  cfg.Crawl.RetryRadius,
	}, logger).WithMetrics(m)

	// Persistence: Postgres, CSV, or both, behind the built-year enricher.
	sink, pg, closeSinks := buildSinks(ctx, cfg.Storage, logger)
	defer closeSinks()
	enriched := listing.NewEnrichedSink(sink, client, logger)

	cp, err := enumerate.LoadCheckpoint(cfg.Crawl.StateDir)
	if err != nil {
		logger.Fatal("Failed to load checkpoint", zap.Error(err))
	}
	if *reset {
		if err := cp.Reset(); err != nil {
			logger.Fatal("Failed to reset checkpoint", zap.Error(err))
		}
		logger.Info("Checkpoint reset")
	}

	engine := enumerate.New(planner, enriched, cp, enumerate.Config{
		Areas:     engineAreas(cfg.Crawl.Areas),
		YearFrom:  cfg.Crawl.YearFrom,
		YearTo:    cfg.Crawl.YearTo,
		PriceFrom: cfg.Crawl.PriceFrom,
		PriceTo:   cfg.Crawl.PriceTo,
		Dwelling:  cfg.Crawl.Dwelling,
		Workers:   cfg.Crawl.AreaWorkers,
	}, logger).WithMetrics(m)

	srv := status.New(cfg.Status.Port, registry, logger).WithProgress(engine, cp)
	if pg != nil {
		srv = srv.WithPinger(pg)
	}
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Status server error", zap.Error(err))
		}
	}()

	runErr := engine.Run(ctx)
	switch {
	case runErr == nil:
		logger.Info("Sweep complete")
	case errors.Is(runErr, context.Canceled):
		logger.Info("Sweep interrupted")
	default:
		logger.Error("Sweep failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		_ = logger.Sync()
		os.Exit(1)
	}
}

// buildSinks assembles the persistence chain from config. At least one of
// Postgres and CSV must be configured.
func buildSinks(
	ctx context.Context, cfg config.StorageConfig, logger *zap.Logger,
) (enumerate.Sink, *listing.PostgresStore, func()) {
	var (
		sinks   []listing.Sink
		pg      *listing.PostgresStore
		closers []func()
	)

	if cfg.PostgresDSN != "" {
		store, err := listing.NewPostgresStore(cfg.PostgresDSN, logger)
		if err != nil {
			logger.Fatal("Failed to connect postgres", zap.Error(err))
		}
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to ensure schema", zap.Error(err))
		}
		pg = store
		sinks = append(sinks, store)
		closers = append(closers, func() { _ = store.Close() })
	}

	if cfg.CSVPath != "" {
		csv, err := listing.NewCSVSink(cfg.CSVPath)
		if err != nil {
			logger.Fatal("Failed to open csv sink", zap.Error(err))
		}
		sinks = append(sinks, csv)
		closers = append(closers, func() { _ = csv.Close() })
	}

	if len(sinks) == 0 {
		logger.Fatal("No storage configured: set storage.postgres_dsn or storage.csv_path")
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(sinks) == 1 {
		return sinks[0], pg, closeAll
	}
	return listing.NewFanOut(sinks...), pg, closeAll
}

func engineAreas(areas []config.Area) []enumerate.Area {
	out := make([]enumerate.Area, 0, len(areas))
	for _, a := range areas {
		out = append(out, enumerate.Area{
			Code: a.Code,
			Name: a.Name,
			Kind: domain.AreaKind(a.Kind),
		})
	}
	return out
}
