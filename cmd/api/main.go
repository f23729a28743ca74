package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pharmacyonduty/backend/internal/adapters/cache"
	"github.com/pharmacyonduty/backend/internal/adapters/database"
	"github.com/pharmacyonduty/backend/internal/adapters/events"
	"github.com/pharmacyonduty/backend/internal/adapters/providers/geolocation"
	"github.com/pharmacyonduty/backend/internal/adapters/scrapers"
	"github.com/pharmacyonduty/backend/internal/api/handlers"
	"github.com/pharmacyonduty/backend/internal/api/middleware"
	"github.com/pharmacyonduty/backend/internal/api/routes"
	"github.com/pharmacyonduty/backend/internal/application/services"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/postgres"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/redis"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	"github.com/pharmacyonduty/backend/internal/normalizer"
	"github.com/pharmacyonduty/backend/pkg/config"
)

// offlineLabel is what the offline geocoder answers when no Google key is set.
const offlineLabel = "Eskişehir"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)
	logger := log.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// DEBUG_TIME_OFFSET shifts every clock the resolution path reads
	now := time.Now
	if offset := cfg.App.DebugTimeOffset; offset != 0 {
		now = func() time.Time { return time.Now().Add(offset) }
		logger.Warn().Dur("offset", offset).Msg("clock shifted for debugging")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	pgClient.WithMetrics(metrics)
	logger.Info().Msg("PostgreSQL client initialized")

	var (
		redisClient   *redis.Client
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// the memos keep working on their in-process tier
			logger.Warn().Err(err).Msg("Redis unavailable; shared cache and roster events disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient, observability.Component("events"))
			logger.Info().Msg("Redis client initialized")
		}
	}

	var (
		geocoder providers.ReverseGeocoder
		travel   providers.TravelDistanceProvider
		places   providers.PlacesDirectory
	)
	if cfg.Google.APIKey == "" {
		logger.Warn().Msg("GOOGLE_MAPS_API_KEY is not set; using offline geolocation")
		offline := geolocation.NewOfflineProvider(offlineLabel)
		geocoder, travel, places = offline, offline, offline
	} else {
		google := geolocation.NewGoogleMapsProvider(cfg.Google, observability.Component("google"))
		geocoder, travel, places = google, google, google
	}

	memoOpts := []cache.MemoOption{
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithMetrics(metrics),
		cache.WithLogger(observability.Component("memo")),
	}
	if cacheProvider != nil {
		memoOpts = append(memoOpts, cache.WithRemote(cacheProvider))
	}
	travelMemo, err := cache.NewMemo[providers.TravelRow]("travel", cfg.Cache.Size, memoOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create travel memo")
	}
	cityMemo, err := cache.NewMemo[string]("city", cfg.Cache.Size, memoOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create city memo")
	}
	placesMemo, err := cache.NewMemo[[]providers.Place]("places", cfg.Cache.Size, memoOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create places memo")
	}

	cityAdapter := database.NewCityAdapter(pgClient, cfg.Resolution.ScheduleLocation())
	pharmacyAdapter := database.NewPharmacyAdapter(pgClient)

	registry, err := scrapers.NewDefaultRegistry(cfg.Scraper, now, observability.Component("scraper"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build scraper registry")
	}
	rosterNormalizer := normalizer.NewDefault(observability.Component("normalizer"), cfg.Scraper.SourceLocation())

	ingestion := services.NewIngestionService(cityAdapter, pharmacyAdapter, metrics).WithClock(now)
	refresher := services.NewRosterRefresher(registry, rosterNormalizer, ingestion, cityAdapter, eventBus, metrics).WithClock(now)
	resolver := services.NewProximityResolver(
		cache.NewCachedPlaces(places, placesMemo),
		cache.NewCachedTravelDistances(travel, travelMemo),
		pharmacyAdapter,
		cfg.Resolution.RadiusMeters,
		metrics,
	)
	dutyService := services.NewDutyResolutionService(
		services.NewCityLocator(geocoder, cityAdapter, cityMemo),
		services.NewFreshnessPolicy(cfg.Resolution.StaleAfter),
		refresher,
		resolver,
		services.ResolutionOptions{
			Limit:               cfg.Resolution.Limit,
			CoordinatePrecision: cfg.Resolution.CoordinatePrecision,
		},
	)

	checks := map[string]handlers.HealthCheck{"postgres": pgClient.Ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	var streamHandler *handlers.DutyStreamHandler
	if eventBus != nil {
		streamHandler = handlers.NewDutyStreamHandler(eventBus, 0)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, "http", observability.Component("http-cache"))
	}

	router := routes.NewRouter(
		handlers.NewPharmacyHandler(dutyService, now),
		handlers.NewMapsHandler(cfg.Google.APIKey, cfg.Google.MapsScriptURL, cfg.Maps.AllowedReferers, cfg.Google.Timeout),
		handlers.NewHealthHandler(checks),
		streamHandler,
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	if eventBus != nil {
		// closing the bus ends open event streams so Shutdown does not wait on them
		server.RegisterOnShutdown(func() {
			if err := eventBus.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing event bus")
			}
		})
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Strs("cities", registry.Cities()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	logger.Info().Msg("server stopped")
}
