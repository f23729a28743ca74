package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pharmacyonduty/backend/internal/adapters/database"
	"github.com/pharmacyonduty/backend/internal/adapters/events"
	"github.com/pharmacyonduty/backend/internal/adapters/scrapers"
	"github.com/pharmacyonduty/backend/internal/application/services"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/postgres"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/redis"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	"github.com/pharmacyonduty/backend/internal/normalizer"
	"github.com/pharmacyonduty/backend/pkg/config"
)

func main() {
	city := flag.String("city", "", "refresh a single city (default: every configured city)")
	interval := flag.Duration("interval", 0, "repeat the refresh on this interval; 0 runs once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-scraper", cfg.App.Env, cfg.App.LogLevel)
	logger := log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName+"-scraper", cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
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
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	now := time.Now
	if offset := cfg.App.DebugTimeOffset; offset != 0 {
		now = func() time.Time { return time.Now().Add(offset) }
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	pgClient.WithMetrics(metrics)

	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable; roster events will not be published")
		} else {
			defer redisClient.Close()
			bus := events.NewRedisEventBus(redisClient, observability.Component("events"))
			defer bus.Close()
			eventBus = bus
		}
	}

	registry, err := scrapers.NewDefaultRegistry(cfg.Scraper, now, observability.Component("scraper"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build scraper registry")
	}

	cityAdapter := database.NewCityAdapter(pgClient, cfg.Resolution.ScheduleLocation())
	ingestion := services.NewIngestionService(cityAdapter, database.NewPharmacyAdapter(pgClient), metrics).WithClock(now)
	refresher := services.NewRosterRefresher(
		registry,
		normalizer.NewDefault(observability.Component("normalizer"), cfg.Scraper.SourceLocation()),
		ingestion,
		cityAdapter,
		eventBus,
		metrics,
	).WithClock(now)

	run := func() error {
		if *city == "" {
			return refresher.RefreshAll(ctx, logger)
		}
		return refreshOne(ctx, refresher, cityAdapter, *city, logger)
	}

	if err := run(); err != nil {
		logger.Error().Err(err).Msg("refresh finished with errors")
		if *interval <= 0 {
			os.Exit(1)
		}
	}
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	logger.Info().Dur("interval", *interval).Msg("refreshing periodically")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scraper stopped")
			return
		case <-ticker.C:
			if err := run(); err != nil {
				logger.Error().Err(err).Msg("refresh finished with errors")
			}
		}
	}
}

func refreshOne(ctx context.Context, refresher *services.RosterRefresher, cities repositories.CityRepository, name string, logger zerolog.Logger) error {
	city, err := cities.GetByName(ctx, name)
	if err != nil {
		return err
	}
	summary, err := refresher.Refresh(ctx, city)
	if err != nil {
		return err
	}
	logger.Info().
		Str("city", city.Name).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Msg("roster refreshed")
	return nil
}
