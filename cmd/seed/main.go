package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pharmacyonduty/backend/internal/adapters/database"
	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/postgres"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	"github.com/pharmacyonduty/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("file", cfg.App.CitySeedPath, "city seed YAML")
	flag.Parse()

	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.App.Env, cfg.App.LogLevel)
	logger := log.Logger

	seed, err := config.LoadCitySeed(*path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *path).Msg("failed to load city seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	loc := cfg.Resolution.ScheduleLocation()
	cities := database.NewCityAdapter(pgClient, loc)
	for _, entry := range seed.Cities {
		city, err := cityFromSeed(entry, loc)
		if err != nil {
			logger.Fatal().Err(err).Str("city", entry.Name).Msg("invalid city seed")
		}
		if err := cities.Upsert(ctx, city); err != nil {
			logger.Fatal().Err(err).Str("city", entry.Name).Msg("failed to store city")
		}
		logger.Info().Str("city", city.Name).Str("id", city.ID).Msg("city seeded")
	}
}

func cityFromSeed(entry config.CitySeedEntry, loc *time.Location) (*entities.City, error) {
	var (
		schedule = entities.WorkingSchedule{Location: loc}
		fields   = []struct {
			raw string
			dst *entities.TimeOfDay
		}{
			{entry.Schedule.WeekdayOpen, &schedule.WeekdayOpen},
			{entry.Schedule.WeekdayClose, &schedule.WeekdayClose},
			{entry.Schedule.SaturdayOpen, &schedule.SaturdayOpen},
			{entry.Schedule.SaturdayClose, &schedule.SaturdayClose},
		}
	)
	for _, f := range fields {
		tod, err := entities.ParseTimeOfDay(f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = tod
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return &entities.City{Name: entry.Name, Schedule: schedule}, nil
}
