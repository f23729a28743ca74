package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	"github.com/pharmacyonduty/backend/internal/normalizer"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
	"github.com/pharmacyonduty/backend/pkg/utils"
)

// ScraperLookup finds the duty scraper serving a city.
type ScraperLookup interface {
	Lookup(city string) (providers.DutyScraper, bool)
}

// RosterNormalizer converts a scraped payload into canonical records.
type RosterNormalizer interface {
	Normalize(payload *providers.RawPayload) (normalizer.Result, error)
}

// RosterIngester stores canonical records for a city.
type RosterIngester interface {
	Ingest(ctx context.Context, cityName string, records []*entities.Pharmacy) (*IngestionSummary, error)
}

// RosterRefresher runs one scrape, normalize and ingest cycle for a city and
// records the refresh time once it succeeds.
type RosterRefresher struct {
	scrapers   ScraperLookup
	normalizer RosterNormalizer
	ingester   RosterIngester
	cities     repositories.CityRepository
	events     providers.EventBus
	metrics    *observability.Metrics
	now        func() time.Time

	group singleflight.Group
}

// NewRosterRefresher creates a new roster refresher; events may be nil.
func NewRosterRefresher(
	scrapers ScraperLookup,
	normalizer RosterNormalizer,
	ingester RosterIngester,
	cities repositories.CityRepository,
	events providers.EventBus,
	metrics *observability.Metrics,
) *RosterRefresher {
	return &RosterRefresher{
		scrapers:   scrapers,
		normalizer: normalizer,
		ingester:   ingester,
		cities:     cities,
		events:     events,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for refresh timestamps
func (r *RosterRefresher) WithClock(now func() time.Time) *RosterRefresher {
	r.now = now
	return r
}

// Refresh updates the stored roster of a city. Concurrent calls for the same
// city share one cycle.
func (r *RosterRefresher) Refresh(ctx context.Context, city *entities.City) (*IngestionSummary, error) {
	key := utils.FoldName(city.Name)
	// The shared cycle must outlive a caller that gives up early.
	shared := context.WithoutCancel(ctx)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		summary, err := r.refresh(shared, city)
		observability.RecordRefresh(shared, r.metrics, city.Name, err)
		return summary, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*IngestionSummary), nil
}

func (r *RosterRefresher) refresh(ctx context.Context, city *entities.City) (*IngestionSummary, error) {
	ctx, span := observability.StartSpan(ctx, "RosterRefresher.Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("city", city.Name))

	scraper, ok := r.scrapers.Lookup(city.Name)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no duty roster source for %s", city.Name))
	}

	payload, err := scraper.Fetch(ctx, city.Name)
	if err != nil {
		observability.RecordError(span, err)
		return nil, upstream(scraper.Source()+" roster source", err)
	}
	if payload.FetchedAt.IsZero() {
		payload.FetchedAt = r.now()
	}

	result, err := r.normalizer.Normalize(payload)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("normalize duty roster", err)
	}

	summary, err := r.ingester.Ingest(ctx, city.Name, result.Records)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	summary.Skipped += result.Skipped

	refreshedAt := r.now().UTC()
	if err := r.cities.MarkRefreshed(ctx, summary.CityID, refreshedAt); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	r.publish(ctx, entities.NewDutyRosterEvent(city.Name, summary.Inserted, summary.Updated, summary.Skipped, refreshedAt))
	return summary, nil
}

func (r *RosterRefresher) publish(ctx context.Context, event *entities.DutyRosterEvent) {
	if r.events == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)
	for _, channel := range []string{providers.EventChannelDutyRefreshed, providers.GetCityChannel(event.City)} {
		if err := r.events.Publish(ctx, channel, event); err != nil {
			logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish roster event")
		}
	}
}

// RefreshAll refreshes every configured city, continuing past failures.
func (r *RosterRefresher) RefreshAll(ctx context.Context, logger zerolog.Logger) error {
	cities, err := r.cities.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, city := range cities {
		summary, err := r.Refresh(ctx, city)
		if err != nil {
			logger.Error().Err(err).Str("city", city.Name).Msg("roster refresh failed")
			errs = append(errs, fmt.Errorf("%s: %w", city.Name, err))
			continue
		}
		logger.Info().
			Str("city", city.Name).
			Int("inserted", summary.Inserted).
			Int("updated", summary.Updated).
			Int("skipped", summary.Skipped).
			Msg("roster refreshed")
	}
	return errors.Join(errs...)
}
