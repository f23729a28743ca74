package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

// DefaultCoordinatePrecision is the number of decimals queries are rounded to.
const DefaultCoordinatePrecision = 4

// CityResolver maps a coordinate to a configured city.
type CityResolver interface {
	Locate(ctx context.Context, location entities.Location) (*entities.City, error)
}

// Refresher brings a city's stored duty roster up to date.
type Refresher interface {
	Refresh(ctx context.Context, city *entities.City) (*IngestionSummary, error)
}

// PointResolver produces ranked candidates for both modes.
type PointResolver interface {
	ResolveOpen(ctx context.Context, origin entities.Location, limit int) ([]entities.CandidatePoint, error)
	ResolveOnDuty(ctx context.Context, city *entities.City, origin entities.Location, at time.Time, limit int) ([]entities.CandidatePoint, error)
}

// ResolutionOptions tunes the orchestrator
type ResolutionOptions struct {
	Limit               int
	CoordinatePrecision int
}

// DutyResolutionService answers "which pharmacies serve me right now"
type DutyResolutionService struct {
	locator   CityResolver
	freshness FreshnessPolicy
	refresher Refresher
	resolver  PointResolver
	opts      ResolutionOptions
}

// NewDutyResolutionService creates the orchestrator
func NewDutyResolutionService(
	locator CityResolver,
	freshness FreshnessPolicy,
	refresher Refresher,
	resolver PointResolver,
	opts ResolutionOptions,
) *DutyResolutionService {
	if opts.Limit <= 0 {
		opts.Limit = DefaultResultLimit
	}
	if opts.CoordinatePrecision <= 0 {
		opts.CoordinatePrecision = DefaultCoordinatePrecision
	}
	return &DutyResolutionService{
		locator:   locator,
		freshness: freshness,
		refresher: refresher,
		resolver:  resolver,
		opts:      opts,
	}
}

// ResolvePharmacyPoints returns the nearest open pharmacies during business
// hours and the nearest on-duty pharmacies otherwise. A stale roster is
// refreshed first; when that fails the stored roster is used.
func (s *DutyResolutionService) ResolvePharmacyPoints(ctx context.Context, lat, lng float64, at time.Time) ([]entities.CandidatePoint, error) {
	ctx, span := observability.StartSpan(ctx, "DutyResolutionService.ResolvePharmacyPoints")
	defer span.End()

	location := entities.Location{Latitude: lat, Longitude: lng}
	if !location.Valid() {
		return nil, apperrors.NewInvalidCoordinatesError(fmt.Sprintf("coordinates out of range: %v,%v", lat, lng))
	}
	origin := location.Rounded(s.opts.CoordinatePrecision)

	city, err := s.locator.Locate(ctx, origin)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	status := city.Status(at)
	span.SetAttributes(
		attribute.String("city", city.Name),
		attribute.String("status", string(status)),
	)

	if status == entities.StatusOpen {
		return s.resolver.ResolveOpen(ctx, origin, s.opts.Limit)
	}

	if s.freshness.Evaluate(city, at) == FreshnessOld {
		if _, err := s.refresher.Refresh(ctx, city); err != nil {
			observability.RecordError(span, err)
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("city", city.Name).
				Msg("roster refresh failed, serving stored duty roster")
		}
	}

	return s.resolver.ResolveOnDuty(ctx, city, origin, at, s.opts.Limit)
}
