package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

const (
	// DefaultResultLimit is how many pharmacies a resolution returns.
	DefaultResultLimit = 5
	// DefaultDutyRadiusMeters bounds the duty candidate search around the origin.
	DefaultDutyRadiusMeters = 100000.0

	// dutyOverfetch compensates for straight-line order differing from road order.
	dutyOverfetch = 2
)

// ErrEmptyCandidates is returned when Rank is called without candidates.
var ErrEmptyCandidates = apperrors.NewInternalError("cannot rank: input empty", nil)

// Candidate is a pharmacy waiting to be ranked. Distance is the straight-line
// distance from the origin in meters.
type Candidate struct {
	Title    string
	Address  string
	Status   entities.CandidateStatus
	Position entities.Location
	Distance float64
}

// ProximityResolver finds the pharmacies closest to a point by travel distance
type ProximityResolver struct {
	places       providers.PlacesDirectory
	travel       providers.TravelDistanceProvider
	pharmacies   repositories.PharmacyRepository
	radiusMeters float64
	metrics      *observability.Metrics
}

// NewProximityResolver creates a new proximity resolver; radiusMeters <= 0 uses the default.
func NewProximityResolver(
	places providers.PlacesDirectory,
	travel providers.TravelDistanceProvider,
	pharmacies repositories.PharmacyRepository,
	radiusMeters float64,
	metrics *observability.Metrics,
) *ProximityResolver {
	if radiusMeters <= 0 {
		radiusMeters = DefaultDutyRadiusMeters
	}
	return &ProximityResolver{
		places:       places,
		travel:       travel,
		pharmacies:   pharmacies,
		radiusMeters: radiusMeters,
		metrics:      metrics,
	}
}

// ResolveOpen ranks the pharmacies the places directory reports near origin.
// An empty directory answer is an empty result, not an error.
func (r *ProximityResolver) ResolveOpen(ctx context.Context, origin entities.Location, limit int) ([]entities.CandidatePoint, error) {
	ctx, span := observability.StartSpan(ctx, "ProximityResolver.ResolveOpen")
	defer span.End()
	limit = normalizeLimit(limit)

	places, err := r.places.Nearby(ctx, origin, limit)
	if err != nil {
		observability.RecordError(span, err)
		return nil, upstream("places directory", err)
	}
	if len(places) == 0 {
		return []entities.CandidatePoint{}, nil
	}

	candidates := make([]Candidate, 0, len(places))
	for _, place := range places {
		candidates = append(candidates, Candidate{
			Title:    place.Name,
			Address:  place.Address,
			Status:   entities.CandidateStatusOpen,
			Position: place.Location,
			Distance: origin.DistanceTo(place.Location),
		})
	}
	return r.Rank(ctx, origin, candidates, limit)
}

// ResolveOnDuty ranks the city's pharmacies on duty at the instant. Twice the
// limit is fetched by straight-line distance before travel ranking.
func (r *ProximityResolver) ResolveOnDuty(
	ctx context.Context,
	city *entities.City,
	origin entities.Location,
	at time.Time,
	limit int,
) ([]entities.CandidatePoint, error) {
	ctx, span := observability.StartSpan(ctx, "ProximityResolver.ResolveOnDuty")
	defer span.End()
	span.SetAttributes(attribute.String("city", city.Name))
	limit = normalizeLimit(limit)

	onDuty, err := r.pharmacies.FindOnDuty(ctx, repositories.OnDutyQuery{
		CityID:       city.ID,
		Origin:       origin,
		At:           at,
		RadiusMeters: r.radiusMeters,
		Limit:        limit * dutyOverfetch,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if len(onDuty) == 0 {
		return nil, apperrors.NewNoPharmaciesOnDutyError(
			fmt.Sprintf("no pharmacy in %s is on duty within %.0f km", city.Name, r.radiusMeters/1000))
	}

	candidates := make([]Candidate, 0, len(onDuty))
	for _, p := range onDuty {
		candidates = append(candidates, Candidate{
			Title:    p.Name,
			Address:  p.Address,
			Status:   entities.CandidateStatusOnDuty,
			Position: p.Location,
			Distance: p.DistanceMeters,
		})
	}
	return r.Rank(ctx, origin, candidates, limit)
}

// Rank orders candidates by travel distance using one batched distance
// request. A candidate without a usable route row falls back to its
// straight-line distance, with distance/1000*60 as its duration. A failure of
// the whole request is returned as UpstreamUnavailable.
func (r *ProximityResolver) Rank(ctx context.Context, origin entities.Location, candidates []Candidate, limit int) ([]entities.CandidatePoint, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidates
	}
	limit = normalizeLimit(limit)

	destinations := make([]entities.Location, len(candidates))
	for i, c := range candidates {
		destinations[i] = c.Position
	}

	rows, err := r.travel.TravelDistances(ctx, origin, destinations)
	if err != nil {
		return nil, upstream("travel distance service", err)
	}

	points := make([]entities.CandidatePoint, len(candidates))
	fallbacks := 0
	for i, c := range candidates {
		distance := c.Distance
		travelDistance := c.Distance
		travelDuration := c.Distance / 1000 * 60
		if i < len(rows) && rows[i].OK {
			travelDistance = rows[i].DistanceMeters
			travelDuration = rows[i].DurationSeconds
		} else {
			fallbacks++
		}
		points[i] = entities.CandidatePoint{
			Title:          c.Title,
			Address:        c.Address,
			Status:         c.Status,
			Position:       c.Position,
			Distance:       &distance,
			TravelDistance: &travelDistance,
			TravelDuration: &travelDuration,
		}
	}

	if fallbacks > 0 {
		observability.RecordDistanceFallbacks(ctx, r.metrics, string(candidates[0].Status), fallbacks)
		observability.LoggerFromContext(ctx).Debug().
			Int("fallbacks", fallbacks).
			Int("candidates", len(candidates)).
			Msg("ranking with straight-line estimates")
	}

	sort.SliceStable(points, func(i, j int) bool {
		return *points[i].TravelDistance < *points[j].TravelDistance
	})
	if len(points) > limit {
		points = points[:limit]
	}
	return points, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultResultLimit
	}
	return limit
}

// upstream classifies a whole-call failure of an external service.
func upstream(service string, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable) {
		return err
	}
	return apperrors.NewUpstreamUnavailableError(service+" unavailable", err)
}
