package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pharmacyonduty/backend/internal/application/services"
	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

var origin = entities.Location{Latitude: 39.7767, Longitude: 30.5206}

func dutyCandidate(title string, distance float64) services.Candidate {
	return services.Candidate{
		Title:    title,
		Status:   entities.CandidateStatusOnDuty,
		Position: entities.Location{Latitude: 39.78, Longitude: 30.52 + distance/1e6},
		Distance: distance,
	}
}

func titles(points []entities.CandidatePoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Title
	}
	return out
}

func TestRank_OrdersByTravelDistance(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(nil, travel, nil, 0, nil)

	travel.On("TravelDistances", mock.Anything, origin, mock.Anything).Return([]providers.TravelRow{
		{OK: true, DistanceMeters: 1200, DurationSeconds: 300},
		{OK: true, DistanceMeters: 800, DurationSeconds: 200},
	}, nil).Once()

	points, err := resolver.Rank(context.Background(), origin, []services.Candidate{
		dutyCandidate("far", 500),
		dutyCandidate("near", 700),
	}, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, titles(points))
	assert.Equal(t, 800.0, *points[0].TravelDistance)
	assert.Equal(t, 200.0, *points[0].TravelDuration)
	assert.Equal(t, 700.0, *points[0].Distance)
	assert.Equal(t, entities.CandidateStatusOnDuty, points[0].Status)
	travel.AssertNumberOfCalls(t, "TravelDistances", 1)
}

func TestRank_FailedRowsFallBackToStraightLine(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(nil, travel, nil, 0, nil)

	travel.On("TravelDistances", mock.Anything, origin, mock.Anything).Return([]providers.TravelRow{
		{OK: true, DistanceMeters: 2600, DurationSeconds: 420},
		{OK: false},
	}, nil)

	points, err := resolver.Rank(context.Background(), origin, []services.Candidate{
		dutyCandidate("routed", 1000),
		dutyCandidate("estimated", 1500),
		dutyCandidate("missing row", 3000),
	}, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"estimated", "routed", "missing row"}, titles(points))
	assert.Equal(t, 1500.0, *points[0].TravelDistance)
	assert.Equal(t, 1500.0/1000*60, *points[0].TravelDuration)
	assert.Equal(t, 3000.0/1000*60, *points[2].TravelDuration)
}

func TestRank_AllRowsFailedKeepsStraightLineOrder(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(nil, travel, nil, 0, nil)

	travel.On("TravelDistances", mock.Anything, origin, mock.Anything).Return([]providers.TravelRow{
		{OK: false}, {OK: false}, {OK: false}, {OK: false},
	}, nil)

	points, err := resolver.Rank(context.Background(), origin, []services.Candidate{
		dutyCandidate("a", 100),
		dutyCandidate("b", 250),
		dutyCandidate("c", 250),
		dutyCandidate("d", 900),
	}, 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, titles(points))
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, *points[i-1].TravelDistance, *points[i].TravelDistance)
	}
}

func TestRank_TotalFailureIsUpstreamUnavailable(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(nil, travel, nil, 0, nil)

	travel.On("TravelDistances", mock.Anything, origin, mock.Anything).Return(nil, errors.New("dial tcp: i/o timeout"))

	points, err := resolver.Rank(context.Background(), origin, []services.Candidate{dutyCandidate("a", 100)}, 5)

	assert.Nil(t, points)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRank_EmptyInputIsAnError(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(nil, travel, nil, 0, nil)

	_, err := resolver.Rank(context.Background(), origin, nil, 5)

	assert.ErrorIs(t, err, services.ErrEmptyCandidates)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	assert.False(t, apperrors.IsRetryable(err))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())
	travel.AssertNotCalled(t, "TravelDistances", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveOnDuty_OverfetchesAndTruncates(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	pharmacies := new(mockPharmacyRepository)
	resolver := services.NewProximityResolver(nil, travel, pharmacies, 50000, nil)
	instant := oct(13, 22, 0)

	stored := []*entities.Pharmacy{
		{Name: "one", Location: entities.Location{Latitude: 39.78, Longitude: 30.52}, DistanceMeters: 300},
		{Name: "two", Location: entities.Location{Latitude: 39.79, Longitude: 30.53}, DistanceMeters: 600},
		{Name: "three", Location: entities.Location{Latitude: 39.80, Longitude: 30.54}, DistanceMeters: 900},
	}
	pharmacies.On("FindOnDuty", mock.Anything, repositories.OnDutyQuery{
		CityID:       eskisehir.ID,
		Origin:       origin,
		At:           instant,
		RadiusMeters: 50000,
		Limit:        4,
	}).Return(stored, nil)
	travel.On("TravelDistances", mock.Anything, origin, []entities.Location{
		stored[0].Location, stored[1].Location, stored[2].Location,
	}).Return([]providers.TravelRow{
		{OK: true, DistanceMeters: 2000, DurationSeconds: 400},
		{OK: true, DistanceMeters: 700, DurationSeconds: 150},
		{OK: true, DistanceMeters: 1000, DurationSeconds: 200},
	}, nil)

	points, err := resolver.ResolveOnDuty(context.Background(), eskisehir, origin, instant, 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, titles(points))
	assert.Equal(t, entities.CandidateStatusOnDuty, points[0].Status)
}

func TestResolveOnDuty_EmptySetIsAnError(t *testing.T) {
	travel := new(mockTravelDistanceProvider)
	pharmacies := new(mockPharmacyRepository)
	resolver := services.NewProximityResolver(nil, travel, pharmacies, 0, nil)

	pharmacies.On("FindOnDuty", mock.Anything, mock.MatchedBy(func(q repositories.OnDutyQuery) bool {
		return q.RadiusMeters == services.DefaultDutyRadiusMeters && q.Limit == 10
	})).Return([]*entities.Pharmacy{}, nil)

	points, err := resolver.ResolveOnDuty(context.Background(), eskisehir, origin, oct(13, 22, 0), 0)

	assert.Nil(t, points)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNoPharmaciesOnDuty))
	travel.AssertNotCalled(t, "TravelDistances", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveOpen(t *testing.T) {
	places := new(mockPlacesDirectory)
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(places, travel, nil, 0, nil)

	near := entities.Location{Latitude: 39.7770, Longitude: 30.5210}
	far := entities.Location{Latitude: 39.7900, Longitude: 30.5400}
	places.On("Nearby", mock.Anything, origin, 5).Return([]providers.Place{
		{Name: "Far", Address: "Bağlar Cd.", Location: far},
		{Name: "Near", Address: "İsmet İnönü Cd.", Location: near},
	}, nil)
	travel.On("TravelDistances", mock.Anything, origin, []entities.Location{far, near}).
		Return([]providers.TravelRow{{OK: false}, {OK: false}}, nil)

	points, err := resolver.ResolveOpen(context.Background(), origin, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"Near", "Far"}, titles(points))
	assert.Equal(t, entities.CandidateStatusOpen, points[0].Status)
	assert.InDelta(t, origin.DistanceTo(near), *points[0].TravelDistance, 1e-9)
	assert.Equal(t, "İsmet İnönü Cd.", points[0].Address)
}

func TestResolveOpen_EmptyDirectoryIsEmptyResult(t *testing.T) {
	places := new(mockPlacesDirectory)
	travel := new(mockTravelDistanceProvider)
	resolver := services.NewProximityResolver(places, travel, nil, 0, nil)

	places.On("Nearby", mock.Anything, origin, 5).Return([]providers.Place{}, nil)

	points, err := resolver.ResolveOpen(context.Background(), origin, 5)

	require.NoError(t, err)
	assert.Empty(t, points)
	assert.NotNil(t, points)
}

func TestResolveOpen_DirectoryFailure(t *testing.T) {
	places := new(mockPlacesDirectory)
	resolver := services.NewProximityResolver(places, new(mockTravelDistanceProvider), nil, 0, nil)

	places.On("Nearby", mock.Anything, origin, 5).Return(nil, errors.New("503"))

	_, err := resolver.ResolveOpen(context.Background(), origin, 5)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
}
