package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pharmacyonduty/backend/internal/adapters/cache"
	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

type mockTravel struct{ mock.Mock }

func (m *mockTravel) TravelDistances(ctx context.Context, origin entities.Location, destinations []entities.Location) ([]providers.TravelRow, error) {
	args := m.Called(ctx, origin, destinations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.TravelRow), args.Error(1)
}

var (
	origin = entities.Location{Latitude: 39.7767, Longitude: 30.5206}
	destA  = entities.Location{Latitude: 39.78, Longitude: 30.52}
	destB  = entities.Location{Latitude: 39.79, Longitude: 30.53}
	destC  = entities.Location{Latitude: 39.80, Longitude: 30.54}
)

func TestCachedTravelDistances_FetchesOnlyMisses(t *testing.T) {
	ctx := context.Background()
	inner := new(mockTravel)
	memo, err := cache.NewMemo[providers.TravelRow]("travel", 16)
	require.NoError(t, err)
	cached := cache.NewCachedTravelDistances(inner, memo)

	inner.On("TravelDistances", mock.Anything, origin, []entities.Location{destA, destB}).
		Return([]providers.TravelRow{
			{OK: true, DistanceMeters: 100, DurationSeconds: 10},
			{OK: false},
		}, nil).Once()
	inner.On("TravelDistances", mock.Anything, origin, []entities.Location{destB, destC}).
		Return([]providers.TravelRow{
			{OK: true, DistanceMeters: 200, DurationSeconds: 20},
			{OK: true, DistanceMeters: 300, DurationSeconds: 30},
		}, nil).Once()

	rows, err := cached.TravelDistances(ctx, origin, []entities.Location{destA, destB})
	require.NoError(t, err)
	assert.True(t, rows[0].OK)
	assert.False(t, rows[1].OK)

	rows, err = cached.TravelDistances(ctx, origin, []entities.Location{destA, destB, destC})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300}, []float64{rows[0].DistanceMeters, rows[1].DistanceMeters, rows[2].DistanceMeters})

	rows, err = cached.TravelDistances(ctx, origin, []entities.Location{destC, destA})
	require.NoError(t, err)
	assert.Equal(t, 300.0, rows[0].DistanceMeters)
	inner.AssertExpectations(t)
	inner.AssertNumberOfCalls(t, "TravelDistances", 2)
}

func TestCachedTravelDistances_PropagatesTotalFailure(t *testing.T) {
	inner := new(mockTravel)
	memo, err := cache.NewMemo[providers.TravelRow]("travel", 16)
	require.NoError(t, err)
	cached := cache.NewCachedTravelDistances(inner, memo)

	inner.On("TravelDistances", mock.Anything, origin, mock.Anything).Return(nil, errors.New("timeout"))

	_, err = cached.TravelDistances(context.Background(), origin, []entities.Location{destA})
	assert.Error(t, err)
	assert.Equal(t, 0, memo.Len())
}
