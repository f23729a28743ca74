package geolocation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmacyonduty/backend/internal/adapters/providers/geolocation"
	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/pkg/config"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *geolocation.GoogleMapsProvider {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return geolocation.NewGoogleMapsProvider(config.GoogleConfig{
		APIKey:          "test-key",
		GeocodeURL:      server.URL + "/geocode/json",
		DistanceURL:     server.URL + "/distancematrix/json",
		PlacesNearbyURL: server.URL + "/place/nearbysearch/json",
	}, zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestLocationLabel(t *testing.T) {
	t.Run("prefers the plus code compound code", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/geocode/json", r.URL.Path)
			assert.Equal(t, "39.7767,30.5206", r.URL.Query().Get("latlng"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			writeJSON(w, `{"status":"OK","plus_code":{"compound_code":"QGGC+MR Tepebaşı/Eskişehir, Türkiye"},
				"results":[{"address_components":[{"long_name":"Eskişehir","types":["administrative_area_level_1"]}]}]}`)
		})

		label, err := provider.LocationLabel(context.Background(), 39.7767, 30.5206)

		require.NoError(t, err)
		assert.Equal(t, "QGGC+MR Tepebaşı/Eskişehir, Türkiye", label)
	})

	t.Run("falls back to the first-level administrative area", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"status":"OK","results":[{"address_components":[
				{"long_name":"Çankaya","types":["administrative_area_level_2"]},
				{"long_name":"Ankara","types":["administrative_area_level_1","political"]}]}]}`)
		})

		label, err := provider.LocationLabel(context.Background(), 39.92, 32.85)

		require.NoError(t, err)
		assert.Equal(t, "Ankara", label)
	})

	t.Run("zero results is an empty label", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"status":"ZERO_RESULTS","results":[]}`)
		})

		label, err := provider.LocationLabel(context.Background(), 0, 0)

		require.NoError(t, err)
		assert.Empty(t, label)
	})

	t.Run("denied request is an upstream failure", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"status":"REQUEST_DENIED","error_message":"bad key"}`)
		})

		_, err := provider.LocationLabel(context.Background(), 39.77, 30.52)

		assert.True(t, apperrors.IsRetryable(err))
		assert.Contains(t, err.Error(), "bad key")
	})

	t.Run("server error is an upstream failure", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := provider.LocationLabel(context.Background(), 39.77, 30.52)

		assert.True(t, apperrors.IsRetryable(err))
	})
}

func TestTravelDistances(t *testing.T) {
	origin := entities.Location{Latitude: 39.7767, Longitude: 30.5206}
	destinations := []entities.Location{
		{Latitude: 39.78, Longitude: 30.51},
		{Latitude: 39.70, Longitude: 30.60},
		{Latitude: 39.75, Longitude: 30.55},
	}

	t.Run("one batched request with per-element status", func(t *testing.T) {
		var calls int32
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "39.7767,30.5206", r.URL.Query().Get("origins"))
			assert.Equal(t, "39.78,30.51|39.7,30.6|39.75,30.55", r.URL.Query().Get("destinations"))
			writeJSON(w, `{"status":"OK","rows":[{"elements":[
				{"status":"OK","distance":{"value":1200},"duration":{"value":240}},
				{"status":"ZERO_RESULTS"},
				{"status":"OK","distance":{"value":5400},"duration":{"value":600}}]}]}`)
		})

		rows, err := provider.TravelDistances(context.Background(), origin, destinations)

		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.True(t, rows[0].OK)
		assert.Equal(t, 1200.0, rows[0].DistanceMeters)
		assert.Equal(t, 240.0, rows[0].DurationSeconds)
		assert.False(t, rows[1].OK)
		assert.True(t, rows[2].OK)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("top-level failure fails the whole call", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, `{"status":"OVER_QUERY_LIMIT","rows":[]}`)
		})

		rows, err := provider.TravelDistances(context.Background(), origin, destinations)

		assert.Nil(t, rows)
		assert.True(t, apperrors.IsRetryable(err))
	})

	t.Run("no destinations makes no request", func(t *testing.T) {
		provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("unexpected request")
		})

		rows, err := provider.TravelDistances(context.Background(), origin, nil)

		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestNearby(t *testing.T) {
	provider := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "distance", q.Get("rankby"))
		assert.Equal(t, "pharmacy", q.Get("keyword"))
		writeJSON(w, `{"status":"OK","results":[
			{"name":"Ada Eczanesi","vicinity":"Cadde 1","geometry":{"location":{"lat":39.78,"lng":30.51}}},
			{"name":"Bor Eczanesi","vicinity":"Cadde 2","geometry":{"location":{"lat":39.79,"lng":30.52}}},
			{"name":"Can Eczanesi","vicinity":"Cadde 3","geometry":{"location":{"lat":39.80,"lng":30.53}}}]}`)
	})

	places, err := provider.Nearby(context.Background(), entities.Location{Latitude: 39.7767, Longitude: 30.5206}, 2)

	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Ada Eczanesi", places[0].Name)
	assert.Equal(t, "Cadde 1", places[0].Address)
	assert.Equal(t, entities.Location{Latitude: 39.78, Longitude: 30.51}, places[0].Location)
}

func TestMissingAPIKey(t *testing.T) {
	provider := geolocation.NewGoogleMapsProvider(config.GoogleConfig{}, zerolog.Nop())

	_, err := provider.Nearby(context.Background(), entities.Location{}, 5)

	assert.True(t, apperrors.IsRetryable(err))
}

func TestOfflineProvider(t *testing.T) {
	provider := geolocation.NewOfflineProvider("Eskişehir")
	origin := entities.Location{Latitude: 39.7767, Longitude: 30.5206}
	dest := entities.Location{Latitude: 39.7867, Longitude: 30.5206}

	label, err := provider.LocationLabel(context.Background(), origin.Latitude, origin.Longitude)
	require.NoError(t, err)
	assert.Equal(t, "Eskişehir", label)

	rows, err := provider.TravelDistances(context.Background(), origin, []entities.Location{dest})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OK)
	assert.InDelta(t, origin.DistanceTo(dest), rows[0].DistanceMeters, 1e-6)
}
