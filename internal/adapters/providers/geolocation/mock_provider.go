package geolocation

import (
	"context"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

// offlineSpeedMetersPerSecond is roughly 36 km/h of city traffic
const offlineSpeedMetersPerSecond = 10.0

// OfflineProvider answers without any network access, for local development
// without a Google Maps key. Every point is labeled with Label, travel
// distances are great-circle distances, and the places directory is empty.
type OfflineProvider struct {
	Label string
}

// NewOfflineProvider creates an offline provider labeling every point with label
func NewOfflineProvider(label string) *OfflineProvider {
	return &OfflineProvider{Label: label}
}

// LocationLabel returns the configured label
func (m *OfflineProvider) LocationLabel(ctx context.Context, lat, lng float64) (string, error) {
	return m.Label, nil
}

// TravelDistances returns straight-line distances
func (m *OfflineProvider) TravelDistances(ctx context.Context, origin entities.Location, destinations []entities.Location) ([]providers.TravelRow, error) {
	rows := make([]providers.TravelRow, len(destinations))
	for i, d := range destinations {
		meters := origin.DistanceTo(d)
		rows[i] = providers.TravelRow{
			OK:              true,
			DistanceMeters:  meters,
			DurationSeconds: meters / offlineSpeedMetersPerSecond,
		}
	}
	return rows, nil
}

// Nearby returns no places
func (m *OfflineProvider) Nearby(ctx context.Context, origin entities.Location, limit int) ([]providers.Place, error) {
	return []providers.Place{}, nil
}
