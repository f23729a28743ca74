package providers

import (
	"context"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
)

// ReverseGeocoder turns a coordinate into a free-form place label such as
// "X4Q2+7G Tepebaşı/Eskişehir, Türkiye" or "Ankara".
type ReverseGeocoder interface {
	LocationLabel(ctx context.Context, lat, lng float64) (string, error)
}

// TravelRow is one destination's outcome in a distance matrix call.
// OK is false when the service had no route for that destination.
type TravelRow struct {
	OK              bool
	DistanceMeters  float64
	DurationSeconds float64
}

// TravelDistanceProvider computes road distances from one origin to many
// destinations in a single request. Rows are returned in destination order.
type TravelDistanceProvider interface {
	TravelDistances(ctx context.Context, origin entities.Location, destinations []entities.Location) ([]TravelRow, error)
}

// Place is a pharmacy returned by the places directory
type Place struct {
	Name     string
	Address  string
	Location entities.Location
}

// PlacesDirectory lists currently operating pharmacies near a point, closest first.
type PlacesDirectory interface {
	Nearby(ctx context.Context, origin entities.Location, limit int) ([]Place, error)
}
