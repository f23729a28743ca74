package repositories

import (
	"context"
	"time"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
)

// PharmacyRepository defines the interface for pharmacy data operations
type PharmacyRepository interface {
	// ListByCity returns every stored pharmacy of a city
	ListByCity(ctx context.Context, cityID string) ([]*entities.Pharmacy, error)

	// BulkInsert inserts new pharmacies. A row that collides on the identity
	// key has its duty window overwritten instead.
	BulkInsert(ctx context.Context, pharmacies []*entities.Pharmacy) (int64, error)

	// BulkUpdateDutyWindows overwrites duty start/end of existing rows by id.
	// No other field changes.
	BulkUpdateDutyWindows(ctx context.Context, pharmacies []*entities.Pharmacy) (int64, error)

	// FindOnDuty returns pharmacies of the city on duty at the instant,
	// within radius meters of origin, closest first. DistanceMeters is set.
	FindOnDuty(ctx context.Context, params OnDutyQuery) ([]*entities.Pharmacy, error)
}

// OnDutyQuery defines the duty mode candidate query
type OnDutyQuery struct {
	CityID       string
	Origin       entities.Location
	At           time.Time
	RadiusMeters float64
	Limit        int
}
