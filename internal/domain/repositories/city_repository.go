package repositories

import (
	"context"
	"time"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
)

// CityRepository defines the interface for city data operations
type CityRepository interface {
	// List returns every configured city
	List(ctx context.Context) ([]*entities.City, error)

	// GetByName finds a city by name, ignoring case and diacritics
	GetByName(ctx context.Context, name string) (*entities.City, error)

	// Upsert creates the city or replaces its working schedule
	Upsert(ctx context.Context, city *entities.City) error

	// MarkRefreshed records a successful scrape-and-store cycle
	MarkRefreshed(ctx context.Context, cityID string, at time.Time) error
}
