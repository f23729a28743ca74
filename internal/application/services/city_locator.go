package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
	"github.com/pharmacyonduty/backend/pkg/utils"
)

// CityNameCache memoizes the configured city name matched for a coordinate key.
type CityNameCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string)
}

// CityLocator maps a coordinate to one of the configured cities
type CityLocator struct {
	geocoder providers.ReverseGeocoder
	cities   repositories.CityRepository
	cache    CityNameCache
}

// NewCityLocator creates a new city locator; cache may be nil.
func NewCityLocator(geocoder providers.ReverseGeocoder, cities repositories.CityRepository, cache CityNameCache) *CityLocator {
	return &CityLocator{geocoder: geocoder, cities: cities, cache: cache}
}

// Locate returns the configured city containing the location. Callers round
// the location first so nearby queries share one cache entry.
func (l *CityLocator) Locate(ctx context.Context, location entities.Location) (*entities.City, error) {
	key := location.String()
	if l.cache != nil {
		if name, ok := l.cache.Get(ctx, key); ok {
			city, err := l.cities.GetByName(ctx, name)
			if err == nil {
				return city, nil
			}
			if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, err
			}
		}
	}

	label, err := l.geocoder.LocationLabel(ctx, location.Latitude, location.Longitude)
	if err != nil {
		return nil, upstream("geocoding service", err)
	}

	cities, err := l.cities.List(ctx)
	if err != nil {
		return nil, err
	}

	folded := utils.FoldName(label)
	for _, city := range cities {
		if strings.Contains(folded, utils.FoldName(city.Name)) {
			if l.cache != nil {
				l.cache.Set(ctx, key, city.Name)
			}
			return city, nil
		}
	}

	observability.LoggerFromContext(ctx).Info().
		Str("label", label).
		Str("location", key).
		Msg("location is outside every configured city")
	return nil, apperrors.NewUnknownCityError(fmt.Sprintf("unknown city: %s", label))
}
