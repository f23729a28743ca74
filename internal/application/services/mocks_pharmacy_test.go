package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pharmacyonduty/backend/internal/application/services"
	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/normalizer"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

type mockCityRepository struct {
	mock.Mock
}

func (m *mockCityRepository) List(ctx context.Context) ([]*entities.City, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.City), args.Error(1)
}

func (m *mockCityRepository) GetByName(ctx context.Context, name string) (*entities.City, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.City), args.Error(1)
}

func (m *mockCityRepository) Upsert(ctx context.Context, city *entities.City) error {
	return m.Called(ctx, city).Error(0)
}

func (m *mockCityRepository) MarkRefreshed(ctx context.Context, cityID string, at time.Time) error {
	return m.Called(ctx, cityID, at).Error(0)
}

type mockPharmacyRepository struct {
	mock.Mock
}

func (m *mockPharmacyRepository) ListByCity(ctx context.Context, cityID string) ([]*entities.Pharmacy, error) {
	args := m.Called(ctx, cityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Pharmacy), args.Error(1)
}

func (m *mockPharmacyRepository) BulkInsert(ctx context.Context, pharmacies []*entities.Pharmacy) (int64, error) {
	args := m.Called(ctx, pharmacies)
	return int64(args.Int(0)), args.Error(1)
}

func (m *mockPharmacyRepository) BulkUpdateDutyWindows(ctx context.Context, pharmacies []*entities.Pharmacy) (int64, error) {
	args := m.Called(ctx, pharmacies)
	return int64(args.Int(0)), args.Error(1)
}

func (m *mockPharmacyRepository) FindOnDuty(ctx context.Context, params repositories.OnDutyQuery) ([]*entities.Pharmacy, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Pharmacy), args.Error(1)
}

// memoryPharmacyStore mirrors the database upsert semantics: inserts that hit
// an existing name/phone key overwrite the duty window.
type memoryPharmacyStore struct {
	mu   sync.Mutex
	rows []*entities.Pharmacy
}

func (s *memoryPharmacyStore) ListByCity(_ context.Context, cityID string) ([]*entities.Pharmacy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.Pharmacy
	for _, row := range s.rows {
		if row.CityID == cityID {
			p := *row
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *memoryPharmacyStore) BulkInsert(_ context.Context, pharmacies []*entities.Pharmacy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pharmacies {
		if row := s.findByKey(p.CityID, p.Key()); row != nil {
			row.DutyStart, row.DutyEnd = p.DutyStart, p.DutyEnd
			continue
		}
		stored := *p
		s.rows = append(s.rows, &stored)
	}
	return int64(len(pharmacies)), nil
}

func (s *memoryPharmacyStore) BulkUpdateDutyWindows(_ context.Context, pharmacies []*entities.Pharmacy) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range pharmacies {
		for _, row := range s.rows {
			if row.ID == p.ID {
				row.DutyStart, row.DutyEnd = p.DutyStart, p.DutyEnd
				n++
			}
		}
	}
	return n, nil
}

func (s *memoryPharmacyStore) FindOnDuty(context.Context, repositories.OnDutyQuery) ([]*entities.Pharmacy, error) {
	return nil, nil
}

func (s *memoryPharmacyStore) findByKey(cityID string, key entities.PharmacyKey) *entities.Pharmacy {
	for _, row := range s.rows {
		if row.CityID == cityID && row.Key() == key {
			return row
		}
	}
	return nil
}

type mockTravelDistanceProvider struct {
	mock.Mock
}

func (m *mockTravelDistanceProvider) TravelDistances(ctx context.Context, origin entities.Location, destinations []entities.Location) ([]providers.TravelRow, error) {
	args := m.Called(ctx, origin, destinations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.TravelRow), args.Error(1)
}

type mockPlacesDirectory struct {
	mock.Mock
}

func (m *mockPlacesDirectory) Nearby(ctx context.Context, origin entities.Location, limit int) ([]providers.Place, error) {
	args := m.Called(ctx, origin, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]providers.Place), args.Error(1)
}

type mockReverseGeocoder struct {
	mock.Mock
}

func (m *mockReverseGeocoder) LocationLabel(ctx context.Context, lat, lng float64) (string, error) {
	args := m.Called(ctx, lat, lng)
	return args.String(0), args.Error(1)
}

type mockDutyScraper struct {
	mock.Mock
	source string
}

func (m *mockDutyScraper) Source() string { return m.source }

func (m *mockDutyScraper) Fetch(ctx context.Context, city string) (*providers.RawPayload, error) {
	args := m.Called(ctx, city)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.RawPayload), args.Error(1)
}

type staticScrapers map[string]providers.DutyScraper

func (s staticScrapers) Lookup(city string) (providers.DutyScraper, bool) {
	scraper, ok := s[city]
	return scraper, ok
}

type mockNormalizer struct {
	mock.Mock
}

func (m *mockNormalizer) Normalize(payload *providers.RawPayload) (normalizer.Result, error) {
	args := m.Called(payload)
	return args.Get(0).(normalizer.Result), args.Error(1)
}

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) Ingest(ctx context.Context, cityName string, records []*entities.Pharmacy) (*services.IngestionSummary, error) {
	args := m.Called(ctx, cityName, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.IngestionSummary), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) Publish(ctx context.Context, channel string, event *entities.DutyRosterEvent) error {
	return m.Called(ctx, channel, event).Error(0)
}

func (m *mockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DutyRosterEvent, error) {
	return nil, nil
}

func (m *mockEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (m *mockEventBus) Close() error { return nil }

type mapCityNameCache map[string]string

func (c mapCityNameCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

func (c mapCityNameCache) Set(_ context.Context, key, value string) { c[key] = value }

// standardSchedule is open 09:00-18:00 on weekdays and 09:00-13:00 on Saturday, UTC.
func standardSchedule() entities.WorkingSchedule {
	return entities.WorkingSchedule{
		WeekdayOpen:   entities.NewTimeOfDay(9, 0),
		WeekdayClose:  entities.NewTimeOfDay(18, 0),
		SaturdayOpen:  entities.NewTimeOfDay(9, 0),
		SaturdayClose: entities.NewTimeOfDay(13, 0),
	}
}

func notFound(what string) error {
	return apperrors.NewNotFoundError(what + " not found")
}

func oct(day, hour, minute int) time.Time {
	// October 2026: the 13th is a Tuesday, the 17th a Saturday, the 18th a Sunday.
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time { return &t }
