package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

// IngestionSummary reports what one ingestion changed
type IngestionSummary struct {
	CityID   string
	City     string
	Inserted int
	Updated  int
	Skipped  int
}

// IngestionService upserts normalized roster records into storage
type IngestionService struct {
	cities     repositories.CityRepository
	pharmacies repositories.PharmacyRepository
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	cities repositories.CityRepository,
	pharmacies repositories.PharmacyRepository,
	metrics *observability.Metrics,
) *IngestionService {
	return &IngestionService{
		cities:     cities,
		pharmacies: pharmacies,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for record timestamps
func (s *IngestionService) WithClock(now func() time.Time) *IngestionService {
	s.now = now
	return s
}

// Ingest stores the records of a city. Records whose name and phone match a
// stored pharmacy only have their duty window overwritten; the rest are
// inserted. Within a batch the last record for a key wins. The city's last
// refresh time is left untouched.
func (s *IngestionService) Ingest(ctx context.Context, cityName string, records []*entities.Pharmacy) (*IngestionSummary, error) {
	ctx, span := observability.StartSpan(ctx, "IngestionService.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("city", cityName), attribute.Int("records", len(records)))

	city, err := s.cities.GetByName(ctx, cityName)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("city %q is not configured", cityName))
		}
		observability.RecordError(span, err)
		return nil, err
	}

	existing, err := s.pharmacies.ListByCity(ctx, city.ID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	stored := make(map[entities.PharmacyKey]*entities.Pharmacy, len(existing))
	for _, p := range existing {
		stored[p.Key()] = p
	}

	summary := &IngestionSummary{CityID: city.ID, City: city.Name}
	batch := dedupeBatch(records, &summary.Skipped)

	now := s.now().UTC()
	var inserts, updates []*entities.Pharmacy
	for _, record := range batch {
		if current, ok := stored[record.Key()]; ok {
			updates = append(updates, &entities.Pharmacy{
				ID:        current.ID,
				CityID:    city.ID,
				Name:      current.Name,
				Phone:     current.Phone,
				DutyStart: record.DutyStart,
				DutyEnd:   record.DutyEnd,
				UpdatedAt: now,
			})
			continue
		}

		p := *record
		p.ID = uuid.NewString()
		p.CityID = city.ID
		p.CreatedAt = now
		p.UpdatedAt = now
		inserts = append(inserts, &p)
	}

	if len(inserts) > 0 {
		if _, err := s.pharmacies.BulkInsert(ctx, inserts); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}
	if len(updates) > 0 {
		if _, err := s.pharmacies.BulkUpdateDutyWindows(ctx, updates); err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}

	summary.Inserted = len(inserts)
	summary.Updated = len(updates)
	observability.RecordIngestion(ctx, s.metrics, city.Name, summary.Inserted, summary.Updated)
	observability.LoggerFromContext(ctx).Info().
		Str("city", city.Name).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Msg("duty roster ingested")

	return summary, nil
}

// dedupeBatch drops invalid records and keeps the last record per key, in
// order of first appearance.
func dedupeBatch(records []*entities.Pharmacy, skipped *int) []*entities.Pharmacy {
	index := make(map[entities.PharmacyKey]int, len(records))
	out := make([]*entities.Pharmacy, 0, len(records))
	for _, record := range records {
		if record == nil || record.Validate() != nil {
			*skipped++
			continue
		}
		key := record.Key()
		if i, ok := index[key]; ok {
			out[i] = record
			continue
		}
		index[key] = len(out)
		out = append(out, record)
	}
	return out
}
