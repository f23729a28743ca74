package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

const (
	pharmaciesTable = "pharmacies"

	// 15 columns per row keeps a chunk well under the 65535 bind parameter limit.
	insertChunkSize = 500
)

// updateDutyWindowsSQL updates every row of the batch in one statement.
const updateDutyWindowsSQL = `
UPDATE pharmacies AS p
SET duty_start = u.duty_start, duty_end = u.duty_end, updated_at = u.updated_at
FROM unnest($1::uuid[], $2::timestamptz[], $3::timestamptz[], $4::timestamptz[])
	AS u(id, duty_start, duty_end, updated_at)
WHERE p.id = u.id`

// PharmacyAdapter implements the PharmacyRepository interface on PostGIS
type PharmacyAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPharmacyAdapter creates a new pharmacy adapter
func NewPharmacyAdapter(client *postgres.Client) repositories.PharmacyRepository {
	return &PharmacyAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func geographyPoint(loc entities.Location) exp.LiteralExpression {
	return goqu.L("ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography", loc.Longitude, loc.Latitude)
}

var pharmacyColumns = []interface{}{
	"id",
	"city_id",
	"name",
	"address",
	"district",
	"phone",
	"email",
	"website",
	goqu.L("ST_Y(location::geometry)").As("latitude"),
	goqu.L("ST_X(location::geometry)").As("longitude"),
	"duty_start",
	"duty_end",
	"created_at",
	"updated_at",
}

// ListByCity returns every stored pharmacy of a city
func (a *PharmacyAdapter) ListByCity(ctx context.Context, cityID string) ([]*entities.Pharmacy, error) {
	defer a.client.Observe(ctx, "pharmacies.list_by_city", time.Now())

	query, args, err := a.db.From(pharmaciesTable).
		Select(pharmacyColumns...).
		Where(goqu.Ex{"city_id": cityID}).
		Order(goqu.C("name").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args, false)
}

// BulkInsert inserts the batch in chunks. A row colliding on
// (city_id, name_key, phone_key) keeps its identity and takes the new duty window.
func (a *PharmacyAdapter) BulkInsert(ctx context.Context, pharmacies []*entities.Pharmacy) (int64, error) {
	if len(pharmacies) == 0 {
		return 0, nil
	}
	defer a.client.Observe(ctx, "pharmacies.bulk_insert", time.Now())

	var total int64
	for start := 0; start < len(pharmacies); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(pharmacies) {
			end = len(pharmacies)
		}

		rows := make([]interface{}, 0, end-start)
		for _, p := range pharmacies[start:end] {
			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			key := p.Key()
			rows = append(rows, goqu.Record{
				"id":         p.ID,
				"city_id":    p.CityID,
				"name":       p.Name,
				"name_key":   key.Name,
				"address":    nullString(p.Address),
				"district":   p.District,
				"phone":      nullString(p.Phone),
				"phone_key":  key.Phone,
				"email":      nullString(p.Email),
				"website":    nullString(p.Website),
				"location":   geographyPoint(p.Location),
				"duty_start": nullTime(p.DutyStart),
				"duty_end":   nullTime(p.DutyEnd),
				"created_at": p.CreatedAt,
				"updated_at": p.UpdatedAt,
			})
		}

		query, args, err := a.db.Insert(pharmaciesTable).
			Rows(rows...).
			OnConflict(goqu.DoUpdate("city_id, name_key, phone_key", goqu.Record{
				"duty_start": goqu.I("excluded.duty_start"),
				"duty_end":   goqu.I("excluded.duty_end"),
				"updated_at": goqu.I("excluded.updated_at"),
			})).
			Prepared(true).
			ToSQL()
		if err != nil {
			return total, apperrors.NewInternalError("failed to build query", err)
		}

		result, err := a.client.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return total, apperrors.NewInternalError("failed to insert pharmacies", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, apperrors.NewInternalError("failed to get rows affected", err)
		}
		total += affected
	}
	return total, nil
}

// BulkUpdateDutyWindows overwrites the duty window of existing rows by id
func (a *PharmacyAdapter) BulkUpdateDutyWindows(ctx context.Context, pharmacies []*entities.Pharmacy) (int64, error) {
	if len(pharmacies) == 0 {
		return 0, nil
	}
	defer a.client.Observe(ctx, "pharmacies.bulk_update_duty_windows", time.Now())

	ids := make([]string, len(pharmacies))
	starts := make([]sql.NullString, len(pharmacies))
	ends := make([]sql.NullString, len(pharmacies))
	updated := make([]string, len(pharmacies))
	for i, p := range pharmacies {
		ids[i] = p.ID
		starts[i] = timestampText(p.DutyStart)
		ends[i] = timestampText(p.DutyEnd)
		updatedAt := p.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}
		updated[i] = updatedAt.UTC().Format(time.RFC3339Nano)
	}

	result, err := a.client.DB().ExecContext(ctx, updateDutyWindowsSQL,
		pq.Array(ids), pq.Array(starts), pq.Array(ends), pq.Array(updated))
	if err != nil {
		return 0, apperrors.NewInternalError("failed to update duty windows", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return affected, nil
}

// FindOnDuty returns the city's pharmacies whose duty window contains the
// instant, within the radius of the origin, closest first
func (a *PharmacyAdapter) FindOnDuty(ctx context.Context, params repositories.OnDutyQuery) ([]*entities.Pharmacy, error) {
	defer a.client.Observe(ctx, "pharmacies.find_on_duty", time.Now())

	origin := geographyPoint(params.Origin)
	columns := append(append([]interface{}{}, pharmacyColumns...),
		goqu.L("ST_Distance(location, ?)", origin).As("distance_meters"))

	ds := a.db.From(pharmaciesTable).
		Select(columns...).
		Where(
			goqu.C("city_id").Eq(params.CityID),
			goqu.C("duty_start").Lte(params.At.UTC()),
			goqu.C("duty_end").Gte(params.At.UTC()),
		).
		Order(goqu.I("distance_meters").Asc())
	if params.RadiusMeters > 0 {
		ds = ds.Where(goqu.L("ST_DWithin(location, ?, ?)", origin, params.RadiusMeters))
	}
	if params.Limit > 0 {
		ds = ds.Limit(uint(params.Limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.query(ctx, query, args, true)
}

func (a *PharmacyAdapter) query(ctx context.Context, query string, args []interface{}, withDistance bool) ([]*entities.Pharmacy, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query pharmacies", err)
	}
	defer rows.Close()

	pharmacies := []*entities.Pharmacy{}
	for rows.Next() {
		var (
			p                  entities.Pharmacy
			address, phone     sql.NullString
			email, website     sql.NullString
			dutyStart, dutyEnd sql.NullTime
		)
		dest := []interface{}{
			&p.ID, &p.CityID, &p.Name, &address, &p.District, &phone, &email, &website,
			&p.Location.Latitude, &p.Location.Longitude,
			&dutyStart, &dutyEnd, &p.CreatedAt, &p.UpdatedAt,
		}
		if withDistance {
			dest = append(dest, &p.DistanceMeters)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewInternalError("failed to scan pharmacy", err)
		}

		p.Address = address.String
		p.Phone = phone.String
		p.Email = email.String
		p.Website = website.String
		p.DutyStart = timePtr(dutyStart)
		p.DutyEnd = timePtr(dutyEnd)
		pharmacies = append(pharmacies, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate pharmacies", err)
	}
	return pharmacies, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timestampText(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
