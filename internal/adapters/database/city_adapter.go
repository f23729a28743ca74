package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/repositories"
	"github.com/pharmacyonduty/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
	"github.com/pharmacyonduty/backend/pkg/utils"
)

const citiesTable = "cities"

// CityAdapter implements the CityRepository interface
type CityAdapter struct {
	client   *postgres.Client
	db       *goqu.Database
	schedule *time.Location
}

// NewCityAdapter creates a new city adapter. Working schedules read from the
// database are interpreted in scheduleLoc.
func NewCityAdapter(client *postgres.Client, scheduleLoc *time.Location) repositories.CityRepository {
	if scheduleLoc == nil {
		scheduleLoc = time.UTC
	}
	return &CityAdapter{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		schedule: scheduleLoc,
	}
}

func (a *CityAdapter) selectCities() *goqu.SelectDataset {
	return a.db.From(citiesTable).Select(
		"id",
		"name",
		"last_refresh_at",
		goqu.Cast(goqu.C("weekday_open"), "TEXT").As("weekday_open"),
		goqu.Cast(goqu.C("weekday_close"), "TEXT").As("weekday_close"),
		goqu.Cast(goqu.C("saturday_open"), "TEXT").As("saturday_open"),
		goqu.Cast(goqu.C("saturday_close"), "TEXT").As("saturday_close"),
	)
}

// List returns every configured city ordered by name
func (a *CityAdapter) List(ctx context.Context) ([]*entities.City, error) {
	defer a.client.Observe(ctx, "cities.list", time.Now())

	query, args, err := a.selectCities().Order(goqu.C("name").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list cities", err)
	}
	defer rows.Close()

	var cities []*entities.City
	for rows.Next() {
		city, err := a.scanCity(rows)
		if err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate cities", err)
	}
	return cities, nil
}

// GetByName finds a city by its folded name
func (a *CityAdapter) GetByName(ctx context.Context, name string) (*entities.City, error) {
	defer a.client.Observe(ctx, "cities.get_by_name", time.Now())

	query, args, err := a.selectCities().
		Where(goqu.Ex{"name_key": utils.FoldName(name)}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	city, err := a.scanCity(a.client.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("city %q not found", name))
		}
		return nil, err
	}
	return city, nil
}

// Upsert creates the city or replaces its name and working schedule
func (a *CityAdapter) Upsert(ctx context.Context, city *entities.City) error {
	defer a.client.Observe(ctx, "cities.upsert", time.Now())

	if err := city.Schedule.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if city.ID == "" {
		city.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	record := goqu.Record{
		"id":             city.ID,
		"name":           city.Name,
		"name_key":       utils.FoldName(city.Name),
		"weekday_open":   city.Schedule.WeekdayOpen.String(),
		"weekday_close":  city.Schedule.WeekdayClose.String(),
		"saturday_open":  city.Schedule.SaturdayOpen.String(),
		"saturday_close": city.Schedule.SaturdayClose.String(),
		"created_at":     now,
		"updated_at":     now,
	}

	query, args, err := a.db.Insert(citiesTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("name_key", goqu.Record{
			"name":           goqu.I("excluded.name"),
			"weekday_open":   goqu.I("excluded.weekday_open"),
			"weekday_close":  goqu.I("excluded.weekday_close"),
			"saturday_open":  goqu.I("excluded.saturday_open"),
			"saturday_close": goqu.I("excluded.saturday_close"),
			"updated_at":     goqu.I("excluded.updated_at"),
		})).
		Returning("id").
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build query", err)
	}

	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&city.ID); err != nil {
		return apperrors.NewInternalError("failed to upsert city", err)
	}
	return nil
}

// MarkRefreshed stores the instant of the last successful roster refresh
func (a *CityAdapter) MarkRefreshed(ctx context.Context, cityID string, at time.Time) error {
	defer a.client.Observe(ctx, "cities.mark_refreshed", time.Now())

	query, args, err := a.db.Update(citiesTable).
		Set(goqu.Record{"last_refresh_at": at.UTC(), "updated_at": time.Now().UTC()}).
		Where(goqu.Ex{"id": cityID}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to mark city refreshed", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("city %s not found", cityID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *CityAdapter) scanCity(row rowScanner) (*entities.City, error) {
	var (
		city        entities.City
		lastRefresh sql.NullTime
		bounds      [4]string
	)
	if err := row.Scan(&city.ID, &city.Name, &lastRefresh, &bounds[0], &bounds[1], &bounds[2], &bounds[3]); err != nil {
		return nil, apperrors.NewInternalError("failed to scan city", err)
	}
	if lastRefresh.Valid {
		t := lastRefresh.Time.UTC()
		city.LastRefreshAt = &t
	}

	var parsed [4]entities.TimeOfDay
	for i, value := range bounds {
		tod, err := entities.ParseTimeOfDay(value)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("city %s has a malformed schedule", city.Name), err)
		}
		parsed[i] = tod
	}
	city.Schedule = entities.WorkingSchedule{
		WeekdayOpen:   parsed[0],
		WeekdayClose:  parsed[1],
		SaturdayOpen:  parsed[2],
		SaturdayClose: parsed[3],
		Location:      a.schedule,
	}
	return &city, nil
}
