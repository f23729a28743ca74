package entities

import (
	"time"

	"github.com/pharmacyonduty/backend/pkg/utils"
)

// City is a city whose pharmacies the service can resolve
type City struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	LastRefreshAt *time.Time      `json:"last_refresh_at,omitempty" db:"last_refresh_at"`
	Schedule      WorkingSchedule `json:"working_schedule" db:"-"`
}

// Matches reports whether name refers to this city, ignoring case and diacritics.
func (c *City) Matches(name string) bool {
	return utils.FoldName(c.Name) == utils.FoldName(name)
}

// Status returns the city's ordinary-hours status at the given instant.
func (c *City) Status(at time.Time) CityStatus {
	return c.Schedule.Status(at)
}
