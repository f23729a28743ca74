package entities

import (
	"time"

	"github.com/google/uuid"
)

// DutyRosterEvent announces that a city's duty roster was refreshed
type DutyRosterEvent struct {
	ID          string    `json:"id"`
	City        string    `json:"city"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	Skipped     int       `json:"skipped"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// NewDutyRosterEvent creates a new duty roster event
func NewDutyRosterEvent(city string, inserted, updated, skipped int, refreshedAt time.Time) *DutyRosterEvent {
	return &DutyRosterEvent{
		ID:          uuid.NewString(),
		City:        city,
		Inserted:    inserted,
		Updated:     updated,
		Skipped:     skipped,
		RefreshedAt: refreshedAt,
	}
}
