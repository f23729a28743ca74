package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/pharmacyonduty/backend/pkg/utils"
)

// PharmacyKey identifies a pharmacy within a city for deduplication.
type PharmacyKey struct {
	Name  string
	Phone string
}

// NewPharmacyKey folds name and phone into their comparable forms.
func NewPharmacyKey(name, phone string) PharmacyKey {
	return PharmacyKey{Name: utils.FoldName(name), Phone: utils.DigitsOnly(phone)}
}

// Pharmacy is the canonical pharmacy record every source is normalized into
type Pharmacy struct {
	ID        string     `json:"id" db:"id"`
	CityID    string     `json:"city_id" db:"city_id"`
	Name      string     `json:"name" db:"name"`
	Address   string     `json:"address,omitempty" db:"address"`
	District  string     `json:"district" db:"district"`
	Phone     string     `json:"phone,omitempty" db:"phone"`
	Email     string     `json:"email,omitempty" db:"email"`
	Website   string     `json:"website,omitempty" db:"website"`
	Location  Location   `json:"location" db:"-"`
	DutyStart *time.Time `json:"duty_start,omitempty" db:"duty_start"`
	DutyEnd   *time.Time `json:"duty_end,omitempty" db:"duty_end"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`

	// DistanceMeters is filled by proximity queries and never persisted.
	DistanceMeters float64 `json:"-" db:"-"`
}

// Key returns the deduplication key of the pharmacy.
func (p *Pharmacy) Key() PharmacyKey {
	return NewPharmacyKey(p.Name, p.Phone)
}

// Validate checks the record invariants.
func (p *Pharmacy) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("pharmacy name is required")
	}
	if !p.Location.Valid() {
		return errors.New("pharmacy location is out of range")
	}
	switch {
	case p.DutyStart == nil && p.DutyEnd == nil:
		return nil
	case p.DutyStart == nil || p.DutyEnd == nil:
		return errors.New("duty window must have both start and end")
	case !p.DutyEnd.After(*p.DutyStart):
		return errors.New("duty window must end after it starts")
	}
	return nil
}

// OnDutyAt reports whether the duty window contains the instant (inclusive).
// A record without a window is never on duty.
func (p *Pharmacy) OnDutyAt(at time.Time) bool {
	if p.DutyStart == nil || p.DutyEnd == nil {
		return false
	}
	return !at.Before(*p.DutyStart) && !at.After(*p.DutyEnd)
}
