package entities

import (
	"fmt"
	"strings"
	"time"
)

// CityStatus is the ordinary-hours state of a city at an instant
type CityStatus string

const (
	StatusOpen   CityStatus = "open"
	StatusClosed CityStatus = "closed"
)

// TimeOfDay is an offset from midnight.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", value)
}

// TimeOfDayOf extracts the wall-clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// String formats the value as "15:04:05".
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}

// MarshalText implements encoding.TextMarshaler
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// WorkingSchedule defines ordinary business hours for the pharmacies of a city.
// Times are wall-clock values in Location (UTC when nil). Sunday is closed.
type WorkingSchedule struct {
	WeekdayOpen   TimeOfDay      `json:"weekday_open"`
	WeekdayClose  TimeOfDay      `json:"weekday_close"`
	SaturdayOpen  TimeOfDay      `json:"saturday_open"`
	SaturdayClose TimeOfDay      `json:"saturday_close"`
	Location      *time.Location `json:"-"`
}

// Validate checks that each day type opens before it closes.
func (s WorkingSchedule) Validate() error {
	if s.WeekdayOpen >= s.WeekdayClose {
		return fmt.Errorf("weekday open %s must be before close %s", s.WeekdayOpen, s.WeekdayClose)
	}
	if s.SaturdayOpen >= s.SaturdayClose {
		return fmt.Errorf("saturday open %s must be before close %s", s.SaturdayOpen, s.SaturdayClose)
	}
	return nil
}

// Status reports whether the city is in ordinary hours at the given instant.
// Both window ends are exclusive: at exactly the open or close time the city is closed.
func (s WorkingSchedule) Status(at time.Time) CityStatus {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	tod := TimeOfDayOf(local)

	switch day := local.Weekday(); {
	case day >= time.Monday && day <= time.Friday:
		if s.WeekdayOpen < tod && tod < s.WeekdayClose {
			return StatusOpen
		}
	case day == time.Saturday:
		if s.SaturdayOpen < tod && tod < s.SaturdayClose {
			return StatusOpen
		}
	}
	return StatusClosed
}
