package normalizer

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/pkg/utils"
)

const dutyPeriodLayout = "02.01.2006 15:04"

// NameFunc returns the display name and district for an entry.
type NameFunc func(entry providers.RawEntry) (name, district string)

// CoordinateFunc extracts the position of an entry.
type CoordinateFunc func(entry providers.RawEntry) (entities.Location, error)

// DutyWindowFunc derives the duty window of an entry scraped at fetchedAt.
type DutyWindowFunc func(entry providers.RawEntry, fetchedAt time.Time) (start, end time.Time, err error)

// Convention is how one source publishes its roster.
type Convention struct {
	Name        NameFunc
	Phone       func(raw string) string
	Coordinates CoordinateFunc
	DutyWindow  DutyWindowFunc
}

func (c Convention) apply(entry providers.RawEntry, fetchedAt time.Time) (*entities.Pharmacy, error) {
	name, district := strings.TrimSpace(entry.Name), strings.TrimSpace(entry.District)
	if c.Name != nil {
		name, district = c.Name(entry)
	}
	if isBlank(name) {
		return nil, errors.New("missing name")
	}

	phone := cleanText(entry.Phone)
	if c.Phone != nil {
		phone = c.Phone(phone)
	}

	location, err := c.Coordinates(entry)
	if err != nil {
		return nil, fmt.Errorf("coordinates: %w", err)
	}

	record := &entities.Pharmacy{
		Name:     name,
		Address:  cleanText(entry.Address),
		District: cleanText(district),
		Phone:    phone,
		Location: location,
	}

	if c.DutyWindow != nil {
		start, end, err := c.DutyWindow(entry, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("duty window: %w", err)
		}
		start, end = start.UTC(), end.UTC()
		record.DutyStart, record.DutyEnd = &start, &end
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// EskisehirConvention reads "<Name> - <District>" titles, Google Maps links
// and published duty periods.
func EskisehirConvention(loc *time.Location) Convention {
	return Convention{
		Name: func(entry providers.RawEntry) (string, string) {
			title := strings.TrimSpace(entry.Name)
			fields := strings.Fields(title)
			district := ""
			if len(fields) > 0 {
				district = fields[len(fields)-1]
			}
			name, _, _ := strings.Cut(title, "-")
			return strings.TrimSpace(name), district
		},
		Coordinates: func(entry providers.RawEntry) (entities.Location, error) {
			return CoordinatesFromGoogleMapsURL(entry.MapURL)
		},
		DutyWindow: func(entry providers.RawEntry, _ time.Time) (time.Time, time.Time, error) {
			return ParseDutyPeriod(entry.DutyPeriod, loc)
		},
	}
}

// IstanbulConvention reads city map links and follows the nightly shift.
func IstanbulConvention(loc *time.Location) Convention {
	return Convention{
		Phone: func(raw string) string {
			return strings.ReplaceAll(raw, " ", "")
		},
		Coordinates: func(entry providers.RawEntry) (entities.Location, error) {
			return CoordinatesFromCityMapURL(entry.MapURL)
		},
		DutyWindow: nightlyWindow(loc),
	}
}

// AnkaraConvention reads explicit coordinates, upper-case names without the
// "Eczanesi" suffix, and follows the nightly shift.
func AnkaraConvention(loc *time.Location) Convention {
	return Convention{
		Name: func(entry providers.RawEntry) (string, string) {
			name := cleanText(entry.Name)
			if name == "" {
				return "", ""
			}
			return utils.TurkishTitle(name) + " Eczanesi", utils.TurkishTitle(cleanText(entry.District))
		},
		Coordinates: func(entry providers.RawEntry) (entities.Location, error) {
			return parseLocation(entry.Latitude, entry.Longitude)
		},
		DutyWindow: nightlyWindow(loc),
	}
}

func nightlyWindow(loc *time.Location) DutyWindowFunc {
	return func(_ providers.RawEntry, fetchedAt time.Time) (time.Time, time.Time, error) {
		if fetchedAt.IsZero() {
			return time.Time{}, time.Time{}, errors.New("payload has no fetch time")
		}
		start, end := NightlyShift(fetchedAt, loc)
		return start, end, nil
	}
}

// NightlyShift returns the duty shift covering at. Shifts run 19:00 to 09:00
// the next morning local time; Sunday's runs from 09:00 to Monday 09:00.
// Before 09:00 the previous day's shift is still running.
func NightlyShift(at time.Time, loc *time.Location) (time.Time, time.Time) {
	local := at.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	if local.Hour() < 9 {
		day = day.AddDate(0, 0, -1)
	}

	startHour := 19
	if day.Weekday() == time.Sunday {
		startHour = 9
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
	next := day.AddDate(0, 0, 1)
	end := time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// ParseDutyPeriod parses "DD.MM.YYYY HH:MM - DD.MM.YYYY HH:MM" in loc.
func ParseDutyPeriod(text string, loc *time.Location) (time.Time, time.Time, error) {
	fields := strings.Fields(text)
	if len(fields) != 5 || fields[2] != "-" {
		return time.Time{}, time.Time{}, fmt.Errorf("unrecognized duty period %q", text)
	}
	start, err := time.ParseInLocation(dutyPeriodLayout, fields[0]+" "+fields[1], loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation(dutyPeriodLayout, fields[3]+" "+fields[4], loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start.UTC(), end.UTC(), nil
}

// CoordinatesFromGoogleMapsURL reads the trailing "=lat,lng" of a maps link.
func CoordinatesFromGoogleMapsURL(raw string) (entities.Location, error) {
	idx := strings.LastIndex(raw, "=")
	if idx < 0 {
		return entities.Location{}, fmt.Errorf("no coordinates in %q", raw)
	}
	lat, lng, ok := strings.Cut(raw[idx+1:], ",")
	if !ok {
		return entities.Location{}, fmt.Errorf("no coordinates in %q", raw)
	}
	return parseLocation(lat, lng)
}

// CoordinatesFromCityMapURL reads the lat and lon query parameters.
func CoordinatesFromCityMapURL(raw string) (entities.Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return entities.Location{}, err
	}
	q := u.Query()
	return parseLocation(q.Get("lat"), q.Get("lon"))
}

func parseLocation(lat, lng string) (entities.Location, error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" || lng == "" {
		return entities.Location{}, errors.New("missing latitude or longitude")
	}
	latVal, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return entities.Location{}, fmt.Errorf("latitude: %w", err)
	}
	lngVal, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return entities.Location{}, fmt.Errorf("longitude: %w", err)
	}
	location := entities.Location{Latitude: latVal, Longitude: lngVal}
	if !location.Valid() {
		return entities.Location{}, fmt.Errorf("coordinates out of range: %s", location)
	}
	return location, nil
}

// cleanText trims and drops the "N/A" placeholder sources use for missing fields.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return ""
	}
	return s
}

func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "N/A")
}
