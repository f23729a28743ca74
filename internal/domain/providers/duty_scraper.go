package providers

import (
	"context"
	"time"
)

// RawEntry is one pharmacy as published by an external source. Fields are
// kept as text; a source only fills the ones it actually publishes.
type RawEntry struct {
	Name      string
	Address   string
	District  string
	Phone     string
	MapURL    string
	Latitude  string
	Longitude string
	// DutyPeriod is the published "DD.MM.YYYY HH:MM - DD.MM.YYYY HH:MM" text.
	DutyPeriod string
}

// RawPayload is the output of one scrape of one city.
type RawPayload struct {
	Source    string
	City      string
	FetchedAt time.Time
	Entries   []RawEntry
}

// DutyScraper fetches the current duty roster of a city from one external source.
type DutyScraper interface {
	Source() string
	Fetch(ctx context.Context, city string) (*RawPayload, error)
}
