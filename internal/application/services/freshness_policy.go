package services

import (
	"time"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
)

// DataFreshness tells whether a city's stored duty roster can be served as is
type DataFreshness string

const (
	FreshnessNew DataFreshness = "new"
	FreshnessOld DataFreshness = "old"
)

// DefaultStaleAfter is how long a roster stored during closed hours stays valid.
const DefaultStaleAfter = 6 * time.Hour

// FreshnessPolicy decides whether a city's duty roster must be scraped again.
type FreshnessPolicy struct {
	StaleAfter time.Duration
}

// NewFreshnessPolicy creates a policy; a non-positive staleAfter uses the default.
func NewFreshnessPolicy(staleAfter time.Duration) FreshnessPolicy {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return FreshnessPolicy{StaleAfter: staleAfter}
}

// Evaluate returns FreshnessNew while the city is open, since duty data is not
// used then. While closed the roster is old when it was never refreshed, when
// the last refresh happened during open hours (the previous shift), or when it
// is older than StaleAfter.
func (p FreshnessPolicy) Evaluate(city *entities.City, at time.Time) DataFreshness {
	if city.Status(at) == entities.StatusOpen {
		return FreshnessNew
	}
	if city.LastRefreshAt == nil {
		return FreshnessOld
	}

	last := *city.LastRefreshAt
	if city.Status(last) == entities.StatusOpen {
		return FreshnessOld
	}
	if at.Sub(last) > p.StaleAfter {
		return FreshnessOld
	}
	return FreshnessNew
}
