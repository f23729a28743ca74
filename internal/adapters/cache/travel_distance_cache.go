package cache

import (
	"context"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

// CachedTravelDistances memoizes successful route rows per origin and
// destination pair and asks the wrapped provider only for the missing ones,
// still in a single batch.
type CachedTravelDistances struct {
	inner providers.TravelDistanceProvider
	memo  *Memo[providers.TravelRow]
}

// NewCachedTravelDistances wraps a travel distance provider with a memo
func NewCachedTravelDistances(inner providers.TravelDistanceProvider, memo *Memo[providers.TravelRow]) *CachedTravelDistances {
	return &CachedTravelDistances{inner: inner, memo: memo}
}

// TravelDistances implements providers.TravelDistanceProvider
func (c *CachedTravelDistances) TravelDistances(ctx context.Context, origin entities.Location, destinations []entities.Location) ([]providers.TravelRow, error) {
	rows := make([]providers.TravelRow, len(destinations))
	var missing []int
	for i, dest := range destinations {
		if row, ok := c.memo.Get(ctx, pairKey(origin, dest)); ok {
			rows[i] = row
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return rows, nil
	}

	batch := make([]entities.Location, len(missing))
	for j, i := range missing {
		batch[j] = destinations[i]
	}
	fetched, err := c.inner.TravelDistances(ctx, origin, batch)
	if err != nil {
		return nil, err
	}

	for j, i := range missing {
		if j >= len(fetched) {
			break
		}
		rows[i] = fetched[j]
		// Failed rows are not memoized; the next request may get a route.
		if fetched[j].OK {
			c.memo.Set(ctx, pairKey(origin, destinations[i]), fetched[j])
		}
	}
	return rows, nil
}

func pairKey(origin, destination entities.Location) string {
	return origin.String() + "|" + destination.String()
}
