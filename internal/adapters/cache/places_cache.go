package cache

import (
	"context"
	"strconv"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

// CachedPlaces memoizes nearby pharmacy lookups per origin and limit.
// Errors and empty answers are not memoized.
type CachedPlaces struct {
	inner providers.PlacesDirectory
	memo  *Memo[[]providers.Place]
}

// NewCachedPlaces wraps a places directory with a memo
func NewCachedPlaces(inner providers.PlacesDirectory, memo *Memo[[]providers.Place]) *CachedPlaces {
	return &CachedPlaces{inner: inner, memo: memo}
}

// Nearby implements providers.PlacesDirectory
func (c *CachedPlaces) Nearby(ctx context.Context, origin entities.Location, limit int) ([]providers.Place, error) {
	key := origin.String() + "|" + strconv.Itoa(limit)
	if places, ok := c.memo.Get(ctx, key); ok {
		return places, nil
	}

	places, err := c.inner.Nearby(ctx, origin, limit)
	if err != nil {
		return nil, err
	}
	if len(places) > 0 {
		c.memo.Set(ctx, key, places)
	}
	return places, nil
}
