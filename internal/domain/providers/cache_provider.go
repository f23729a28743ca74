package providers

import (
	"context"
	"time"
)

// CacheProvider is a shared byte-oriented cache. A miss is reported as
// (nil, nil) so callers can tell it apart from a transport failure.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; ttl <= 0 keeps it until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) error
}
