package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
)

// Memo is a bounded read-through memo for idempotent external lookups. The
// in-process LRU tier is authoritative; an optional shared tier lets replicas
// reuse each other's lookups.
type Memo[V any] struct {
	name    string
	local   *lru.Cache[string, memoEntry[V]]
	remote  providers.CacheProvider
	ttl     time.Duration
	now     func() time.Time
	metrics *observability.Metrics
	logger  zerolog.Logger
}

type memoEntry[V any] struct {
	value    V
	storedAt time.Time
}

type memoOptions struct {
	clock   func() time.Time
	ttl     time.Duration
	remote  providers.CacheProvider
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// MemoOption configures a Memo
type MemoOption func(*memoOptions)

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) MemoOption {
	return func(o *memoOptions) { o.clock = clock }
}

// WithTTL expires entries after ttl. Zero keeps them until evicted.
func WithTTL(ttl time.Duration) MemoOption {
	return func(o *memoOptions) { o.ttl = ttl }
}

// WithRemote adds a shared second tier.
func WithRemote(remote providers.CacheProvider) MemoOption {
	return func(o *memoOptions) { o.remote = remote }
}

// WithMetrics records hits and misses.
func WithMetrics(metrics *observability.Metrics) MemoOption {
	return func(o *memoOptions) { o.metrics = metrics }
}

// WithLogger sets the logger used for second tier failures.
func WithLogger(logger zerolog.Logger) MemoOption {
	return func(o *memoOptions) { o.logger = logger }
}

// NewMemo creates a memo holding at most size entries
func NewMemo[V any](name string, size int, opts ...MemoOption) (*Memo[V], error) {
	o := memoOptions{clock: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	local, err := lru.New[string, memoEntry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("memo %s: %w", name, err)
	}

	return &Memo[V]{
		name:    name,
		local:   local,
		remote:  o.remote,
		ttl:     o.ttl,
		now:     o.clock,
		metrics: o.metrics,
		logger:  o.logger.With().Str("memo", name).Logger(),
	}, nil
}

// Get returns the memoized value for key
func (m *Memo[V]) Get(ctx context.Context, key string) (V, bool) {
	if entry, ok := m.local.Get(key); ok {
		if !m.expired(entry) {
			observability.RecordCacheHit(ctx, m.metrics, m.name)
			return entry.value, true
		}
		m.local.Remove(key)
	}

	if value, ok := m.getRemote(ctx, key); ok {
		m.local.Add(key, memoEntry[V]{value: value, storedAt: m.now()})
		observability.RecordCacheHit(ctx, m.metrics, m.name)
		return value, true
	}

	observability.RecordCacheMiss(ctx, m.metrics, m.name)
	var zero V
	return zero, false
}

// Set memoizes value under key
func (m *Memo[V]) Set(ctx context.Context, key string, value V) {
	m.local.Add(key, memoEntry[V]{value: value, storedAt: m.now()})
	if m.remote == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("memo value is not serializable")
		return
	}
	if err := m.remote.Set(ctx, m.remoteKey(key), raw, m.ttl); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("memo second tier write failed")
	}
}

// Purge empties both tiers. Only this memo's keys are removed from the
// shared tier.
func (m *Memo[V]) Purge(ctx context.Context) error {
	m.local.Purge()
	if m.remote == nil {
		return nil
	}
	if err := m.remote.DeletePattern(ctx, m.remoteKey("*")); err != nil {
		return fmt.Errorf("memo %s: purge shared tier: %w", m.name, err)
	}
	return nil
}

// Len returns the number of entries in the in-process tier
func (m *Memo[V]) Len() int {
	return m.local.Len()
}

func (m *Memo[V]) expired(entry memoEntry[V]) bool {
	return m.ttl > 0 && m.now().Sub(entry.storedAt) >= m.ttl
}

func (m *Memo[V]) getRemote(ctx context.Context, key string) (V, bool) {
	var value V
	if m.remote == nil {
		return value, false
	}

	raw, err := m.remote.Get(ctx, m.remoteKey(key))
	if err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("memo second tier read failed")
		return value, false
	}
	if raw == nil {
		return value, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt memo entry")
		if err := m.remote.Delete(ctx, m.remoteKey(key)); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("memo second tier delete failed")
		}
		return value, false
	}
	return value, true
}

func (m *Memo[V]) remoteKey(key string) string {
	return "memo:" + m.name + ":" + key
}
