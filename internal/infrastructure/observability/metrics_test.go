package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, metrics, "POST", "/api/pharmacy-points", 200, 15*time.Millisecond)
		RecordCacheHit(ctx, metrics, "city")
		RecordCacheMiss(ctx, metrics, "travel")
		RecordDistanceFallbacks(ctx, metrics, "on_duty", 2)
		RecordIngestion(ctx, metrics, "ankara", 3, 4)
		RecordRefresh(ctx, metrics, "ankara", errors.New("boom"))
	})
}

func TestRecordersTolerateNilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/health", 200, time.Millisecond)
		RecordDBMetric(ctx, nil, "select", time.Millisecond)
		RecordCacheHit(ctx, nil, "city")
		RecordCacheMiss(ctx, nil, "city")
		RecordDistanceFallbacks(ctx, nil, "open", 1)
		RecordIngestion(ctx, nil, "ankara", 1, 1)
		RecordRefresh(ctx, nil, "ankara", nil)
	})
}
