package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	"github.com/pharmacyonduty/backend/pkg/config"
	"github.com/pharmacyonduty/backend/pkg/retry"
)

// Client represents a PostgreSQL database client
type Client struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewClient opens a PostgreSQL connection pool, retrying the first ping with exponential backoff
func NewClient(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = retry.DoWithLog(ctx, retry.DefaultConfig(), "PostgreSQL",
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("PostgreSQL connection attempt failed")
		},
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("connected to PostgreSQL")
	return &Client{db: db}, nil
}

// New wraps an already opened database handle
func New(db *sql.DB) *Client {
	return &Client{db: db}
}

// WithMetrics makes the client record query durations
func (c *Client) WithMetrics(metrics *observability.Metrics) *Client {
	c.metrics = metrics
	return c
}

// Observe records the duration of a database operation started at start
func (c *Client) Observe(ctx context.Context, operation string, start time.Time) {
	observability.RecordDBMetric(ctx, c.metrics, operation, time.Since(start))
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
