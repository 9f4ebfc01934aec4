package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Query is a fully parameterized warehouse query. SQL uses "?" placeholders;
// values only ever travel as bind arguments.
type Query struct {
	SQL  string
	Args []interface{}
}

// Row is one daily metrics record for an application.
type Row struct {
	AppID        string    `db:"app_id" json:"app_id"`
	MetricDate   time.Time `db:"metric_date" json:"metric_date"`
	Channel      string    `db:"channel" json:"channel"`
	Sessions     int64     `db:"sessions" json:"sessions"`
	Conversions  int64     `db:"conversions" json:"conversions"`
	RevenueCents int64     `db:"revenue_cents" json:"revenue_cents"`
}

// Client executes parameterized queries against the analytical warehouse.
// Calls carry a fixed upper bound; exceeding it or any other failure is an
// upstream error for the gateway.
type Client struct {
	db      *sqlx.DB
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(db *sqlx.DB, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		db:      db,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute runs the query and scans all rows. The call is cancelled when ctx
// is cancelled or the configured timeout elapses, whichever comes first.
func (c *Client) Execute(ctx context.Context, q Query) ([]Row, error) {
	if q.SQL == "" {
		return nil, errors.New("empty warehouse query")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rows := []Row{}
	err := c.db.SelectContext(ctx, &rows, c.db.Rebind(q.SQL), q.Args...)
	if err != nil {
		c.logger.Error("warehouse query failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	c.logger.Debug("warehouse query completed",
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())

	return rows, nil
}

// Ping verifies warehouse connectivity for health checks.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.db.PingContext(ctx)
}
