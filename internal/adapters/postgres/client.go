package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"creditgate/internal/adapters/config"
	"creditgate/pkg/errors"
)

// Client owns the postgres connection pool backing every repository.
type Client struct {
	db *sqlx.DB
}

// NewClient opens the pool and verifies connectivity before returning.
func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns / 2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return &Client{db: db}, nil
}

// DB exposes the pool for repository construction and seed runs.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Health reports pool connectivity for the readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
