package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingRetries = 5

func NewPool(ctx context.Context, dbURL string, log *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForDB(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// waitForDB pings with a linear backoff so the api can start alongside
// its database container.
func waitForDB(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	var err error

	for attempt := 1; attempt <= pingRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		wait := time.Duration(attempt) * 200 * time.Millisecond
		log.WarnContext(ctx, "database ping failed, retrying",
			"attempt", attempt,
			"max_attempts", pingRetries,
			"wait", wait,
			"err", err,
		)

		if attempt == pingRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return err
}
