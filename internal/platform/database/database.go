// Package database opens the PostgreSQL pool shared by the alias index,
// policy store, and wrapped-key store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Config carries the connection settings for the key manager's store pool.
// The three stores share one pool: a single resolve fans out into an
// alias-index read, a policy read, and (for reference scopes) a wrapped-key
// read, so MaxOpenConns should allow a few connections per in-flight resolve.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
	pingTimeout  = 5 * time.Second
)

// Open establishes the pool and verifies connectivity. The ping retries with
// backoff: the service is usually scheduled alongside its database, and a
// Postgres that comes up a few seconds late should not crash-loop the key
// manager. ctx bounds the whole retry loop. The returned *sql.DB must be
// closed by the caller.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := pingWithRetry(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB) error {
	var lastErr error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping postgres: %w", ctx.Err())
		case <-time.After(pingBackoff):
		}
	}
	return fmt.Errorf("ping postgres after %d attempts: %w", pingAttempts, lastErr)
}
