// Package postgres provides PostgreSQL-backed implementations of the core's
// storage collaborators (AliasIndex, PolicyStore, WrappedKeyStore).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting store methods run
// either standalone or inside a caller-managed transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseStore provides common PostgreSQL operations embedded by the key manager's
// service-specific stores to keep transaction plumbing in one place.
type BaseStore struct {
	db *sql.DB
}

// NewBaseStore wraps a *sql.DB for transaction-aware querying.
func NewBaseStore(db *sql.DB) *BaseStore {
	return &BaseStore{db: db}
}

// DB returns the underlying database connection.
func (s *BaseStore) DB() *sql.DB {
	return s.db
}

// Querier returns the transaction bound to ctx, or the plain db if none is active.
func (s *BaseStore) Querier(ctx context.Context) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// --- Transaction support ---

type txKey struct{}

// TxFromContext extracts a transaction from context, if one was attached by WithTx.
func TxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// ContextWithTx returns a context carrying the given transaction.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// WithTx runs fn inside a single transaction: the alias-index insert and the
// wrapped-key write that must land atomically share the same *sql.Tx via ctx,
// so an alias row is never visible before its material is durable. Vault
// writes happen outside the database and are not part of the transaction.
func (s *BaseStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txCtx := ContextWithTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- Null-type helpers ---

// NullStringToPtr converts sql.NullString to a possibly-empty string, used for
// the nullable ref_id column (absent reference ≙ NULL).
func NullStringToPtr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// RefIDParam converts an absent/present reference id to the NULL-or-value
// parameter Postgres expects for the nullable ref_id column.
func RefIDParam(referenceID string, hasReference bool) sql.NullString {
	if !hasReference {
		return sql.NullString{}
	}
	return sql.NullString{String: referenceID, Valid: true}
}

// Timeout wraps ctx with a bounded deadline for a single store call, so a
// public operation's deadline also bounds its storage I/O.
func Timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
