package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/wrappedkey"
)

// WrappedKeyStore is the Postgres-backed wrapped-key store over the key_store table.
type WrappedKeyStore struct {
	*BaseStore
}

// NewWrappedKeyStore wraps db for the key_store table.
func NewWrappedKeyStore(db *sql.DB) *WrappedKeyStore {
	return &WrappedKeyStore{BaseStore: NewBaseStore(db)}
}

// Get returns the wrapped key for alias, or ok=false if absent.
func (s *WrappedKeyStore) Get(ctx context.Context, alias string) (wrappedkey.WrappedKey, bool, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT alias, master_alias, public_key, private_key, created_by, created_at, updated_by, updated_at
		FROM key_store
		WHERE alias = $1
	`, alias)

	var wk wrappedkey.WrappedKey
	err := row.Scan(&wk.Alias, &wk.MasterAlias, &wk.PublicKey, &wk.PrivateKey,
		&wk.CreatedBy, &wk.CreatedAt, &wk.UpdatedBy, &wk.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return wrappedkey.WrappedKey{}, false, nil
	}
	if err != nil {
		return wrappedkey.WrappedKey{}, false, fmt.Errorf("get wrapped key: %w", err)
	}
	return wk, true, nil
}

// Insert durably stores key. Rows are append-only; no update is ever issued.
// ctx carries the mint transaction when one is active.
func (s *WrappedKeyStore) Insert(ctx context.Context, key wrappedkey.WrappedKey) error {
	now := time.Now().UTC()
	stamp := Stamp(ctx, now)

	_, err := s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO key_store (alias, master_alias, public_key, private_key, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, key.Alias, key.MasterAlias, key.PublicKey, key.PrivateKey,
		stamp.CreatedBy, stamp.CreatedAt, stamp.UpdatedBy, stamp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wrapped key: %w", err)
	}
	return nil
}
