package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/keyalias"
	"github.com/r3e-network/keymanager/internal/keymanager"
)

// AliasIndex is the Postgres-backed selection index over the key_alias table.
type AliasIndex struct {
	*BaseStore
}

// NewAliasIndex wraps db for the key_alias table.
func NewAliasIndex(db *sql.DB) *AliasIndex {
	return &AliasIndex{BaseStore: NewBaseStore(db)}
}

// ListByScope returns all rows for the exact (app, ref) pair, ordered by
// generation time ascending. An absent reference matches ref_id IS NULL.
func (s *AliasIndex) ListByScope(ctx context.Context, scope keymanager.Scope) ([]keyalias.KeyAlias, error) {
	ref := RefIDParam(scope.ReferenceID, scope.HasReference)
	var query string
	var args []any
	if scope.HasReference {
		query = `
			SELECT alias, app_id, ref_id, gen_ts, exp_ts, created_by, created_at, updated_by, updated_at
			FROM key_alias
			WHERE app_id = $1 AND ref_id = $2
			ORDER BY gen_ts ASC
		`
		args = []any{scope.ApplicationID, ref.String}
	} else {
		query = `
			SELECT alias, app_id, ref_id, gen_ts, exp_ts, created_by, created_at, updated_by, updated_at
			FROM key_alias
			WHERE app_id = $1 AND ref_id IS NULL
			ORDER BY gen_ts ASC
		`
		args = []any{scope.ApplicationID}
	}

	rows, err := s.Querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []keyalias.KeyAlias
	for rows.Next() {
		var a keyalias.KeyAlias
		var refID sql.NullString
		if err := rows.Scan(&a.Alias, &a.ApplicationID, &refID, &a.KeyGenerationTime, &a.KeyExpiryTime,
			&a.CreatedBy, &a.CreatedAt, &a.UpdatedBy, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		a.ReferenceID = NullStringToPtr(refID)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Insert durably appends alias. During a reference mint the resolver calls
// this inside BaseStore.WithTx, so ctx carries the transaction and the row is
// not visible before its backing wrapped-key material is durable.
func (s *AliasIndex) Insert(ctx context.Context, alias keyalias.KeyAlias) error {
	now := time.Now().UTC()
	stamp := Stamp(ctx, now)
	ref := RefIDParam(alias.ReferenceID, alias.ReferenceID != "")

	_, err := s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO key_alias (alias, app_id, ref_id, gen_ts, exp_ts, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, alias.Alias, alias.ApplicationID, ref, alias.KeyGenerationTime, alias.KeyExpiryTime,
		stamp.CreatedBy, stamp.CreatedAt, stamp.UpdatedBy, stamp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}
