package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/keypolicy"
)

// PolicyStore is the Postgres-backed policy lookup over the key_policy table.
type PolicyStore struct {
	*BaseStore
}

// NewPolicyStore wraps db for the key_policy table.
func NewPolicyStore(db *sql.DB) *PolicyStore {
	return &PolicyStore{BaseStore: NewBaseStore(db)}
}

// Get returns the policy for applicationID, or ok=false if none is configured.
func (s *PolicyStore) Get(ctx context.Context, applicationID string) (keypolicy.KeyPolicy, bool, error) {
	row := s.Querier(ctx).QueryRowContext(ctx, `
		SELECT app_id, validity_days, created_by, created_at, updated_by, updated_at
		FROM key_policy
		WHERE app_id = $1
	`, applicationID)

	var p keypolicy.KeyPolicy
	err := row.Scan(&p.ApplicationID, &p.ValidityDays, &p.CreatedBy, &p.CreatedAt, &p.UpdatedBy, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return keypolicy.KeyPolicy{}, false, nil
	}
	if err != nil {
		return keypolicy.KeyPolicy{}, false, fmt.Errorf("get policy: %w", err)
	}
	return p, true, nil
}

// Put registers or replaces a policy row. Only the admin CLI calls this; the
// resolver itself treats policy as immutable for the process lifetime.
func (s *PolicyStore) Put(ctx context.Context, policy keypolicy.KeyPolicy) error {
	now := time.Now().UTC()
	stamp := Stamp(ctx, now)

	_, err := s.Querier(ctx).ExecContext(ctx, `
		INSERT INTO key_policy (app_id, validity_days, created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (app_id) DO UPDATE
		SET validity_days = EXCLUDED.validity_days,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = EXCLUDED.updated_at
	`, policy.ApplicationID, policy.ValidityDays,
		stamp.CreatedBy, stamp.CreatedAt, stamp.UpdatedBy, stamp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put policy: %w", err)
	}
	return nil
}
