package keymanager

import (
	"context"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/keyalias"
	"github.com/r3e-network/keymanager/internal/domain/keypolicy"
)

// PolicyStore is an immutable-per-process map from applicationId to its key
// validity policy.
type PolicyStore interface {
	Get(ctx context.Context, applicationID string) (keypolicy.KeyPolicy, bool, error)
}

// ExpiryPlanner computes a new key's expiry given either a policy's
// validity window or a certificate's notAfter, truncated against whatever
// window in existingAliases it would otherwise overlap.
type ExpiryPlanner struct {
	Policies PolicyStore
}

// NewExpiryPlanner constructs a planner backed by the given policy store.
func NewExpiryPlanner(policies PolicyStore) *ExpiryPlanner {
	return &ExpiryPlanner{Policies: policies}
}

// PlanFromPolicy computes the expiry for a freshly minted key at generationTime,
// sourcing the candidate window length from the application's policy.
func (p *ExpiryPlanner) PlanFromPolicy(ctx context.Context, scope Scope, generationTime time.Time, existing []keyalias.KeyAlias) (time.Time, error) {
	policy, ok, err := p.Policies.Get(ctx, scope.ApplicationID)
	if err != nil {
		return time.Time{}, NewError(StoreFailure, scope, "plan", err)
	}
	if !ok {
		return time.Time{}, NewError(InvalidApplication, scope, "plan", nil)
	}
	candidate := generationTime.Add(policy.ValidityWindow())
	return p.truncate(scope, generationTime, candidate, existing)
}

// PlanFromCertificate computes the expiry for a certificate-bound key, where the
// candidate starts as the certificate's notAfter rather than a policy window.
func (p *ExpiryPlanner) PlanFromCertificate(scope Scope, generationTime, notAfter time.Time, existing []keyalias.KeyAlias) (time.Time, error) {
	return p.truncate(scope, generationTime, notAfter, existing)
}

// truncate walks existing aliases (already sorted ascending by generation time)
// and shortens candidate to end just before the first window it would otherwise
// overlap, so windows for a scope never overlap. A non-positive resulting
// window is POLICY_CONFLICT.
func (p *ExpiryPlanner) truncate(scope Scope, generationTime, candidate time.Time, existing []keyalias.KeyAlias) (time.Time, error) {
	for _, a := range existing {
		if a.Overlaps(generationTime, candidate) {
			candidate = a.KeyGenerationTime.Add(-time.Second)
			break
		}
	}
	if !candidate.After(generationTime) {
		return time.Time{}, NewError(PolicyConflict, scope, "plan", nil)
	}
	return candidate, nil
}
