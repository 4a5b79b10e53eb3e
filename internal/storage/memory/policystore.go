package memory

import (
	"context"
	"sync"

	"github.com/r3e-network/keymanager/internal/domain/keypolicy"
)

// PolicyStore is an in-memory implementation of keymanager.PolicyStore.
type PolicyStore struct {
	mu   sync.RWMutex
	rows map[string]keypolicy.KeyPolicy
}

// NewPolicyStore returns an empty in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{rows: make(map[string]keypolicy.KeyPolicy)}
}

func (s *PolicyStore) Get(_ context.Context, applicationID string) (keypolicy.KeyPolicy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[applicationID]
	return p, ok, nil
}

// Put registers or replaces a policy. Used by wiring and tests; the core
// itself treats policy as immutable for the process lifetime.
func (s *PolicyStore) Put(policy keypolicy.KeyPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[policy.ApplicationID] = policy
}
