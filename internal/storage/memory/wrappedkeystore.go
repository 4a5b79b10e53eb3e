package memory

import (
	"context"
	"sync"

	"github.com/r3e-network/keymanager/internal/domain/wrappedkey"
)

// WrappedKeyStore is an in-memory implementation of keymanager.WrappedKeyStore.
type WrappedKeyStore struct {
	mu   sync.RWMutex
	rows map[string]wrappedkey.WrappedKey
}

// NewWrappedKeyStore returns an empty in-memory wrapped-key store.
func NewWrappedKeyStore() *WrappedKeyStore {
	return &WrappedKeyStore{rows: make(map[string]wrappedkey.WrappedKey)}
}

func (s *WrappedKeyStore) Get(_ context.Context, alias string) (wrappedkey.WrappedKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wk, ok := s.rows[alias]
	return wk, ok, nil
}

func (s *WrappedKeyStore) Insert(_ context.Context, key wrappedkey.WrappedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key.Alias] = key
	return nil
}
