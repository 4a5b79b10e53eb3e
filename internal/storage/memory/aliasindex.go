// Package memory provides in-process store implementations used for tests and
// for running the service without a configured Postgres backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/r3e-network/keymanager/internal/domain/keyalias"
	"github.com/r3e-network/keymanager/internal/keymanager"
)

// AliasIndex is an in-memory implementation of keymanager.AliasIndex.
type AliasIndex struct {
	mu   sync.Mutex
	rows []keyalias.KeyAlias
}

// NewAliasIndex returns an empty in-memory alias index.
func NewAliasIndex() *AliasIndex {
	return &AliasIndex{}
}

func (s *AliasIndex) ListByScope(_ context.Context, scope keymanager.Scope) ([]keyalias.KeyAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []keyalias.KeyAlias
	for _, a := range s.rows {
		if a.ApplicationID != scope.ApplicationID {
			continue
		}
		if scope.HasReference {
			if a.ReferenceID == scope.ReferenceID {
				matched = append(matched, a)
			}
		} else if a.ReferenceID == "" {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].KeyGenerationTime.Before(matched[j].KeyGenerationTime)
	})
	return matched, nil
}

func (s *AliasIndex) Insert(_ context.Context, alias keyalias.KeyAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, alias)
	return nil
}
