// Package hsm simulates a hardware security module for local development and
// tests, standing in for the real HSM session that owns master keys in
// production. When configured, the service wires one scope's generator in as
// the resolver's keypair generator, so it generates every keypair the
// resolver mints, master and reference-scoped alike.
package hsm

import (
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

// Session derives a distinct keypair-generation entropy stream per scope from
// a single root secret, mirroring how a real HSM derives per-slot keys from a
// device master secret rather than drawing unrelated entropy per slot. Scopes
// are domain-separated: two scopes never share stream material, and a
// compromised per-scope stream does not expose the root secret. Note that
// crypto/rsa does not promise a deterministic key for a deterministic reader,
// so the derived keys are scope-bound but not reproducible across processes.
type Session struct {
	rootSecret []byte
	bits       int
}

// NewSession returns a Session deriving keys of the given modulus size from
// rootSecret. rootSecret should come from the deployment's own secret store
// (env var, mounted file, KMS-wrapped value); Session never generates or
// persists it.
func NewSession(rootSecret []byte, bits int) *Session {
	if bits <= 0 {
		bits = keymanager.RSAKeySize
	}
	return &Session{rootSecret: rootSecret, bits: bits}
}

// ForScope returns a keymanager.KeypairGenerator bound to scope. Every call
// to GenerateRSA on the returned generator draws the next keypair from that
// scope's HKDF stream, so repeated calls yield fresh material, matching the
// real HSM's "mint a new keypair" semantics.
func (s *Session) ForScope(scope keymanager.Scope) keymanager.KeypairGenerator {
	return &deterministicGenerator{
		reader: hkdf.New(sha256.New, s.rootSecret, nil, []byte(scope.String())),
		bits:   s.bits,
	}
}

// deterministicGenerator implements keymanager.KeypairGenerator by reading
// RSA material off an HKDF expansion stream instead of crypto/rand.
type deterministicGenerator struct {
	mu     sync.Mutex
	reader io.Reader
	bits   int
}

func (g *deterministicGenerator) GenerateRSA() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	priv, err := rsa.GenerateKey(g.reader, g.bits)
	if err != nil {
		return nil, nil, fmt.Errorf("derive simulated hsm keypair: %w", err)
	}
	return &priv.PublicKey, priv, nil
}
