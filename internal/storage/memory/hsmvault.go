package memory

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/hsmentry"
)

// HSMVault is a software simulation of the hardware security module the core
// treats as opaque (C4). It keyed by alias like the teacher's signer service
// keeps its key versions, serializing writes per alias while tolerating
// concurrent readers.
type HSMVault struct {
	mu    sync.RWMutex
	keys  map[string]hsmentry.KeypairEntry
	certs map[string]hsmentry.CertificateEntry
}

// NewHSMVault returns an empty in-process HSM vault.
func NewHSMVault() *HSMVault {
	return &HSMVault{
		keys:  make(map[string]hsmentry.KeypairEntry),
		certs: make(map[string]hsmentry.CertificateEntry),
	}
}

func (v *HSMVault) StoreKeypair(alias string, pub *rsa.PublicKey, priv *rsa.PrivateKey, gen, exp time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[alias] = hsmentry.KeypairEntry{
		Alias:             alias,
		PrivateKey:        priv,
		KeyGenerationTime: gen,
		KeyExpiryTime:     exp,
	}
	return nil
}

func (v *HSMVault) StoreCertificate(alias string, chain []*x509.Certificate, priv *rsa.PrivateKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.certs[alias] = hsmentry.CertificateEntry{Alias: alias, Chain: chain, PrivateKey: priv}
	return nil
}

func (v *HSMVault) GetPublicKey(alias string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if entry, ok := v.keys[alias]; ok {
		return &entry.PrivateKey.PublicKey, nil
	}
	if entry, ok := v.certs[alias]; ok {
		if leaf := entry.Leaf(); leaf != nil {
			if pub, ok := leaf.PublicKey.(*rsa.PublicKey); ok {
				return pub, nil
			}
		}
	}
	return nil, fmt.Errorf("hsm: no entry for alias %s", alias)
}

func (v *HSMVault) GetPrivateKey(alias string) (*rsa.PrivateKey, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if entry, ok := v.keys[alias]; ok {
		return entry.PrivateKey, nil
	}
	if entry, ok := v.certs[alias]; ok {
		return entry.PrivateKey, nil
	}
	return nil, fmt.Errorf("hsm: no entry for alias %s", alias)
}

func (v *HSMVault) GetKeypairEntry(alias string) (hsmentry.KeypairEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	entry, ok := v.keys[alias]
	if !ok {
		return hsmentry.KeypairEntry{}, fmt.Errorf("hsm: no keypair entry for alias %s", alias)
	}
	return entry, nil
}

func (v *HSMVault) GetCertificateEntry(alias string) (hsmentry.CertificateEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	entry, ok := v.certs[alias]
	if !ok {
		return hsmentry.CertificateEntry{}, fmt.Errorf("hsm: no certificate entry for alias %s", alias)
	}
	return entry, nil
}
