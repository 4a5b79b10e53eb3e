package memory

import (
	"crypto/rsa"
	"crypto/x509"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

// StaticCertificateSource returns the same chain and private key for every
// scope. It stands in for the real certificate-file/secret-manager collaborator
// the core treats as external.
type StaticCertificateSource struct {
	Chain      []*x509.Certificate
	PrivateKey *rsa.PrivateKey
}

func (s StaticCertificateSource) Load(scope keymanager.Scope) ([]*x509.Certificate, *rsa.PrivateKey, error) {
	return s.Chain, s.PrivateKey, nil
}
