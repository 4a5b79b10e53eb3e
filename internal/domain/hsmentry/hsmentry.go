// Package hsmentry defines the opaque key/certificate entries held by the HSM vault.
package hsmentry

import (
	"crypto/rsa"
	"crypto/x509"
	"time"
)

// KeypairEntry is a raw asymmetric keypair held in the vault, addressed by alias.
type KeypairEntry struct {
	Alias             string
	PrivateKey        *rsa.PrivateKey
	KeyGenerationTime time.Time
	KeyExpiryTime     time.Time
}

// CertificateEntry is a keypair bound to an X.509 certificate chain, used for the
// signing/verification path where expiry tracks the certificate rather than policy.
type CertificateEntry struct {
	Alias      string
	Chain      []*x509.Certificate
	PrivateKey *rsa.PrivateKey
}

// Leaf returns the end-entity certificate, or nil if the chain is empty.
func (c CertificateEntry) Leaf() *x509.Certificate {
	if len(c.Chain) == 0 {
		return nil
	}
	return c.Chain[0]
}
