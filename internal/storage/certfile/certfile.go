// Package certfile loads the signing certificate chain and its private key
// from PEM files on disk, implementing the certificate source the resolver
// consumes for certificate-bound mints.
package certfile

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

// Source serves one configured chain and key for every scope. Files are read
// once at construction; rotation means constructing a new Source.
type Source struct {
	chain []*x509.Certificate
	priv  *rsa.PrivateKey
}

// New reads certPath (one or more CERTIFICATE blocks, leaf first) and keyPath
// (a PKCS#8 or PKCS#1 RSA PRIVATE KEY block).
func New(certPath, keyPath string) (*Source, error) {
	chain, err := loadChain(certPath)
	if err != nil {
		return nil, err
	}
	priv, err := loadPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return &Source{chain: chain, priv: priv}, nil
}

// Load implements keymanager.CertificateSource.
func (s *Source) Load(scope keymanager.Scope) ([]*x509.Certificate, *rsa.PrivateKey, error) {
	return s.chain, s.priv, nil
}

func loadChain(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate file: %w", err)
	}

	var chain []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate in %s: %w", path, err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE blocks in %s", path)
	}
	return chain, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key in %s is not RSA", path)
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key in %s: %w", path, err)
	}
	return rsaKey, nil
}
