package keymanager

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"
)

// AsymmetricCrypto is the general-purpose RSA primitive collaborator. The core
// never touches crypto/rsa directly; it calls through this seam so callers can
// substitute HSM-backed or mocked implementations.
type AsymmetricCrypto interface {
	PrivateEncrypt(priv *rsa.PrivateKey, plaintext []byte) ([]byte, error)
	PrivateDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error)
	PublicEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error)
	PublicDecrypt(pub *rsa.PublicKey, ciphertext []byte) ([]byte, error)
}

// KeypairGenerator creates fresh RSA keypairs for minting.
type KeypairGenerator interface {
	GenerateRSA() (*rsa.PublicKey, *rsa.PrivateKey, error)
}

// CertificateSource loads a certificate chain and matching private key for the
// signing path, keyed by scope. The source decides how chains are provisioned
// (file, secret manager, CA integration); the core only consumes the result.
type CertificateSource interface {
	Load(scope Scope) (chain []*x509.Certificate, priv *rsa.PrivateKey, err error)
}

// Clock returns the current instant. Injected so certificate validity checks are
// deterministically testable against fixed timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RSAKeySize is the modulus size used for all freshly generated keypairs.
const RSAKeySize = 2048

// rsaKeypairGenerator is the default KeypairGenerator using crypto/rand and crypto/rsa.
type rsaKeypairGenerator struct{}

// NewKeypairGenerator returns the default crypto/rsa-backed generator.
func NewKeypairGenerator() KeypairGenerator {
	return rsaKeypairGenerator{}
}

func (rsaKeypairGenerator) GenerateRSA() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa keypair: %w", err)
	}
	return &priv.PublicKey, priv, nil
}

// NewAsymmetricCrypto returns the default crypto/rsa-backed primitive collaborator.
func NewAsymmetricCrypto() AsymmetricCrypto {
	return rsaCrypto{}
}

type rsaCrypto struct{}

func (rsaCrypto) PrivateEncrypt(priv *rsa.PrivateKey, plaintext []byte) ([]byte, error) {
	return rsaPrivateEncrypt(priv, plaintext)
}

func (rsaCrypto) PrivateDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsaOAEPDecrypt(priv, ciphertext)
}

func (rsaCrypto) PublicEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return rsaOAEPEncrypt(pub, plaintext)
}

func (rsaCrypto) PublicDecrypt(pub *rsa.PublicKey, ciphertext []byte) ([]byte, error) {
	return rsaPublicDecrypt(pub, ciphertext)
}
