package certfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

func writeFixture(t *testing.T, pkcs8 bool) (certPath, keyPath string, priv *rsa.PrivateKey) {
	t.Helper()
	dir := t.TempDir()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "keymanager signing"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))

	var keyBlock *pem.Block
	if pkcs8 {
		keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
		require.NoError(t, err)
		keyBlock = &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}
	} else {
		keyBlock = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	}
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(keyBlock), 0o600))
	return certPath, keyPath, priv
}

func TestLoadPKCS8(t *testing.T) {
	certPath, keyPath, priv := writeFixture(t, true)

	src, err := New(certPath, keyPath)
	require.NoError(t, err)

	chain, key, err := src.Load(keymanager.NewScope("KERNEL", ""))
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, priv.D, key.D)
}

func TestLoadPKCS1(t *testing.T) {
	certPath, keyPath, _ := writeFixture(t, false)

	_, err := New(certPath, keyPath)
	require.NoError(t, err)
}

func TestLoadRejectsEmptyChain(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(certPath, []byte("not pem"), 0o600))

	_, keyPath, _ := writeFixture(t, true)
	_, err := New(certPath, keyPath)
	assert.Error(t, err)
}
