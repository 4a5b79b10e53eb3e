package keymanager

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
)

// marshalPublicKey encodes pub as a DER SubjectPublicKeyInfo, the wire
// encoding for all vended public-key material.
func marshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

// parsePKCS8RSA decodes PKCS#8 DER bytes and asserts the contained key is RSA.
func parsePKCS8RSA(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("wrapped key is not an RSA private key")
	}
	return priv, nil
}
