package keymanager

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"math/big"
)

// oaepLabel is the fixed OAEP label used for wrapping private key material under
// a master public key. A constant label is sufficient: the ciphertext is never
// shared across applications and carries no attacker-controlled context to bind.
var oaepLabel = []byte("keymanager/wrap")

func rsaOAEPEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("nil public key")
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, oaepLabel)
}

func rsaOAEPDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("nil private key")
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, oaepLabel)
}

// rsaPrivateEncrypt implements the legacy "encrypt with the private key"
// primitive the sign/encrypt path is built on: PKCS#1 v1.5 type-1 (signature)
// padding followed by raw modular exponentiation with the private exponent.
// crypto/rsa deliberately does not expose this operation (it offers SignPKCS1v15,
// which hashes first); the core needs the unhashed variant to round-trip with
// rsaPublicDecrypt below, so it is implemented directly against math/big.
func rsaPrivateEncrypt(priv *rsa.PrivateKey, plaintext []byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("nil private key")
	}
	k := priv.Size()
	padded, err := pkcs1PadType1(plaintext, k)
	if err != nil {
		return nil, err
	}
	m := new(big.Int).SetBytes(padded)
	n := priv.N
	if m.Cmp(n) >= 0 {
		return nil, errors.New("message representative out of range")
	}
	c := new(big.Int).Exp(m, priv.D, n)
	return leftPad(c.Bytes(), k), nil
}

// rsaPublicDecrypt is the counterpart of rsaPrivateEncrypt: raw modular
// exponentiation with the public exponent followed by PKCS#1 v1.5 type-1 unpadding.
func rsaPublicDecrypt(pub *rsa.PublicKey, ciphertext []byte) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("nil public key")
	}
	k := (pub.N.BitLen() + 7) / 8
	if len(ciphertext) != k {
		return nil, errors.New("ciphertext length mismatch")
	}
	c := new(big.Int).SetBytes(ciphertext)
	n := pub.N
	if c.Cmp(n) >= 0 {
		return nil, errors.New("ciphertext representative out of range")
	}
	e := big.NewInt(int64(pub.E))
	m := new(big.Int).Exp(c, e, n)
	return pkcs1UnpadType1(leftPad(m.Bytes(), k))
}

// pkcs1PadType1 builds 0x00 0x01 FF..FF 0x00 || data, total length k bytes.
func pkcs1PadType1(data []byte, k int) ([]byte, error) {
	if len(data) > k-11 {
		return nil, errors.New("data too long for key size")
	}
	padded := make([]byte, k)
	padded[1] = 0x01
	padLen := k - len(data) - 3
	for i := 0; i < padLen; i++ {
		padded[2+i] = 0xFF
	}
	padded[2+padLen] = 0x00
	copy(padded[3+padLen:], data)
	return padded, nil
}

func pkcs1UnpadType1(padded []byte) ([]byte, error) {
	if len(padded) < 11 || padded[0] != 0x00 || padded[1] != 0x01 {
		return nil, errors.New("invalid pkcs1 type-1 padding")
	}
	i := 2
	for i < len(padded) && padded[i] == 0xFF {
		i++
	}
	if i >= len(padded) || padded[i] != 0x00 {
		return nil, errors.New("invalid pkcs1 type-1 padding terminator")
	}
	return padded[i+1:], nil
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
