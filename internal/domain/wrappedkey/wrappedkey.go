// Package wrappedkey defines DB-resident key material wrapped under an HSM master key.
package wrappedkey

import "time"

// WrappedKey is the at-rest representation of a reference-scoped keypair. PrivateKey
// holds PKCS#8 DER bytes encrypted under MasterAlias's RSA public key; PublicKey holds
// plain DER-encoded SubjectPublicKeyInfo bytes.
type WrappedKey struct {
	Alias       string
	MasterAlias string
	PublicKey   []byte
	PrivateKey  []byte
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedBy   string
	UpdatedAt   time.Time
}
