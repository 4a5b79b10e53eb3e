package keymanager

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/r3e-network/keymanager/internal/domain/hsmentry"
)

// PublicKeyMaterial is the response shape for getPublicKey: a wire-ready DER
// SubjectPublicKeyInfo plus the alias and validity window it was minted with.
type PublicKeyMaterial struct {
	Alias     string
	PublicKey []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CryptoFacade is the only entry point external callers use. It orchestrates
// resolution (C6) against the collaborators needed for each operation and never
// exposes raw private key material past this boundary.
type CryptoFacade struct {
	Resolver *KeyResolver
	Vault    HSMKeyVault
	Wrapped  WrappedKeyStore
	Crypto   AsymmetricCrypto
	Clock    Clock
}

// NewCryptoFacade wires the facade against a resolver and its direct collaborators.
func NewCryptoFacade(resolver *KeyResolver, vault HSMKeyVault, wrapped WrappedKeyStore, crypto AsymmetricCrypto, clock Clock) *CryptoFacade {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CryptoFacade{Resolver: resolver, Vault: vault, Wrapped: wrapped, Crypto: crypto, Clock: clock}
}

// GetPublicKey resolves the current key for (app, ref?) at ts, minting on miss.
func (f *CryptoFacade) GetPublicKey(ctx context.Context, applicationID, referenceID string, ts time.Time) (PublicKeyMaterial, error) {
	scope := NewScope(applicationID, referenceID)
	resolved, err := f.resolveWithDeadline(ctx, scope, ts, MintStandard)
	if err != nil {
		return PublicKeyMaterial{}, err
	}
	der, err := f.publicKeyDER(ctx, scope, resolved)
	if err != nil {
		return PublicKeyMaterial{}, err
	}
	return PublicKeyMaterial{Alias: resolved.Alias, PublicKey: der, IssuedAt: resolved.IssuedAt, ExpiresAt: resolved.ExpiresAt}, nil
}

// DecryptSymmetricKey unwraps a caller-supplied wrapped symmetric key. It must not
// mint: a miss means the caller encrypted against a public key that no longer
// exists as "current", and minting here would silently hand back the wrong key.
func (f *CryptoFacade) DecryptSymmetricKey(ctx context.Context, applicationID, referenceID string, ts time.Time, wrappedSymKey []byte) ([]byte, error) {
	scope := NewScope(applicationID, referenceID)
	all, err := f.Resolver.Aliases.ListByScope(ctx, scope)
	if err != nil {
		return nil, NewError(StoreFailure, scope, "decryptSymmetricKey", err)
	}
	current, ok, err := pickCurrent(scope, all, ts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewError(NoCurrentKey, scope, "decryptSymmetricKey", nil)
	}

	priv, err := f.privateKey(ctx, scope, ResolvedKey{Alias: current.Alias, Scope: scope})
	if err != nil {
		return nil, err
	}
	plaintext, err := f.Crypto.PrivateDecrypt(priv, wrappedSymKey)
	if err != nil {
		return nil, NewError(CryptoFailure, scope, "decryptSymmetricKey", err)
	}
	return plaintext, nil
}

// Encrypt resolves the scope (minting if required) and applies the private key
// to data. This is a private-key operation, i.e. signing semantics rather than
// confidentiality; callers wanting secrecy must encrypt against the public key.
func (f *CryptoFacade) Encrypt(ctx context.Context, applicationID, referenceID string, ts time.Time, data []byte) ([]byte, error) {
	scope := NewScope(applicationID, referenceID)
	resolved, err := f.resolveWithDeadline(ctx, scope, ts, MintStandard)
	if err != nil {
		return nil, err
	}
	priv, err := f.privateKey(ctx, scope, resolved)
	if err != nil {
		return nil, err
	}
	ciphertext, err := f.Crypto.PrivateEncrypt(priv, data)
	if err != nil {
		return nil, NewError(CryptoFailure, scope, "encrypt", err)
	}
	return ciphertext, nil
}

// Sign resolves under certificate-bound minting, validates the certificate's
// window, and signs data with the certificate's private key.
func (f *CryptoFacade) Sign(ctx context.Context, applicationID, referenceID string, ts time.Time, data []byte) ([]byte, error) {
	scope := NewScope(applicationID, referenceID)
	resolved, err := f.resolveWithDeadline(ctx, scope, ts, MintCertificate)
	if err != nil {
		return nil, err
	}
	entry, err := f.Vault.GetCertificateEntry(resolved.Alias)
	if err != nil {
		return nil, NewError(StoreFailure, scope, "sign", err)
	}
	if err := f.validateCertificate(scope, entry); err != nil {
		return nil, err
	}
	sig, err := f.Crypto.PrivateEncrypt(entry.PrivateKey, data)
	if err != nil {
		return nil, NewError(CryptoFailure, scope, "sign", err)
	}
	return sig, nil
}

// Verify resolves the same certificate-bound scope and checks signature against it.
func (f *CryptoFacade) Verify(ctx context.Context, applicationID, referenceID string, ts time.Time, signature []byte) ([]byte, error) {
	scope := NewScope(applicationID, referenceID)
	resolved, err := f.resolveWithDeadline(ctx, scope, ts, MintCertificate)
	if err != nil {
		return nil, err
	}
	entry, err := f.Vault.GetCertificateEntry(resolved.Alias)
	if err != nil {
		return nil, NewError(StoreFailure, scope, "verify", err)
	}
	if err := f.validateCertificate(scope, entry); err != nil {
		return nil, err
	}
	pub, err := certificatePublicKey(entry)
	if err != nil {
		return nil, NewError(CertInvalid, scope, "verify", err)
	}
	data, err := f.Crypto.PublicDecrypt(pub, signature)
	if err != nil {
		return nil, NewError(CryptoFailure, scope, "verify", err)
	}
	return data, nil
}

// validateCertificate rejects a certificate entry outside its validity window
// or with an empty chain.
func (f *CryptoFacade) validateCertificate(scope Scope, entry hsmentry.CertificateEntry) error {
	leaf := entry.Leaf()
	if leaf == nil {
		return NewError(CertInvalid, scope, "validateCertificate", nil)
	}
	now := f.Clock.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return NewError(CertInvalid, scope, "validateCertificate", errCertOutsideWindow)
	}
	return nil
}

func certificatePublicKey(entry hsmentry.CertificateEntry) (*rsa.PublicKey, error) {
	leaf := entry.Leaf()
	if leaf == nil {
		return nil, errCertOutsideWindow
	}
	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate does not hold an RSA public key")
	}
	return pub, nil
}

// resolveWithDeadline runs Resolve on a worker goroutine so ctx's deadline can
// abort the wait. Cancellation is best-effort: ctx is passed on to the stores,
// so an in-flight storage call is aborted only if its store honours ctx, and
// committed writes are never rolled back.
func (f *CryptoFacade) resolveWithDeadline(ctx context.Context, scope Scope, ts time.Time, kind MintKind) (ResolvedKey, error) {
	type result struct {
		key ResolvedKey
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := f.Resolver.Resolve(ctx, scope, ts, kind)
		done <- result{key: key, err: err}
	}()

	select {
	case r := <-done:
		return r.key, r.err
	case <-ctx.Done():
		return ResolvedKey{}, NewError(Timeout, scope, "resolve", ctx.Err())
	}
}

// publicKeyDER returns the SPKI DER bytes for a resolved key, reading from the
// wrapped-key store for reference scopes and the HSM vault otherwise.
func (f *CryptoFacade) publicKeyDER(ctx context.Context, scope Scope, resolved ResolvedKey) ([]byte, error) {
	if scope.HasReference {
		wk, ok, err := f.Wrapped.Get(ctx, resolved.Alias)
		if err != nil {
			return nil, NewError(StoreFailure, scope, "getPublicKey", err)
		}
		if !ok {
			return nil, NewError(NoUniqueAlias, scope, "getPublicKey", nil)
		}
		return wk.PublicKey, nil
	}
	pub, err := f.Vault.GetPublicKey(resolved.Alias)
	if err != nil {
		return nil, NewError(StoreFailure, scope, "getPublicKey", err)
	}
	return marshalPublicKey(pub)
}

// privateKey acquires the usable *rsa.PrivateKey for a resolved scope+alias: the
// HSM vault directly for absent-reference scopes, or the wrapped, master-unwrapped
// key for reference scopes.
func (f *CryptoFacade) privateKey(ctx context.Context, scope Scope, resolved ResolvedKey) (*rsa.PrivateKey, error) {
	if !scope.HasReference {
		priv, err := f.Vault.GetPrivateKey(resolved.Alias)
		if err != nil {
			return nil, NewError(StoreFailure, scope, "privateKey", err)
		}
		return priv, nil
	}

	wk, ok, err := f.Wrapped.Get(ctx, resolved.Alias)
	if err != nil {
		return nil, NewError(StoreFailure, scope, "privateKey", err)
	}
	if !ok {
		return nil, NewError(NoUniqueAlias, scope, "privateKey", nil)
	}
	masterPriv, err := f.Vault.GetPrivateKey(wk.MasterAlias)
	if err != nil {
		return nil, NewError(StoreFailure, scope, "privateKey", err)
	}
	plainDER, err := f.Crypto.PrivateDecrypt(masterPriv, wk.PrivateKey)
	if err != nil {
		return nil, NewError(CryptoFailure, scope, "privateKey", err)
	}
	return parsePKCS8RSA(plainDER)
}
