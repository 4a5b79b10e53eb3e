package keymanager

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/keymanager/internal/domain/hsmentry"
	"github.com/r3e-network/keymanager/internal/domain/keyalias"
	"github.com/r3e-network/keymanager/internal/domain/wrappedkey"
)

var errCertOutsideWindow = errors.New("certificate outside validity window")

// AliasIndex is the persistent selection index collaborator.
type AliasIndex interface {
	ListByScope(ctx context.Context, scope Scope) ([]keyalias.KeyAlias, error)
	Insert(ctx context.Context, alias keyalias.KeyAlias) error
}

// WrappedKeyStore persists reference-scoped key material.
type WrappedKeyStore interface {
	Get(ctx context.Context, alias string) (wrappedkey.WrappedKey, bool, error)
	Insert(ctx context.Context, key wrappedkey.WrappedKey) error
}

// HSMKeyVault is the opaque asymmetric key and certificate storage collaborator.
type HSMKeyVault interface {
	StoreKeypair(alias string, pub *rsa.PublicKey, priv *rsa.PrivateKey, gen, exp time.Time) error
	StoreCertificate(alias string, chain []*x509.Certificate, priv *rsa.PrivateKey) error
	GetPublicKey(alias string) (*rsa.PublicKey, error)
	GetPrivateKey(alias string) (*rsa.PrivateKey, error)
	GetKeypairEntry(alias string) (hsmentry.KeypairEntry, error)
	GetCertificateEntry(alias string) (hsmentry.CertificateEntry, error)
}

// TxRunner runs fn atomically against the backing store. Stores that share a
// database implement it so a reference mint's wrapped-key write and alias
// insert land together: the alias row is never visible without its material.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MintKind selects which material-placement branch a mint follows.
type MintKind int

const (
	// MintStandard mints an HSM keypair for absent-reference scopes, or a
	// DB-resident keypair wrapped under the recursively resolved master scope.
	MintStandard MintKind = iota
	// MintCertificate always stores a certificate-bound keypair in the HSM
	// vault, with expiry tracking the certificate's notAfter instead of policy.
	MintCertificate
)

// ResolvedKey is what resolve returns: enough to identify and fetch the material,
// without exposing key bytes at this layer.
type ResolvedKey struct {
	Alias       string
	Scope       Scope
	IssuedAt    time.Time
	ExpiresAt   time.Time
	MasterAlias string // set only when Scope.HasReference
	Certificate bool
}

// KeyResolver is the core resolve/mint state machine.
type KeyResolver struct {
	Aliases  AliasIndex
	Vault    HSMKeyVault
	Wrapped  WrappedKeyStore
	Planner  *ExpiryPlanner
	Keypairs KeypairGenerator
	Certs    CertificateSource
	Crypto   AsymmetricCrypto
	// Tx, when set, makes the two-store writes of a reference mint atomic.
	// Nil runs the writes directly (the in-memory stores need no transaction).
	Tx TxRunner
	// Hooks observe resolve/mint/lock-wait events; zero value observes nothing.
	Hooks ResolverHooks

	locks *scopeLocks
}

// NewKeyResolver wires the collaborators required by the resolve state machine.
func NewKeyResolver(aliases AliasIndex, vault HSMKeyVault, wrapped WrappedKeyStore, planner *ExpiryPlanner, keypairs KeypairGenerator, certs CertificateSource, crypto AsymmetricCrypto) *KeyResolver {
	return &KeyResolver{
		Aliases:  aliases,
		Vault:    vault,
		Wrapped:  wrapped,
		Planner:  planner,
		Keypairs: keypairs,
		Certs:    certs,
		Crypto:   crypto,
		locks:    newScopeLocks(),
	}
}

// Resolve finds the unique alias covering ts for scope, minting under the
// scope lock if none exists.
func (r *KeyResolver) Resolve(ctx context.Context, scope Scope, ts time.Time, kind MintKind) (ResolvedKey, error) {
	start := time.Now()
	key, err := r.resolve(ctx, scope, ts, kind)
	r.Hooks.observeResolve(scope, outcomeLabel(err), time.Since(start))
	return key, err
}

func (r *KeyResolver) resolve(ctx context.Context, scope Scope, ts time.Time, kind MintKind) (ResolvedKey, error) {
	all, err := r.Aliases.ListByScope(ctx, scope)
	if err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "resolve", err)
	}

	if current, ok, err := pickCurrent(scope, all, ts); err != nil {
		return ResolvedKey{}, err
	} else if ok {
		return r.toResolvedKey(ctx, scope, current), nil
	}

	lockScopes := []Scope{scope}
	if kind == MintStandard && scope.HasReference {
		lockScopes = append(lockScopes, scope.MasterScope())
	}
	lockStart := time.Now()
	release := r.locks.acquireOrdered(lockScopes...)
	defer release()
	r.Hooks.observeLockWait(scope, time.Since(lockStart))

	return r.resolveLocked(ctx, scope, ts, kind)
}

// resolveLocked re-checks and mints with the scope lock(s) already held. The
// re-check matters: another goroutine may have minted while we waited, and the
// second waiter must observe the first's insert rather than mint again.
func (r *KeyResolver) resolveLocked(ctx context.Context, scope Scope, ts time.Time, kind MintKind) (ResolvedKey, error) {
	all, err := r.Aliases.ListByScope(ctx, scope)
	if err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "resolve", err)
	}
	if current, ok, err := pickCurrent(scope, all, ts); err != nil {
		return ResolvedKey{}, err
	} else if ok {
		return r.toResolvedKey(ctx, scope, current), nil
	}

	switch kind {
	case MintCertificate:
		return r.mintCertificate(ctx, scope, ts, all)
	default:
		if scope.HasReference {
			return r.mintReference(ctx, scope, ts, all)
		}
		return r.mintMaster(ctx, scope, ts, all)
	}
}

func pickCurrent(scope Scope, all []keyalias.KeyAlias, ts time.Time) (keyalias.KeyAlias, bool, error) {
	var found *keyalias.KeyAlias
	for i := range all {
		if all[i].Covers(ts) {
			if found != nil {
				return keyalias.KeyAlias{}, false, NewError(NoUniqueAlias, scope, "resolve", nil)
			}
			a := all[i]
			found = &a
		}
	}
	if found == nil {
		return keyalias.KeyAlias{}, false, nil
	}
	return *found, true, nil
}

func (r *KeyResolver) toResolvedKey(ctx context.Context, scope Scope, a keyalias.KeyAlias) ResolvedKey {
	rk := ResolvedKey{
		Alias:     a.Alias,
		Scope:     scope,
		IssuedAt:  a.KeyGenerationTime,
		ExpiresAt: a.KeyExpiryTime,
	}
	if scope.HasReference {
		if wk, ok, err := r.Wrapped.Get(ctx, a.Alias); err == nil && ok {
			rk.MasterAlias = wk.MasterAlias
		}
	}
	return rk
}

// runTx executes fn inside the configured transaction runner, or directly
// when none is configured.
func (r *KeyResolver) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.Tx == nil {
		return fn(ctx)
	}
	return r.Tx.WithTx(ctx, fn)
}

func (r *KeyResolver) mintMaster(ctx context.Context, scope Scope, ts time.Time, existing []keyalias.KeyAlias) (ResolvedKey, error) {
	expiry, err := r.Planner.PlanFromPolicy(ctx, scope, ts, existing)
	if err != nil {
		return ResolvedKey{}, err
	}
	pub, priv, err := r.Keypairs.GenerateRSA()
	if err != nil {
		return ResolvedKey{}, NewError(CryptoFailure, scope, "mint", err)
	}
	alias := uuid.NewString()
	// Vault first: if the alias insert below fails, the vault entry is
	// unreachable and tolerated; the reverse would break resolution.
	if err := r.Vault.StoreKeypair(alias, pub, priv, ts, expiry); err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "mint", err)
	}
	if err := r.Aliases.Insert(ctx, keyalias.KeyAlias{
		Alias:             alias,
		ApplicationID:     scope.ApplicationID,
		ReferenceID:       "",
		KeyGenerationTime: ts,
		KeyExpiryTime:     expiry,
	}); err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "mint", err)
	}
	r.Hooks.observeMint("hsm")
	return ResolvedKey{Alias: alias, Scope: scope, IssuedAt: ts, ExpiresAt: expiry}, nil
}

// mintReference runs with both the master- and reference-scope locks held
// (acquired together, master first, by Resolve), so the master resolution here
// must not re-acquire; it goes through resolveLocked directly. The wrapped-key
// and alias rows land in one transaction when a TxRunner is configured.
func (r *KeyResolver) mintReference(ctx context.Context, scope Scope, ts time.Time, existing []keyalias.KeyAlias) (ResolvedKey, error) {
	master, err := r.resolveLocked(ctx, scope.MasterScope(), ts, MintStandard)
	if err != nil {
		return ResolvedKey{}, err
	}
	masterPub, err := r.Vault.GetPublicKey(master.Alias)
	if err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "mint", err)
	}

	expiry, err := r.Planner.PlanFromPolicy(ctx, scope, ts, existing)
	if err != nil {
		return ResolvedKey{}, err
	}

	pub, priv, err := r.Keypairs.GenerateRSA()
	if err != nil {
		return ResolvedKey{}, NewError(CryptoFailure, scope, "mint", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return ResolvedKey{}, NewError(CryptoFailure, scope, "mint", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return ResolvedKey{}, NewError(CryptoFailure, scope, "mint", err)
	}
	wrappedPriv, err := r.Crypto.PublicEncrypt(masterPub, privDER)
	if err != nil {
		return ResolvedKey{}, NewError(CryptoFailure, scope, "mint", err)
	}

	alias := uuid.NewString()
	err = r.runTx(ctx, func(ctx context.Context) error {
		if err := r.Wrapped.Insert(ctx, wrappedkey.WrappedKey{
			Alias:       alias,
			MasterAlias: master.Alias,
			PublicKey:   pubDER,
			PrivateKey:  wrappedPriv,
		}); err != nil {
			return err
		}
		return r.Aliases.Insert(ctx, keyalias.KeyAlias{
			Alias:             alias,
			ApplicationID:     scope.ApplicationID,
			ReferenceID:       scope.ReferenceID,
			KeyGenerationTime: ts,
			KeyExpiryTime:     expiry,
		})
	})
	if err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "mint", err)
	}
	r.Hooks.observeMint("wrapped")
	return ResolvedKey{Alias: alias, Scope: scope, IssuedAt: ts, ExpiresAt: expiry, MasterAlias: master.Alias}, nil
}

func (r *KeyResolver) mintCertificate(ctx context.Context, scope Scope, ts time.Time, existing []keyalias.KeyAlias) (ResolvedKey, error) {
	chain, priv, err := r.Certs.Load(scope)
	if err != nil {
		return ResolvedKey{}, NewError(CertInvalid, scope, "mint", err)
	}
	if len(chain) == 0 {
		return ResolvedKey{}, NewError(CertInvalid, scope, "mint", nil)
	}
	if err := validateCertificateWindow(chain[0], ts); err != nil {
		return ResolvedKey{}, NewError(CertInvalid, scope, "mint", err)
	}

	expiry, err := r.Planner.PlanFromCertificate(scope, ts, chain[0].NotAfter, existing)
	if err != nil {
		return ResolvedKey{}, err
	}

	alias := uuid.NewString()
	if err := r.Vault.StoreCertificate(alias, chain, priv); err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "mint", err)
	}
	if err := r.Aliases.Insert(ctx, keyalias.KeyAlias{
		Alias:             alias,
		ApplicationID:     scope.ApplicationID,
		ReferenceID:       scope.ReferenceID,
		KeyGenerationTime: ts,
		KeyExpiryTime:     expiry,
	}); err != nil {
		return ResolvedKey{}, NewError(StoreFailure, scope, "mint", err)
	}
	r.Hooks.observeMint("certificate")
	return ResolvedKey{Alias: alias, Scope: scope, IssuedAt: ts, ExpiresAt: expiry, Certificate: true}, nil
}

// validateCertificateWindow rejects certificates outside their notBefore/notAfter window.
func validateCertificateWindow(cert *x509.Certificate, ts time.Time) error {
	if ts.Before(cert.NotBefore) || ts.After(cert.NotAfter) {
		return errCertOutsideWindow
	}
	return nil
}
