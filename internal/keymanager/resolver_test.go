package keymanager_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/keymanager/internal/domain/keyalias"
	"github.com/r3e-network/keymanager/internal/domain/keypolicy"
	"github.com/r3e-network/keymanager/internal/keymanager"
	"github.com/r3e-network/keymanager/internal/storage/memory"
)

type delayedAliasIndex struct {
	inner *memory.AliasIndex
	delay time.Duration
}

func slowAliasIndexFor(inner *memory.AliasIndex, delay time.Duration) keymanager.AliasIndex {
	return delayedAliasIndex{inner: inner, delay: delay}
}

func (d delayedAliasIndex) ListByScope(ctx context.Context, scope keymanager.Scope) ([]keyalias.KeyAlias, error) {
	time.Sleep(d.delay)
	return d.inner.ListByScope(ctx, scope)
}

func (d delayedAliasIndex) Insert(ctx context.Context, alias keyalias.KeyAlias) error {
	return d.inner.Insert(ctx, alias)
}

func lookupCoveringAlias(t *testing.T, idx *memory.AliasIndex, scope keymanager.Scope, ts time.Time) (string, bool, error) {
	t.Helper()
	rows, err := idx.ListByScope(context.Background(), scope)
	if err != nil {
		return "", false, err
	}
	for _, a := range rows {
		if a.Covers(ts) {
			return a.Alias, true, nil
		}
	}
	return "", false, nil
}

func existingAlias(app, alias string, gen, exp time.Time) keyalias.KeyAlias {
	return keyalias.KeyAlias{
		Alias:             alias,
		ApplicationID:     app,
		KeyGenerationTime: gen,
		KeyExpiryTime:     exp,
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	require.NoError(t, err)
	return ts
}

type harness struct {
	aliases  *memory.AliasIndex
	policies *memory.PolicyStore
	wrapped  *memory.WrappedKeyStore
	vault    *memory.HSMVault
	resolver *keymanager.KeyResolver
}

func newHarness() *harness {
	aliases := memory.NewAliasIndex()
	policies := memory.NewPolicyStore()
	wrapped := memory.NewWrappedKeyStore()
	vault := memory.NewHSMVault()
	planner := keymanager.NewExpiryPlanner(policies)
	resolver := keymanager.NewKeyResolver(aliases, vault, wrapped, planner,
		keymanager.NewKeypairGenerator(), memory.StaticCertificateSource{}, keymanager.NewAsymmetricCrypto())
	return &harness{aliases: aliases, policies: policies, wrapped: wrapped, vault: vault, resolver: resolver}
}

// First resolve for an empty scope mints an HSM-resident key.
func TestResolveFirstHSMMint(t *testing.T) {
	h := newHarness()
	h.policies.Put(keypolicy.KeyPolicy{ApplicationID: "KERNEL", ValidityDays: 180})

	scope := keymanager.NewScope("KERNEL", "")
	ts := mustParse(t, "2024-01-01T00:00:00")

	resolved, err := h.resolver.Resolve(context.Background(), scope, ts, keymanager.MintStandard)
	require.NoError(t, err)
	assert.Equal(t, ts, resolved.IssuedAt)
	assert.Equal(t, mustParse(t, "2024-06-29T00:00:00"), resolved.ExpiresAt)

	again, err := h.resolver.Resolve(context.Background(), scope, mustParse(t, "2024-03-01T00:00:00"), keymanager.MintStandard)
	require.NoError(t, err)
	assert.Equal(t, resolved.Alias, again.Alias)

	rows, err := h.aliases.ListByScope(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// A new window is truncated to end just before an existing future window.
func TestResolveOverlapTruncation(t *testing.T) {
	h := newHarness()
	h.policies.Put(keypolicy.KeyPolicy{ApplicationID: "KERNEL", ValidityDays: 365})

	scope := keymanager.NewScope("KERNEL", "")
	pub, priv, err := keymanager.NewKeypairGenerator().GenerateRSA()
	require.NoError(t, err)
	_ = pub

	a1Gen := mustParse(t, "2024-06-01T00:00:00")
	a1Exp := mustParse(t, "2024-12-01T00:00:00")
	require.NoError(t, h.vault.StoreKeypair("a1", pub, priv, a1Gen, a1Exp))
	require.NoError(t, h.aliases.Insert(context.Background(), existingAlias("KERNEL", "a1", a1Gen, a1Exp)))

	resolved, err := h.resolver.Resolve(context.Background(), scope, mustParse(t, "2024-01-01T00:00:00"), keymanager.MintStandard)
	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2024-05-31T23:59:59"), resolved.ExpiresAt)
}

// Minting a reference-scoped key mints the master key it wraps under.
func TestResolveReferenceMintTriggersMasterMint(t *testing.T) {
	h := newHarness()
	h.policies.Put(keypolicy.KeyPolicy{ApplicationID: "KERNEL", ValidityDays: 180})

	scope := keymanager.NewScope("KERNEL", "CLIENT-A")
	ts := mustParse(t, "2024-01-01T00:00:00")

	resolved, err := h.resolver.Resolve(context.Background(), scope, ts, keymanager.MintStandard)
	require.NoError(t, err)
	require.NotEmpty(t, resolved.MasterAlias)

	masterRows, err := h.aliases.ListByScope(context.Background(), keymanager.NewScope("KERNEL", ""))
	require.NoError(t, err)
	assert.Len(t, masterRows, 1)
	assert.Equal(t, resolved.MasterAlias, masterRows[0].Alias)

	refRows, err := h.aliases.ListByScope(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, refRows, 1)

	wk, ok, err := h.wrapped.Get(context.Background(), resolved.Alias)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resolved.MasterAlias, wk.MasterAlias)

	masterPriv, err := h.vault.GetPrivateKey(resolved.MasterAlias)
	require.NoError(t, err)
	crypto := keymanager.NewAsymmetricCrypto()
	plainDER, err := crypto.PrivateDecrypt(masterPriv, wk.PrivateKey)
	require.NoError(t, err)
	assert.NotEmpty(t, plainDER)
}

// An application without a policy row cannot resolve.
func TestResolveUnknownApplication(t *testing.T) {
	h := newHarness()
	scope := keymanager.NewScope("UNKNOWN", "")
	_, err := h.resolver.Resolve(context.Background(), scope, mustParse(t, "2024-01-01T00:00:00"), keymanager.MintStandard)
	require.Error(t, err)
	assert.True(t, keymanager.IsKind(err, keymanager.InvalidApplication))
}

// Concurrent resolves for the same scope and instant mint exactly one alias.
func TestResolveConcurrentMintIsSingleWinner(t *testing.T) {
	h := newHarness()
	h.policies.Put(keypolicy.KeyPolicy{ApplicationID: "KERNEL", ValidityDays: 180})

	scope := keymanager.NewScope("KERNEL", "")
	ts := mustParse(t, "2024-01-01T00:00:00")

	const workers = 32
	var wg sync.WaitGroup
	results := make([]keymanager.ResolvedKey, workers)
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.resolver.Resolve(context.Background(), scope, ts, keymanager.MintStandard)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Alias, results[i].Alias)
		assert.Equal(t, results[0].IssuedAt, results[i].IssuedAt)
		assert.Equal(t, results[0].ExpiresAt, results[i].ExpiresAt)
	}

	rows, err := h.aliases.ListByScope(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestResolveMultipleCoveringAliasesIsNoUniqueAlias(t *testing.T) {
	h := newHarness()
	scope := keymanager.NewScope("KERNEL", "")
	ts := mustParse(t, "2024-06-01T00:00:00")

	require.NoError(t, h.aliases.Insert(context.Background(), existingAlias("KERNEL", "a1", mustParse(t, "2024-01-01T00:00:00"), mustParse(t, "2024-12-31T00:00:00"))))
	require.NoError(t, h.aliases.Insert(context.Background(), existingAlias("KERNEL", "a2", mustParse(t, "2024-02-01T00:00:00"), mustParse(t, "2024-11-30T00:00:00"))))

	_, err := h.resolver.Resolve(context.Background(), scope, ts, keymanager.MintStandard)
	require.Error(t, err)
	assert.True(t, keymanager.IsKind(err, keymanager.NoUniqueAlias))
}

type recordingTxRunner struct {
	calls int
}

func (r *recordingTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	return fn(ctx)
}

// A reference mint must issue its wrapped-key and alias writes through the
// configured transaction runner so both land atomically; the master mint it
// triggers writes to the vault and needs no transaction.
func TestReferenceMintRunsWritesInTransaction(t *testing.T) {
	h := newHarness()
	tx := &recordingTxRunner{}
	h.resolver.Tx = tx
	h.policies.Put(keypolicy.KeyPolicy{ApplicationID: "KERNEL", ValidityDays: 180})

	_, err := h.resolver.Resolve(context.Background(), keymanager.NewScope("KERNEL", "CLIENT-A"), mustParse(t, "2024-01-01T00:00:00"), keymanager.MintStandard)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)
}
