package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

func TestForScopeDiffersAcrossScopes(t *testing.T) {
	secret := []byte("test-root-secret-do-not-use-in-prod")
	session := NewSession(secret, 1024)

	aPub, _, err := session.ForScope(keymanager.NewScope("app-1", "")).GenerateRSA()
	require.NoError(t, err)
	bPub, _, err := session.ForScope(keymanager.NewScope("app-2", "")).GenerateRSA()
	require.NoError(t, err)

	assert.False(t, aPub.Equal(bPub))
}

func TestForScopeProducesFreshKeypairOnRepeatedCalls(t *testing.T) {
	secret := []byte("test-root-secret-do-not-use-in-prod")
	gen := NewSession(secret, 1024).ForScope(keymanager.NewScope("app-1", ""))

	firstPub, _, err := gen.GenerateRSA()
	require.NoError(t, err)
	secondPub, _, err := gen.GenerateRSA()
	require.NoError(t, err)

	assert.False(t, firstPub.Equal(secondPub))
}

func TestNewSessionDefaultsBitsWhenNonPositive(t *testing.T) {
	session := NewSession([]byte("seed"), 0)
	assert.Equal(t, keymanager.RSAKeySize, session.bits)
}
