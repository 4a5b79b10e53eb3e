package keymanager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

func TestNewScopeCoercesBlankReferenceToAbsent(t *testing.T) {
	for _, ref := range []string{"", "   ", "\t\n"} {
		scope := keymanager.NewScope("KERNEL", ref)
		assert.False(t, scope.HasReference, "ref=%q should coerce to absent", ref)
		assert.Empty(t, scope.ReferenceID)
	}
}

func TestNewScopeTrimsPresentReference(t *testing.T) {
	scope := keymanager.NewScope("KERNEL", "  CLIENT-A  ")
	assert.True(t, scope.HasReference)
	assert.Equal(t, "CLIENT-A", scope.ReferenceID)
}

func TestScopeMasterScope(t *testing.T) {
	scope := keymanager.NewScope("KERNEL", "CLIENT-A")
	master := scope.MasterScope()
	assert.False(t, master.HasReference)
	assert.Equal(t, "KERNEL", master.ApplicationID)
}

func TestScopeLessOrdersAbsentBeforeReference(t *testing.T) {
	absent := keymanager.NewScope("KERNEL", "")
	ref := keymanager.NewScope("KERNEL", "CLIENT-A")
	assert.True(t, absent.Less(ref))
	assert.False(t, ref.Less(absent))
}

func TestScopeLessOrdersByApplicationFirst(t *testing.T) {
	a := keymanager.NewScope("AAA", "X")
	b := keymanager.NewScope("BBB", "")
	assert.True(t, a.Less(b))
}
