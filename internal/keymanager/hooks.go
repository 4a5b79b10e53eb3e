package keymanager

import (
	"errors"
	"time"
)

// ResolverHooks are optional observation callbacks the resolver invokes so
// wiring can feed metrics without the core importing a metrics library.
// Nil funcs are skipped; the zero value observes nothing.
type ResolverHooks struct {
	// ResolveObserved fires once per Resolve call with its outcome label
	// ("ok" or the error kind) and total elapsed time, including any mint.
	ResolveObserved func(scope Scope, outcome string, elapsed time.Duration)
	// MintObserved fires after a successful mint with the placement of the
	// new material: "hsm", "wrapped", or "certificate".
	MintObserved func(placement string)
	// LockWaited fires with the time spent blocked acquiring the scope
	// lock(s) on the mint path.
	LockWaited func(scope Scope, wait time.Duration)
}

func (h ResolverHooks) observeResolve(scope Scope, outcome string, elapsed time.Duration) {
	if h.ResolveObserved != nil {
		h.ResolveObserved(scope, outcome, elapsed)
	}
}

func (h ResolverHooks) observeMint(placement string) {
	if h.MintObserved != nil {
		h.MintObserved(placement)
	}
}

func (h ResolverHooks) observeLockWait(scope Scope, wait time.Duration) {
	if h.LockWaited != nil {
		h.LockWaited(scope, wait)
	}
}

// outcomeLabel maps a Resolve result to a bounded metric label: "ok", the
// error kind, or "error" for anything that is not a *Error.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return string(kerr.Kind)
	}
	return "error"
}
