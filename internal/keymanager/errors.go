package keymanager

import "fmt"

// Kind enumerates the terminal error categories the core surfaces. The core never
// retries internally; retries are the caller's concern.
type Kind string

const (
	InvalidApplication Kind = "INVALID_APPLICATION"
	NoUniqueAlias      Kind = "NO_UNIQUE_ALIAS"
	NoCurrentKey       Kind = "NO_CURRENT_KEY"
	PolicyConflict     Kind = "POLICY_CONFLICT"
	CertInvalid        Kind = "CERT_INVALID"
	CryptoFailure      Kind = "CRYPTO_FAILURE"
	StoreFailure       Kind = "STORE_FAILURE"
	Timeout            Kind = "TIMEOUT"
)

// Error wraps an underlying error with the scope and operation it occurred in.
type Error struct {
	Kind  Kind
	Scope Scope
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("keymanager: %s: %s[%s]: %v", e.Op, e.Kind, e.Scope, e.Err)
	}
	return fmt.Sprintf("keymanager: %s: %s[%s]", e.Op, e.Kind, e.Scope)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error for the given scope and operation.
func NewError(kind Kind, scope Scope, op string, err error) *Error {
	return &Error{Kind: kind, Scope: scope, Op: op, Err: err}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var kerr *Error
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok {
		kerr = e
	} else {
		return false
	}
	return kerr.Kind == kind
}
