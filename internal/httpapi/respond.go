package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Kind: "BAD_REQUEST", Message: message}})
}

// writeError maps a core error kind to an HTTP status. The message is the
// kind itself, never the wrapped error text, so storage details and key
// context stay out of responses.
func writeError(w http.ResponseWriter, err error) {
	kind := keymanager.Kind("INTERNAL")
	var kerr *keymanager.Error
	if errors.As(err, &kerr) {
		kind = kerr.Kind
	}
	writeJSON(w, statusForKind(kind), errorBody{Error: errorDetail{Kind: string(kind), Message: messageForKind(kind)}})
}

func statusForKind(kind keymanager.Kind) int {
	switch kind {
	case keymanager.InvalidApplication:
		return http.StatusNotFound
	case keymanager.NoCurrentKey:
		return http.StatusNotFound
	case keymanager.PolicyConflict:
		return http.StatusConflict
	case keymanager.CertInvalid:
		return http.StatusUnprocessableEntity
	case keymanager.Timeout:
		return http.StatusGatewayTimeout
	case keymanager.StoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageForKind(kind keymanager.Kind) string {
	switch kind {
	case keymanager.InvalidApplication:
		return "no key policy configured for application"
	case keymanager.NoCurrentKey:
		return "no current key for the requested instant"
	case keymanager.NoUniqueAlias:
		return "key selection index is inconsistent"
	case keymanager.PolicyConflict:
		return "policy cannot produce a valid key window"
	case keymanager.CertInvalid:
		return "signing certificate is invalid or outside its validity window"
	case keymanager.Timeout:
		return "operation deadline exceeded"
	case keymanager.StoreFailure:
		return "persistent store unavailable"
	default:
		return "operation failed"
	}
}
