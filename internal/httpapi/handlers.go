package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/r3e-network/keymanager/internal/keymanager"
	"github.com/r3e-network/keymanager/pkg/metrics"
)

// timestampLayout is the ISO-8601 local date-time form callers supply, e.g.
// 2024-01-01T00:00:00. Comparisons use the service's local clock.
const timestampLayout = "2006-01-02T15:04:05"

func parseTimestamp(raw string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, raw, time.Local)
}

type publicKeyResponse struct {
	Alias     string `json:"alias"`
	PublicKey string `json:"publicKey"`
	IssuedAt  string `json:"issuedAt"`
	ExpiresAt string `json:"expiresAt"`
}

type binaryRequest struct {
	ReferenceID string `json:"referenceId"`
	Timestamp   string `json:"timestamp"`
	Data        string `json:"data"`
}

type binaryResponse struct {
	Data string `json:"data"`
}

func (s *Server) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "applicationID")
	ref := r.URL.Query().Get("reference")
	ts, err := parseTimestamp(r.URL.Query().Get("timestamp"))
	if err != nil {
		writeBadRequest(w, "timestamp must be an ISO-8601 local date-time")
		return
	}

	ctx, cancel := s.operationContext(r.Context())
	defer cancel()

	material, err := s.facade.GetPublicKey(ctx, app, ref, ts)
	if err != nil {
		s.operationFailed(w, "getPublicKey", app, ref, err)
		return
	}
	s.operationSucceeded("getPublicKey", app, ref, material.Alias)

	writeJSON(w, http.StatusOK, publicKeyResponse{
		Alias:     material.Alias,
		PublicKey: base64.StdEncoding.EncodeToString(material.PublicKey),
		IssuedAt:  material.IssuedAt.Format(timestampLayout),
		ExpiresAt: material.ExpiresAt.Format(timestampLayout),
	})
}

func (s *Server) handleDecryptSymmetricKey(w http.ResponseWriter, r *http.Request) {
	s.handleBinaryOperation(w, r, "decryptSymmetricKey",
		func(ctx context.Context, app, ref string, ts time.Time, data []byte) ([]byte, error) {
			return s.facade.DecryptSymmetricKey(ctx, app, ref, ts, data)
		})
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	s.handleBinaryOperation(w, r, "encrypt",
		func(ctx context.Context, app, ref string, ts time.Time, data []byte) ([]byte, error) {
			return s.facade.Encrypt(ctx, app, ref, ts, data)
		})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	s.handleBinaryOperation(w, r, "sign",
		func(ctx context.Context, app, ref string, ts time.Time, data []byte) ([]byte, error) {
			return s.facade.Sign(ctx, app, ref, ts, data)
		})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.handleBinaryOperation(w, r, "verify",
		func(ctx context.Context, app, ref string, ts time.Time, data []byte) ([]byte, error) {
			return s.facade.Verify(ctx, app, ref, ts, data)
		})
}

// handleBinaryOperation is the shared request plumbing for the four byte-in,
// byte-out operations: decode, delegate to the facade, encode, audit.
func (s *Server) handleBinaryOperation(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	call func(ctx context.Context, app, ref string, ts time.Time, data []byte) ([]byte, error),
) {
	app := chi.URLParam(r, "applicationID")

	var req binaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "request body must be JSON")
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeBadRequest(w, "timestamp must be an ISO-8601 local date-time")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeBadRequest(w, "data must be Base64")
		return
	}

	ctx, cancel := s.operationContext(r.Context())
	defer cancel()

	out, err := call(ctx, app, req.ReferenceID, ts, data)
	if err != nil {
		s.operationFailed(w, op, app, req.ReferenceID, err)
		return
	}
	s.operationSucceeded(op, app, req.ReferenceID, "")

	writeJSON(w, http.StatusOK, binaryResponse{Data: base64.StdEncoding.EncodeToString(out)})
}

func (s *Server) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.operationTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.operationTimeout)
}

// operationFailed is the single boundary log site: one audit event with scope
// and error kind, one metrics increment, and the mapped HTTP response.
func (s *Server) operationFailed(w http.ResponseWriter, op, app, ref string, err error) {
	scope := keymanager.NewScope(app, ref)
	s.audit.Failure(op, scope, err)
	metrics.RecordFacadeError(op, errorKind(err))
	s.log.WithField("scope", scope.String()).WithField("op", op).Warnf("operation failed: %v", err)
	writeError(w, err)
}

func (s *Server) operationSucceeded(op, app, ref, alias string) {
	s.audit.Success(op, keymanager.NewScope(app, ref), alias)
}

func errorKind(err error) string {
	var kerr *keymanager.Error
	if errors.As(err, &kerr) {
		return string(kerr.Kind)
	}
	return "INTERNAL"
}
