// Package httpapi is the ambient HTTP surface over the key-manager facade:
// routing, request decoding, rate limiting, metrics, and the boundary audit
// log. The core never sees HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/r3e-network/keymanager/internal/keymanager"
	"github.com/r3e-network/keymanager/pkg/auditlog"
	"github.com/r3e-network/keymanager/pkg/logger"
	"github.com/r3e-network/keymanager/pkg/metrics"
)

// Options configures the HTTP surface around the facade.
type Options struct {
	// OperationTimeout bounds each public operation; zero disables the bound.
	OperationTimeout time.Duration
	// RequestsPerSecond and Burst control the per-caller rate limit.
	RequestsPerSecond float64
	Burst             int
}

// Server holds the wired handler dependencies.
type Server struct {
	facade           *keymanager.CryptoFacade
	log              *logger.Logger
	audit            *auditlog.Logger
	limiter          *callerLimiter
	operationTimeout time.Duration
}

// NewServer wires the facade behind the router's handlers.
func NewServer(facade *keymanager.CryptoFacade, log *logger.Logger, audit *auditlog.Logger, opts Options) *Server {
	if audit == nil {
		audit = auditlog.NewNop()
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 50
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 100
	}
	return &Server{
		facade:           facade,
		log:              log,
		audit:            audit,
		limiter:          newCallerLimiter(rps, burst),
		operationTimeout: opts.OperationTimeout,
	}
}

// Router builds the chi router for the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/applications/{applicationID}", func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Method(http.MethodGet, "/public-key",
			metrics.InstrumentHandler("/v1/applications/{applicationID}/public-key", http.HandlerFunc(s.handleGetPublicKey)))
		r.Method(http.MethodPost, "/symmetric-key/decrypt",
			metrics.InstrumentHandler("/v1/applications/{applicationID}/symmetric-key/decrypt", http.HandlerFunc(s.handleDecryptSymmetricKey)))
		r.Method(http.MethodPost, "/encrypt",
			metrics.InstrumentHandler("/v1/applications/{applicationID}/encrypt", http.HandlerFunc(s.handleEncrypt)))
		r.Method(http.MethodPost, "/sign",
			metrics.InstrumentHandler("/v1/applications/{applicationID}/sign", http.HandlerFunc(s.handleSign)))
		r.Method(http.MethodPost, "/verify",
			metrics.InstrumentHandler("/v1/applications/{applicationID}/verify", http.HandlerFunc(s.handleVerify)))
	})

	return r
}
