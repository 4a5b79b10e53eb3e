// Package main is the key-manager service entry point: it wires configuration,
// logging, storage, the resolver/facade core, and the HTTP surface, then runs
// until interrupted.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/r3e-network/keymanager/internal/app/hsm"
	"github.com/r3e-network/keymanager/internal/httpapi"
	"github.com/r3e-network/keymanager/internal/keymanager"
	"github.com/r3e-network/keymanager/internal/platform/database"
	"github.com/r3e-network/keymanager/internal/platform/migrations"
	"github.com/r3e-network/keymanager/internal/storage/certfile"
	"github.com/r3e-network/keymanager/internal/storage/memory"
	"github.com/r3e-network/keymanager/internal/storage/postgres"
	"github.com/r3e-network/keymanager/pkg/auditlog"
	"github.com/r3e-network/keymanager/pkg/config"
	"github.com/r3e-network/keymanager/pkg/logger"
	"github.com/r3e-network/keymanager/pkg/metrics"
	"github.com/r3e-network/keymanager/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "keymanager: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})
	log.WithField("version", version.Version).Info("starting key manager")

	audit, err := auditlog.New(auditlog.Config{
		Output:     cfg.Audit.Output,
		Attributes: cfg.Audit.Tracing.ResourceAttributes,
	})
	if err != nil {
		return fmt.Errorf("build audit logger: %w", err)
	}
	defer func() { _ = audit.Sync() }()

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	facade, err := buildFacade(cfg, stores)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(facade, log, audit, httpapi.Options{
		OperationTimeout:  time.Duration(cfg.KeyManager.ResolveTimeoutMS) * time.Millisecond,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// storeSet groups the storage collaborators behind the resolver, whichever
// backend provides them. tx is set only for backends whose stores share a
// database and so can make a reference mint's two writes atomic.
type storeSet struct {
	aliases  keymanager.AliasIndex
	policies keymanager.PolicyStore
	wrapped  keymanager.WrappedKeyStore
	tx       keymanager.TxRunner
}

// buildStores picks Postgres when a DSN or host is configured and falls back
// to the in-memory stores otherwise, so the service runs out of the box in
// development. The HSM vault is always the in-process simulation; a hardware
// deployment swaps it at this one seam.
func buildStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (storeSet, func(), error) {
	dsn := cfg.Database.DSN
	if dsn == "" && cfg.Database.Host != "" {
		dsn = cfg.Database.ConnectionString()
	}
	if dsn == "" {
		log.Warn("no database configured; using in-memory stores (state is lost on restart)")
		return storeSet{
			aliases:  memory.NewAliasIndex(),
			policies: memory.NewPolicyStore(),
			wrapped:  memory.NewWrappedKeyStore(),
		}, func() {}, nil
	}

	db, err := database.Open(ctx, database.Config{
		DSN:             dsn,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return storeSet{}, nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return storeSet{}, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	return storeSet{
		aliases:  postgres.NewAliasIndex(db),
		policies: postgres.NewPolicyStore(db),
		wrapped:  postgres.NewWrappedKeyStore(db),
		tx:       postgres.NewBaseStore(db),
	}, func() { db.Close() }, nil
}

func buildFacade(cfg *config.Config, stores storeSet) (*keymanager.CryptoFacade, error) {
	vault := memory.NewHSMVault()
	crypto := keymanager.NewAsymmetricCrypto()

	var keypairs keymanager.KeypairGenerator = keymanager.NewKeypairGenerator()
	if secret := cfg.KeyManager.HSMSimulationSecret; secret != "" {
		session := hsm.NewSession([]byte(secret), cfg.KeyManager.RSAKeyBits)
		keypairs = session.ForScope(keymanager.NewScope("keymanager", ""))
	}

	var certs keymanager.CertificateSource
	if cfg.KeyManager.CertificatePath != "" {
		src, err := certfile.New(cfg.KeyManager.CertificatePath, cfg.KeyManager.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load signing certificate: %w", err)
		}
		certs = src
	} else {
		certs = unconfiguredCertificateSource{}
	}

	planner := keymanager.NewExpiryPlanner(stores.policies)
	resolver := keymanager.NewKeyResolver(stores.aliases, vault, stores.wrapped, planner, keypairs, certs, crypto)
	resolver.Tx = stores.tx
	resolver.Hooks = keymanager.ResolverHooks{
		ResolveObserved: func(scope keymanager.Scope, outcome string, elapsed time.Duration) {
			metrics.RecordResolve(metrics.ScopeKind(scope.HasReference), outcome, elapsed)
		},
		MintObserved: metrics.RecordMint,
		LockWaited: func(scope keymanager.Scope, wait time.Duration) {
			metrics.RecordLockWait(metrics.ScopeKind(scope.HasReference), wait)
		},
	}

	return keymanager.NewCryptoFacade(resolver, vault, stores.wrapped, crypto, keymanager.SystemClock{}), nil
}

// unconfiguredCertificateSource fails sign/verify cleanly when no certificate
// files are configured instead of panicking on a nil collaborator.
type unconfiguredCertificateSource struct{}

func (unconfiguredCertificateSource) Load(scope keymanager.Scope) ([]*x509.Certificate, *rsa.PrivateKey, error) {
	return nil, nil, fmt.Errorf("no signing certificate configured")
}
