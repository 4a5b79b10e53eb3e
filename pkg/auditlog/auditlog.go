// Package auditlog emits one structured event per public key-manager
// operation at the service boundary. It is deliberately separate from
// pkg/logger: security-relevant events flow to their own sink so they can be
// shipped and retained independently of human-facing application logs. Events
// carry the scope, alias, and error kind only; key material, wrapped private
// key bytes, and raw signatures never reach this package.
package auditlog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

// Config controls where audit events are written and which static resource
// attributes (region, cluster, replica) are stamped onto every event.
type Config struct {
	// Output is a zap sink URL or path: "stdout", "stderr", or a file path.
	Output string
	// Attributes are merged into every event as top-level fields.
	Attributes map[string]string
}

// Logger is the boundary audit sink.
type Logger struct {
	zl *zap.Logger
}

// New builds a Logger writing JSON events to cfg.Output.
func New(cfg Config) (*Logger, error) {
	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{output}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.DisableStacktrace = true
	zcfg.DisableCaller = true
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fields := make([]zap.Field, 0, len(cfg.Attributes))
	for k, v := range cfg.Attributes {
		fields = append(fields, zap.String(k, v))
	}

	zl, err := zcfg.Build(zap.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("build audit logger: %w", err)
	}
	return &Logger{zl: zl}, nil
}

// NewNop returns a Logger that discards every event, for tests and tools.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

func newLogger(zl *zap.Logger) *Logger {
	return &Logger{zl: zl}
}

// Success records a completed operation against scope. alias may be empty for
// operations whose caller does not report the resolved alias.
func (l *Logger) Success(op string, scope keymanager.Scope, alias string) {
	l.zl.Info("keymanager.operation",
		zap.String("op", op),
		zap.String("scope", scope.String()),
		zap.String("alias", alias),
		zap.String("outcome", "ok"),
	)
}

// Failure records a failed operation with its error kind. The underlying
// error text is included only when the error is not a *keymanager.Error,
// since kind+scope already identify core failures without risking leakage.
func (l *Logger) Failure(op string, scope keymanager.Scope, err error) {
	kind := keymanager.Kind("UNKNOWN")
	var kerr *keymanager.Error
	if errors.As(err, &kerr) {
		kind = kerr.Kind
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("scope", scope.String()),
		zap.String("outcome", "error"),
		zap.String("kind", string(kind)),
	}
	if kerr == nil && err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	l.zl.Warn("keymanager.operation", fields...)
}

// Sync flushes buffered events; call on shutdown.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}
