package auditlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/r3e-network/keymanager/internal/keymanager"
)

func observedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return newLogger(zap.New(core)), logs
}

func TestSuccessRecordsScopeAndAlias(t *testing.T) {
	l, logs := observedLogger()

	l.Success("getPublicKey", keymanager.NewScope("KERNEL", "CLIENT-A"), "abc-123")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "keymanager.operation", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "getPublicKey", fields["op"])
	assert.Equal(t, "KERNEL/CLIENT-A", fields["scope"])
	assert.Equal(t, "abc-123", fields["alias"])
	assert.Equal(t, "ok", fields["outcome"])
}

func TestFailureRecordsErrorKind(t *testing.T) {
	l, logs := observedLogger()
	scope := keymanager.NewScope("KERNEL", "")

	l.Failure("decryptSymmetricKey", scope, keymanager.NewError(keymanager.NoCurrentKey, scope, "decryptSymmetricKey", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "NO_CURRENT_KEY", fields["kind"])
	assert.Equal(t, "error", fields["outcome"])
	assert.NotContains(t, fields, "error")
}

func TestFailureWithForeignErrorKeepsText(t *testing.T) {
	l, logs := observedLogger()

	l.Failure("sign", keymanager.NewScope("KERNEL", ""), errors.New("connection reset"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "UNKNOWN", fields["kind"])
	assert.Equal(t, "connection reset", fields["error"])
}

func TestNewWritesToStdout(t *testing.T) {
	l, err := New(Config{Attributes: map[string]string{"region": "local"}})
	require.NoError(t, err)
	l.Success("verify", keymanager.NewScope("KERNEL", ""), "a")
}
