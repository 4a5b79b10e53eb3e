package postgres

import (
	"context"
	"time"
)

// actorKey is the context key under which the acting principal is stashed for
// the audit decorator below.
type actorKey struct{}

// WithActor attaches the principal performing a write to ctx, consumed by
// Audit when stamping created_by/updated_by columns.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// AuditStamp is the audit quartet stamped onto every write.
type AuditStamp struct {
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// Stamp produces an AuditStamp for a fresh insert; the core never updates rows
// after creation, so CreatedBy/At and UpdatedBy/At always coincide at write time.
func Stamp(ctx context.Context, now time.Time) AuditStamp {
	actor := actorFromContext(ctx)
	return AuditStamp{CreatedBy: actor, CreatedAt: now, UpdatedBy: actor, UpdatedAt: now}
}
