// Package keyalias defines the selection index row for tenant-scoped key material.
package keyalias

import "time"

// KeyAlias binds a scope and validity window to a concrete key identified by Alias.
// ReferenceID is empty for HSM-resident master keys.
type KeyAlias struct {
	Alias             string
	ApplicationID     string
	ReferenceID       string
	KeyGenerationTime time.Time
	KeyExpiryTime     time.Time
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedBy         string
	UpdatedAt         time.Time
}

// Covers reports whether ts falls within the closed window [gen, exp].
func (k KeyAlias) Covers(ts time.Time) bool {
	return !ts.Before(k.KeyGenerationTime) && !ts.After(k.KeyExpiryTime)
}

// Overlaps reports whether the window [gen, exp] shares any instant with [start, end].
func (k KeyAlias) Overlaps(start, end time.Time) bool {
	return !end.Before(k.KeyGenerationTime) && !start.After(k.KeyExpiryTime)
}
