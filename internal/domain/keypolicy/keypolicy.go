// Package keypolicy defines per-application key validity policy.
package keypolicy

import "time"

// KeyPolicy controls how long a freshly minted key for ApplicationID remains current.
type KeyPolicy struct {
	ApplicationID string
	ValidityDays  int
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedBy     string
	UpdatedAt     time.Time
}

// ValidityWindow returns the validity duration implied by ValidityDays.
func (p KeyPolicy) ValidityWindow() time.Duration {
	return time.Duration(p.ValidityDays) * 24 * time.Hour
}
