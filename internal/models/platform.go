package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform is a registered API consumer. KeyHash holds the bcrypt hash of
// the API key; the key itself is returned once at registration and never
// stored.
type Platform struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Name      string
	KeyHash   string
}

// PlatformStats is the global read model, derived from ledgers and the
// activity log, never stored as authoritative state. Credits issued and used
// are lifetime totals so withdrawals don't erase history.
type PlatformStats struct {
	TotalPrincipal       int64
	TotalValue           int64
	TotalYieldGenerated  int64
	TotalCreditsIssued   int64
	TotalCreditsUsed     int64
	TotalUniquePlatforms int64
	Stale                bool
}
