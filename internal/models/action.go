package models

import (
	"time"

	"github.com/google/uuid"
)

// Action is the idempotency record of a single credit consumption.
// ID is supplied by the caller and unique per account; replaying the same
// (account, id) pair returns the recorded result instead of deducting again.
type Action struct {
	ID         string
	AccountID  string
	PlatformID uuid.UUID
	Label      string
	Amount     int64
	Remaining  int64
	CreatedAt  time.Time
}
