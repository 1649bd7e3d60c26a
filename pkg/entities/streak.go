package entities

import (
	"time"
)

// Streak tracks consecutive-day activity for an account. There is at most
// one record per account; it is created on first write and never deleted.
type Streak struct {
	AccountID      string    // Account the streak belongs to
	Current        int       // Consecutive days active, including the last active date
	Longest        int       // Longest streak ever recorded, always >= Current
	LastActiveDate string    // YYYY-MM-DD of the most recent activity, empty when seeded without one
	UpdatedAt      time.Time // When the record was last written
}
