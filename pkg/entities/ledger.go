package entities

import (
	"time"
)

// EntryType represents the kind of balance-changing event a ledger
// entry records.
type EntryType string

const (
	EntryTypeInit      EntryType = "INIT"      // Lazy wallet bootstrap with an imported balance
	EntryTypeEarn      EntryType = "EARN"      // Currency earned through activity
	EntryTypeSpend     EntryType = "SPEND"     // Currency spent by the account
	EntryTypeAdminAdd  EntryType = "ADMIN_ADD" // Manual adjustment by an operator
	EntryTypeSync      EntryType = "SYNC"      // Daily reconciliation of client-reported earnings
	EntryTypeChallenge EntryType = "CHALLENGE" // Challenge reward disbursement
)

// LedgerEntry is an immutable record of one balance-changing event.
// Entries are append-only; once written they are never mutated or removed.
type LedgerEntry struct {
	ID              int64          // Monotonically increasing identifier
	AccountID       string         // Account the entry belongs to
	Kind            EconomyKind    // Which economy the delta applies to
	Delta           int64          // Signed change (positive for earn, negative for spend)
	Type            EntryType      // What kind of event produced the entry
	Reason          string         // Human-readable description
	Metadata        *EntryMetadata // Type-specific context, nil when none
	BalanceAfter    int64          // Balance after this entry was applied
	ClientRequestID string         // Idempotency key, empty when none was supplied
	CreatedAt       time.Time      // When the entry was written
}

// EntryMetadata carries type-specific context for a ledger entry. At most
// one variant is set, matching the entry's Type. Each variant has a fixed
// schema rather than a free-form key-value blob.
type EntryMetadata struct {
	Init      *InitMetadata      `json:"init,omitempty"`
	Sync      *SyncMetadata      `json:"sync,omitempty"`
	Cap       *CapMetadata       `json:"cap,omitempty"`
	Challenge *ChallengeMetadata `json:"challenge,omitempty"`
}

// InitMetadata records the client-supplied balance a wallet was seeded with.
type InitMetadata struct {
	ImportedBalance int64 `json:"imported_balance"`
}

// SyncMetadata records a daily reconciliation of client-reported earnings.
type SyncMetadata struct {
	DateKey  string `json:"date_key"` // YYYY-MM-DD
	Reported int64  `json:"reported"` // Client-reported cumulative count for the day
	Previous int64  `json:"previous"` // Previously recorded value the diff was taken against
}

// CapMetadata records a spend made through the daily usage cap.
type CapMetadata struct {
	DateKey string `json:"date_key"` // YYYY-MM-DD
	Used    int64  `json:"used"`     // Cumulative usage after this spend
	Limit   int64  `json:"limit"`    // Configured daily ceiling at the time
}

// ChallengeMetadata records which challenge reward produced the entry.
type ChallengeMetadata struct {
	Key       string `json:"key"`
	PeriodKey string `json:"period_key,omitempty"` // YYYY-MM for monthly keys, empty for cumulative
}
