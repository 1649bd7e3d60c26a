package ledger

import (
	"context"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
)

// ApplyParams describes one balance mutation.
type ApplyParams struct {
	AccountID       string
	Kind            entities.EconomyKind
	Delta           int64 // Signed; must not be zero
	Type            entities.EntryType
	Reason          string
	Metadata        *entities.EntryMetadata
	ClientRequestID string // Optional idempotency key
}

// Repository defines the interface for ledger data operations.
//
// The mutating methods are atomic: the balance check, the balance update,
// and the history append happen as one unit, and a failure leaves no
// partial state behind. Mutations to the same account are serialized by
// the implementation; different accounts do not contend.
type Repository interface {
	// GetWallet retrieves a wallet by account and kind.
	// Returns ErrWalletNotFound when the wallet has never been written.
	GetWallet(ctx context.Context, accountID string, kind entities.EconomyKind) (*entities.Wallet, error)

	// CreateWallet creates a wallet seeded with initialBalance only if it
	// does not already exist, writing an INIT ledger entry for a positive
	// seed in the same unit. Returns the wallet and whether it was created;
	// an existing wallet is returned unchanged.
	CreateWallet(ctx context.Context, accountID string, kind entities.EconomyKind, initialBalance int64) (*entities.Wallet, bool, error)

	// ApplyDelta atomically applies a signed delta to a wallet, creating
	// the wallet at zero when missing, and appends a ledger entry with the
	// resulting balance. A delta that would drive the balance negative
	// returns *InsufficientBalanceError and changes nothing. A duplicate
	// ClientRequestID returns ErrDuplicateRequest.
	ApplyDelta(ctx context.Context, params ApplyParams) (*entities.LedgerEntry, error)

	// ApplyDeltaWithCap behaves like ApplyDelta for a negative delta, but
	// additionally enforces a per-day usage ceiling: when the day's usage
	// plus the spend would exceed limit it returns *CapExceededError, else
	// it increments the usage in the same unit. Returns the entry and the
	// usage after the spend.
	ApplyDeltaWithCap(ctx context.Context, params ApplyParams, dateKey string, limit int64) (*entities.LedgerEntry, int64, error)

	// SyncDailyEarned reconciles a client-reported cumulative earned-today
	// value against the recorded high-water mark for (account, kind,
	// dateKey). Only a positive difference is applied as an earn delta;
	// a stale or equal report is a no-op returning (nil, 0, nil). The
	// entry's metadata is filled with the sync details. params.Delta is
	// ignored; the difference is computed here.
	SyncDailyEarned(ctx context.Context, params ApplyParams, dateKey string, reported int64) (*entities.LedgerEntry, int64, error)

	// GetEntryByRequestID retrieves the entry recorded for an idempotency
	// key. Returns ErrEntryNotFound when no entry carries the key.
	GetEntryByRequestID(ctx context.Context, accountID string, kind entities.EconomyKind, requestID string) (*entities.LedgerEntry, error)

	// GetEntries retrieves the most recent entries for an account and kind.
	GetEntries(ctx context.Context, accountID string, kind entities.EconomyKind, limit int) ([]*entities.LedgerEntry, error)

	// GetDailyUsage retrieves the capped usage recorded for a date.
	GetDailyUsage(ctx context.Context, accountID, dateKey string) (int64, error)

	// GetEntriesAfter retrieves up to limit entries with ID greater than
	// afterID and created no later than cutoff, in ID order. Used by the
	// history archiver.
	GetEntriesAfter(ctx context.Context, afterID int64, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error)

	// Close releases any underlying resources.
	Close() error
}
