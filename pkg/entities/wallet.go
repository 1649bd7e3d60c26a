package entities

import (
	"time"
)

// EconomyKind identifies which spendable resource a balance or ledger
// entry belongs to.
type EconomyKind string

const (
	KindCoin  EconomyKind = "coin"
	KindStamp EconomyKind = "stamp"
)

// Valid reports whether the kind is one of the known economy kinds.
func (k EconomyKind) Valid() bool {
	return k == KindCoin || k == KindStamp
}

// Wallet represents an account's balance for one economy kind.
// Wallets are created lazily on first access and never deleted.
type Wallet struct {
	AccountID   string      // Opaque identifier supplied by external auth
	Kind        EconomyKind // Which economy this balance belongs to
	Balance     int64       // Current balance, never negative
	TotalEarned int64       // Running sum of positive deltas, monotonic
	LastUpdated time.Time   // When the wallet was last updated
}
