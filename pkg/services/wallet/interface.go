package wallet

import (
	"context"

	"github.com/fadedpez/caminata/pkg/entities"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
)

// WalletService is the operation surface of one economy's wallet. The
// challenge engine and the HTTP layer depend on this interface rather
// than the concrete service.
type WalletService interface {
	// RegisterIfMissing creates the wallet only if absent, seeding it with
	// a client-supplied pre-migration balance (negative values clamped to
	// zero). Returns the wallet and whether it was created; an existing
	// wallet is returned unchanged even on a creation race.
	RegisterIfMissing(ctx context.Context, accountID string, initialBalance int64) (*entities.Wallet, bool, error)

	// Earn adds amount to the balance
	Earn(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*ledgersvc.Result, error)

	// Spend subtracts amount from the balance, failing when it would go negative
	Spend(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*ledgersvc.Result, error)

	// GrantChallenge credits a challenge reward, typed CHALLENGE with the
	// key and period recorded in the entry metadata
	GrantChallenge(ctx context.Context, accountID string, amount int64, key, periodKey, clientRequestID string) (*ledgersvc.Result, error)

	// Balance retrieves the wallet; a wallet never written reads as zero
	Balance(ctx context.Context, accountID string) (*entities.Wallet, error)

	// History retrieves the most recent ledger entries
	History(ctx context.Context, accountID string, limit int) ([]*entities.LedgerEntry, error)
}
