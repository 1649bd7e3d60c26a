package dailycap

import (
	"context"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

// Result is the outcome of a capped spend
type Result struct {
	Balance    int64 // Coin balance after the spend
	Used       int64 // Cumulative capped usage for the day
	Limit      int64 // Configured daily ceiling
	Remaining  int64 // Limit minus Used
	EntryID    int64 // Ledger entry the spend produced
	Idempotent bool  // True when the request ID was seen before
}

// Service enforces a per-account, per-day ceiling on coin spends made
// through it. The cap check, the spend, and the usage increment are one
// atomic unit in the repository; the limit itself is configuration.
type Service struct {
	ledger *ledgersvc.Service
	limit  int64
	now    func() time.Time
}

// NewService creates a new daily cap service with the configured limit
func NewService(ledger *ledgersvc.Service, limit int64) *Service {
	return &Service{ledger: ledger, limit: limit, now: time.Now}
}

// Use spends amount of coins within today's cap
func (s *Service) Use(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*Result, error) {
	if amount <= 0 {
		return nil, wallet.ErrNonPositiveAmount
	}

	dateKey := s.now().UTC().Format("2006-01-02")

	result, used, err := s.ledger.ApplyWithCap(ctx, ledgerRepo.ApplyParams{
		AccountID:       accountID,
		Kind:            entities.KindCoin,
		Delta:           -amount,
		Type:            entities.EntryTypeSpend,
		Reason:          reason,
		ClientRequestID: clientRequestID,
	}, dateKey, s.limit)
	if err != nil {
		return nil, err
	}

	return &Result{
		Balance:    result.Entry.BalanceAfter,
		Used:       used,
		Limit:      s.limit,
		Remaining:  s.limit - used,
		EntryID:    result.Entry.ID,
		Idempotent: result.Idempotent,
	}, nil
}

// Remaining reports how much of today's cap an account has left
func (s *Service) Remaining(ctx context.Context, accountID string) (int64, error) {
	dateKey := s.now().UTC().Format("2006-01-02")
	used, err := s.ledger.Used(ctx, accountID, dateKey)
	if err != nil {
		return 0, err
	}
	return s.limit - used, nil
}

// Limit returns the configured daily ceiling
func (s *Service) Limit() int64 {
	return s.limit
}
