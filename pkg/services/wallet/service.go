package wallet

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/fadedpez/caminata/pkg/entities"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrNegativeEarned    = errors.New("earned count cannot be negative")
	ErrInvalidDateKey    = errors.New("date must be formatted YYYY-MM-DD")
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Service handles wallet business logic for one economy kind
type Service struct {
	ledger *ledgersvc.Service
	kind   entities.EconomyKind
}

// NewCoinService creates the wallet service for the coin economy
func NewCoinService(ledger *ledgersvc.Service) *Service {
	return &Service{ledger: ledger, kind: entities.KindCoin}
}

// RegisterIfMissing creates the wallet only if absent
func (s *Service) RegisterIfMissing(ctx context.Context, accountID string, initialBalance int64) (*entities.Wallet, bool, error) {
	if initialBalance < 0 {
		initialBalance = 0
	}
	return s.ledger.Register(ctx, accountID, s.kind, initialBalance)
}

// Earn adds amount to the balance
func (s *Service) Earn(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*ledgersvc.Result, error) {
	return s.apply(ctx, accountID, amount, entities.EntryTypeEarn, reason, clientRequestID)
}

// Spend subtracts amount from the balance
func (s *Service) Spend(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*ledgersvc.Result, error) {
	return s.apply(ctx, accountID, -amount, entities.EntryTypeSpend, reason, clientRequestID)
}

// GrantChallenge credits a challenge reward. The entry is typed CHALLENGE
// and records the challenge key and period in its metadata.
func (s *Service) GrantChallenge(ctx context.Context, accountID string, amount int64, key, periodKey, clientRequestID string) (*ledgersvc.Result, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	return s.ledger.Apply(ctx, ledgerRepo.ApplyParams{
		AccountID: accountID,
		Kind:      s.kind,
		Delta:     amount,
		Type:      entities.EntryTypeChallenge,
		Reason:    "challenge reward: " + key,
		Metadata: &entities.EntryMetadata{
			Challenge: &entities.ChallengeMetadata{Key: key, PeriodKey: periodKey},
		},
		ClientRequestID: clientRequestID,
	})
}

// AdminAdd credits amount outside the normal earn flow, for operator
// adjustments and compensation.
func (s *Service) AdminAdd(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*ledgersvc.Result, error) {
	return s.apply(ctx, accountID, amount, entities.EntryTypeAdminAdd, reason, clientRequestID)
}

func (s *Service) apply(ctx context.Context, accountID string, delta int64, entryType entities.EntryType, reason, clientRequestID string) (*ledgersvc.Result, error) {
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	return s.ledger.Apply(ctx, ledgerRepo.ApplyParams{
		AccountID:       accountID,
		Kind:            s.kind,
		Delta:           delta,
		Type:            entryType,
		Reason:          reason,
		ClientRequestID: clientRequestID,
	})
}

// Balance retrieves the wallet; a wallet never written reads as zero
func (s *Service) Balance(ctx context.Context, accountID string) (*entities.Wallet, error) {
	return s.ledger.Balance(ctx, accountID, s.kind)
}

// History retrieves the most recent ledger entries
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]*entities.LedgerEntry, error) {
	return s.ledger.Entries(ctx, accountID, s.kind, limit)
}

// SyncResult is the outcome of a daily stamp reconciliation
type SyncResult struct {
	Balance    int64 // Balance after the sync
	Added      int64 // Amount credited by this call, zero for a stale report
	Idempotent bool  // True when the request ID was seen before
}

// StampService is the wallet service for the stamp economy. It has the
// same shape as the coin service plus the daily sync reconciliation and
// the monotonic total-earned counter.
type StampService struct {
	Service
}

// NewStampService creates the wallet service for the stamp economy
func NewStampService(ledger *ledgersvc.Service) *StampService {
	return &StampService{Service{ledger: ledger, kind: entities.KindStamp}}
}

// Sync reconciles the client's locally computed cumulative count of stamps
// earned on dateKey. Only a positive difference against the recorded value
// is credited; a stale or smaller report is a no-op. The server never
// subtracts based on a report.
func (s *StampService) Sync(ctx context.Context, accountID, dateKey string, earnedToday int64, clientRequestID string) (*SyncResult, error) {
	if !dateKeyPattern.MatchString(dateKey) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateKey, dateKey)
	}
	if earnedToday < 0 {
		return nil, ErrNegativeEarned
	}

	result, added, err := s.ledger.SyncDaily(ctx, ledgerRepo.ApplyParams{
		AccountID:       accountID,
		Kind:            s.kind,
		Type:            entities.EntryTypeSync,
		Reason:          "daily stamp sync",
		ClientRequestID: clientRequestID,
	}, dateKey, earnedToday)
	if err != nil {
		return nil, err
	}

	if result == nil || result.Entry == nil {
		// Nothing to add; report the current balance
		wallet, err := s.Balance(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &SyncResult{Balance: wallet.Balance}, nil
	}

	return &SyncResult{
		Balance:    result.Entry.BalanceAfter,
		Added:      added,
		Idempotent: result.Idempotent,
	}, nil
}

// TotalEarned returns the monotonic count of stamps ever earned
func (s *StampService) TotalEarned(ctx context.Context, accountID string) (int64, error) {
	wallet, err := s.Balance(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return wallet.TotalEarned, nil
}
