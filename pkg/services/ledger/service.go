package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadedpez/caminata/pkg/entities"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
)

var (
	// ErrZeroDelta is returned when an apply is attempted with delta == 0.
	ErrZeroDelta = errors.New("delta cannot be zero")
)

// Result is the outcome of one apply. Idempotent is true when the entry
// was recorded by an earlier call carrying the same client request ID.
type Result struct {
	Entry      *entities.LedgerEntry
	Idempotent bool
}

// Service is the generic, economy-agnostic apply-delta engine. The wallet
// services and the daily cap tracker are built on it.
//
// Idempotency races are resolved here: when a concurrent duplicate loses
// the repository's uniqueness constraint, the winner's entry is re-read
// and returned as an idempotent success. Callers never see the conflict.
type Service struct {
	repo ledgerRepo.Repository
}

// NewService creates a new ledger service
func NewService(repo ledgerRepo.Repository) *Service {
	return &Service{repo: repo}
}

// Apply atomically applies a signed delta to an account's balance and
// appends a ledger entry.
func (s *Service) Apply(ctx context.Context, params ledgerRepo.ApplyParams) (*Result, error) {
	if params.Delta == 0 {
		return nil, ErrZeroDelta
	}

	if result, err := s.checkRequestID(ctx, params); result != nil || err != nil {
		return result, err
	}

	entry, err := s.repo.ApplyDelta(ctx, params)
	if errors.Is(err, ledgerRepo.ErrDuplicateRequest) {
		return s.readWinner(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Entry: entry}, nil
}

// ApplyWithCap applies a spend under a per-day usage ceiling. Returns the
// apply result and the day's usage after the spend.
func (s *Service) ApplyWithCap(ctx context.Context, params ledgerRepo.ApplyParams, dateKey string, limit int64) (*Result, int64, error) {
	if params.Delta == 0 {
		return nil, 0, ErrZeroDelta
	}

	if result, err := s.checkRequestID(ctx, params); result != nil || err != nil {
		if result != nil {
			// The original call recorded the usage in the entry metadata
			return result, cappedUsage(result.Entry), err
		}
		return nil, 0, err
	}

	entry, used, err := s.repo.ApplyDeltaWithCap(ctx, params, dateKey, limit)
	if errors.Is(err, ledgerRepo.ErrDuplicateRequest) {
		result, err := s.readWinner(ctx, params)
		if err != nil {
			return nil, 0, err
		}
		return result, cappedUsage(result.Entry), nil
	}
	if err != nil {
		return nil, 0, err
	}

	return &Result{Entry: entry}, used, nil
}

// SyncDaily reconciles a client-reported cumulative earned-today value.
// Returns the apply result (nil entry when nothing was added) and the
// amount added.
func (s *Service) SyncDaily(ctx context.Context, params ledgerRepo.ApplyParams, dateKey string, reported int64) (*Result, int64, error) {
	if result, err := s.checkRequestID(ctx, params); result != nil || err != nil {
		if result != nil {
			return result, result.Entry.Delta, err
		}
		return nil, 0, err
	}

	entry, added, err := s.repo.SyncDailyEarned(ctx, params, dateKey, reported)
	if errors.Is(err, ledgerRepo.ErrDuplicateRequest) {
		result, err := s.readWinner(ctx, params)
		if err != nil {
			return nil, 0, err
		}
		return result, result.Entry.Delta, nil
	}
	if err != nil {
		return nil, 0, err
	}

	return &Result{Entry: entry}, added, nil
}

// Balance retrieves the wallet for an account and kind. A wallet that has
// never been written reads as zero, matching the lazy-creation model.
func (s *Service) Balance(ctx context.Context, accountID string, kind entities.EconomyKind) (*entities.Wallet, error) {
	wallet, err := s.repo.GetWallet(ctx, accountID, kind)
	if errors.Is(err, ledgerRepo.ErrWalletNotFound) {
		return &entities.Wallet{AccountID: accountID, Kind: kind}, nil
	}
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Register creates a wallet seeded with initialBalance only if absent
func (s *Service) Register(ctx context.Context, accountID string, kind entities.EconomyKind, initialBalance int64) (*entities.Wallet, bool, error) {
	return s.repo.CreateWallet(ctx, accountID, kind, initialBalance)
}

// Used retrieves the capped usage recorded for an account on a date
func (s *Service) Used(ctx context.Context, accountID, dateKey string) (int64, error) {
	return s.repo.GetDailyUsage(ctx, accountID, dateKey)
}

// Entries retrieves the most recent ledger entries for an account and kind
func (s *Service) Entries(ctx context.Context, accountID string, kind entities.EconomyKind, limit int) ([]*entities.LedgerEntry, error) {
	return s.repo.GetEntries(ctx, accountID, kind, limit)
}

// checkRequestID short-circuits when the request ID has already been
// recorded. Returns (nil, nil) when the apply should proceed.
func (s *Service) checkRequestID(ctx context.Context, params ledgerRepo.ApplyParams) (*Result, error) {
	if params.ClientRequestID == "" {
		return nil, nil
	}

	entry, err := s.repo.GetEntryByRequestID(ctx, params.AccountID, params.Kind, params.ClientRequestID)
	if err == nil {
		return &Result{Entry: entry, Idempotent: true}, nil
	}
	if !errors.Is(err, ledgerRepo.ErrEntryNotFound) {
		return nil, err
	}
	return nil, nil
}

// readWinner re-reads the entry recorded by the concurrent duplicate that
// won the uniqueness constraint.
func (s *Service) readWinner(ctx context.Context, params ledgerRepo.ApplyParams) (*Result, error) {
	entry, err := s.repo.GetEntryByRequestID(ctx, params.AccountID, params.Kind, params.ClientRequestID)
	if err != nil {
		return nil, fmt.Errorf("error resolving duplicate request %q: %w", params.ClientRequestID, err)
	}
	return &Result{Entry: entry, Idempotent: true}, nil
}

// cappedUsage extracts the day's usage recorded in a capped entry's metadata
func cappedUsage(entry *entities.LedgerEntry) int64 {
	if entry.Metadata != nil && entry.Metadata.Cap != nil {
		return entry.Metadata.Cap.Used
	}
	return 0
}
