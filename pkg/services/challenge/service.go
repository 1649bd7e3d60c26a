package challenge

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadedpez/caminata/pkg/entities"
	challengeRepo "github.com/fadedpez/caminata/pkg/repositories/challenge"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

var (
	// ErrUnknownKey is returned when the reward key is not in the catalog.
	ErrUnknownKey = errors.New("unknown reward key")

	// ErrInvalidPeriod is returned when a monthly claim carries an
	// out-of-range year or month.
	ErrInvalidPeriod = errors.New("invalid claim period")
)

// IncompleteError is returned when a completion-style challenge has not
// met its prerequisite claim count yet.
type IncompleteError struct {
	Key       string
	Requires  string
	Threshold int
	Completed int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("challenge %s incomplete: %d of %d %s claims", e.Key, e.Completed, e.Threshold, e.Requires)
}

// ClaimResult describes what a claim granted. Idempotent is true when the
// claim already existed and no new effect was applied.
type ClaimResult struct {
	Key        string
	PeriodKey  string
	Reward     entities.RewardType
	Coins      int64  // Amount granted for coin rewards
	Balance    int64  // Coin balance after the grant, for coin rewards
	Feature    string // Feature identifier for unlock rewards
	Idempotent bool
}

// Service is the challenge reward engine: a claim registry that, on first
// successful claim, disburses a coin reward or marks a feature unlocked.
// The claim row's uniqueness constraint makes the grant exactly-once; the
// coin disbursement carries a deterministic request ID so even a crash
// between insert and disburse cannot double-pay on retry.
type Service struct {
	catalog *Catalog
	repo    challengeRepo.Repository
	coins   wallet.WalletService
}

// NewService creates a new challenge service
func NewService(catalog *Catalog, repo challengeRepo.Repository, coins wallet.WalletService) *Service {
	return &Service{catalog: catalog, repo: repo, coins: coins}
}

// Claim grants the reward for key to the account, at most once per period.
func (s *Service) Claim(ctx context.Context, accountID, key string, year, month int, clientRequestID string) (*ClaimResult, error) {
	def, ok := s.catalog.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	periodKey, err := periodKeyFor(def, year, month)
	if err != nil {
		return nil, err
	}

	if def.Requires != "" {
		completed, err := s.repo.CountClaims(ctx, accountID, def.Requires)
		if err != nil {
			return nil, err
		}
		if completed < def.Threshold {
			return nil, &IncompleteError{
				Key:       key,
				Requires:  def.Requires,
				Threshold: def.Threshold,
				Completed: completed,
			}
		}
	}

	existing, err := s.repo.GetClaim(ctx, accountID, key, periodKey)
	if err == nil {
		return s.idempotentResult(ctx, accountID, def, existing)
	}
	if !errors.Is(err, challengeRepo.ErrClaimNotFound) {
		return nil, err
	}

	claim := &entities.ChallengeClaim{
		AccountID:       accountID,
		Key:             key,
		PeriodKey:       periodKey,
		ClientRequestID: clientRequestID,
	}
	err = s.repo.InsertClaim(ctx, claim)
	if errors.Is(err, challengeRepo.ErrDuplicateClaim) {
		// A concurrent claim won the uniqueness constraint; fall back to
		// the winner rather than surfacing a conflict.
		winner, err := s.repo.GetClaim(ctx, accountID, key, periodKey)
		if err != nil {
			return nil, err
		}
		return s.idempotentResult(ctx, accountID, def, winner)
	}
	if err != nil {
		return nil, err
	}

	return s.applyReward(ctx, accountID, def, claim)
}

// Unlocks returns the feature identifiers unlocked by the account's
// claimed cumulative challenges, derived on demand.
func (s *Service) Unlocks(ctx context.Context, accountID string) ([]string, error) {
	claims, err := s.repo.ListClaims(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var features []string
	for _, claim := range claims {
		def, ok := s.catalog.Get(claim.Key)
		if !ok || def.Reward != entities.RewardUnlock {
			continue
		}
		features = append(features, def.Feature)
	}
	return features, nil
}

// applyReward disburses a freshly inserted claim's reward
func (s *Service) applyReward(ctx context.Context, accountID string, def *entities.ChallengeDefinition, claim *entities.ChallengeClaim) (*ClaimResult, error) {
	result := &ClaimResult{
		Key:       def.Key,
		PeriodKey: claim.PeriodKey,
		Reward:    def.Reward,
	}

	switch def.Reward {
	case entities.RewardCoin:
		earn, err := s.disburse(ctx, accountID, def, claim)
		if err != nil {
			return nil, err
		}
		result.Coins = def.Coins
		result.Balance = earn.Entry.BalanceAfter
	case entities.RewardUnlock:
		result.Feature = def.Feature
	}

	return result, nil
}

// idempotentResult reports an already-claimed challenge. Coin rewards
// re-issue the disbursement under its deterministic request ID: a payment
// that already applied replays as a no-op, and a payment lost between the
// claim insert and the coin credit is completed on this retry.
func (s *Service) idempotentResult(ctx context.Context, accountID string, def *entities.ChallengeDefinition, claim *entities.ChallengeClaim) (*ClaimResult, error) {
	result := &ClaimResult{
		Key:        def.Key,
		PeriodKey:  claim.PeriodKey,
		Reward:     def.Reward,
		Idempotent: true,
	}

	switch def.Reward {
	case entities.RewardCoin:
		earn, err := s.disburse(ctx, accountID, def, claim)
		if err != nil {
			return nil, err
		}
		result.Coins = def.Coins
		result.Balance = earn.Entry.BalanceAfter
	case entities.RewardUnlock:
		result.Feature = def.Feature
	}

	return result, nil
}

// disburse credits a claim's coin reward under its deterministic request ID
func (s *Service) disburse(ctx context.Context, accountID string, def *entities.ChallengeDefinition, claim *entities.ChallengeClaim) (*ledgersvc.Result, error) {
	return s.coins.GrantChallenge(ctx, accountID, def.Coins, def.Key, claim.PeriodKey,
		rewardRequestID(def.Key, claim.PeriodKey))
}

// periodKeyFor computes the claim's period scope: a formatted year-month
// for monthly keys, the empty string for cumulative ones.
func periodKeyFor(def *entities.ChallengeDefinition, year, month int) (string, error) {
	if def.Mode != entities.ModeMonthly {
		return "", nil
	}
	if year < 2000 || year > 2100 || month < 1 || month > 12 {
		return "", fmt.Errorf("%w: year=%d month=%d", ErrInvalidPeriod, year, month)
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

// rewardRequestID derives the idempotency key for a claim's coin
// disbursement. Request IDs are scoped per account, so the key and period
// are enough to make the grant exactly-once.
func rewardRequestID(key, periodKey string) string {
	if periodKey == "" {
		return "challenge:" + key
	}
	return "challenge:" + key + ":" + periodKey
}
