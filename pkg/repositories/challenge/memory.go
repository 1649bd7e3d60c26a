package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
	"github.com/google/uuid"
)

// MemoryRepository implements Repository using in-memory storage
type MemoryRepository struct {
	claims    map[string]*entities.ChallengeClaim // account|key|period
	byAccount map[string][]*entities.ChallengeClaim
	mu        sync.RWMutex
}

// NewMemoryRepository creates a new in-memory claim repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		claims:    make(map[string]*entities.ChallengeClaim),
		byAccount: make(map[string][]*entities.ChallengeClaim),
	}
}

func claimKey(accountID, key, periodKey string) string {
	return accountID + "|" + key + "|" + periodKey
}

// GetClaim retrieves the claim for (account, key, period)
func (r *MemoryRepository) GetClaim(ctx context.Context, accountID, key, periodKey string) (*entities.ChallengeClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, exists := r.claims[claimKey(accountID, key, periodKey)]
	if !exists {
		return nil, ErrClaimNotFound
	}

	claimCopy := *claim
	return &claimCopy, nil
}

// InsertClaim records a new claim, enforcing uniqueness per (account, key, period)
func (r *MemoryRepository) InsertClaim(ctx context.Context, claim *entities.ChallengeClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mapKey := claimKey(claim.AccountID, claim.Key, claim.PeriodKey)
	if _, exists := r.claims[mapKey]; exists {
		return ErrDuplicateClaim
	}

	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now()
	}

	claimCopy := *claim
	r.claims[mapKey] = &claimCopy
	r.byAccount[claim.AccountID] = append(r.byAccount[claim.AccountID], &claimCopy)

	return nil
}

// CountClaims counts the claims an account holds for a reward key
func (r *MemoryRepository) CountClaims(ctx context.Context, accountID, key string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, claim := range r.byAccount[accountID] {
		if claim.Key == key {
			count++
		}
	}
	return count, nil
}

// ListClaims retrieves all claims for an account
func (r *MemoryRepository) ListClaims(ctx context.Context, accountID string) ([]*entities.ChallengeClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claims := r.byAccount[accountID]
	result := make([]*entities.ChallengeClaim, 0, len(claims))
	for _, claim := range claims {
		claimCopy := *claim
		result = append(result, &claimCopy)
	}
	return result, nil
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}
