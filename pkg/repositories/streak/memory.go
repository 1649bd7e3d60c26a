package streak

import (
	"context"
	"sync"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
)

// MemoryRepository implements Repository using in-memory storage
type MemoryRepository struct {
	streaks map[string]*entities.Streak
	mu      sync.RWMutex
}

// NewMemoryRepository creates a new in-memory streak repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		streaks: make(map[string]*entities.Streak),
	}
}

// GetStreak retrieves the streak record for an account
func (r *MemoryRepository) GetStreak(ctx context.Context, accountID string) (*entities.Streak, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streak, exists := r.streaks[accountID]
	if !exists {
		return nil, ErrStreakNotFound
	}

	// Return a copy to prevent concurrent modification
	streakCopy := *streak
	return &streakCopy, nil
}

// SaveStreak creates or updates the streak record for an account
func (r *MemoryRepository) SaveStreak(ctx context.Context, streak *entities.Streak) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	streak.UpdatedAt = time.Now()

	streakCopy := *streak
	r.streaks[streak.AccountID] = &streakCopy

	return nil
}

// Close is a no-op for the in-memory repository
func (r *MemoryRepository) Close() error {
	return nil
}
