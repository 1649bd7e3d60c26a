package streak

import (
	"context"
	"errors"

	"github.com/fadedpez/caminata/pkg/entities"
)

var (
	// ErrStreakNotFound is returned when an account has no streak record yet.
	ErrStreakNotFound = errors.New("streak not found")
)

// Repository defines the interface for streak data operations
type Repository interface {
	// GetStreak retrieves the streak record for an account
	GetStreak(ctx context.Context, accountID string) (*entities.Streak, error)

	// SaveStreak creates or updates the streak record for an account
	SaveStreak(ctx context.Context, streak *entities.Streak) error

	// Close releases any underlying resources
	Close() error
}
