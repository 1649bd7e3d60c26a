package challenge

import (
	"context"
	"errors"

	"github.com/fadedpez/caminata/pkg/entities"
)

var (
	// ErrClaimNotFound is returned when no claim matches a lookup.
	ErrClaimNotFound = errors.New("challenge claim not found")

	// ErrDuplicateClaim is returned when a claim already exists for the
	// (account, key, period) triple. Callers resolve it by re-reading the
	// winning claim; it is never surfaced to end users.
	ErrDuplicateClaim = errors.New("challenge already claimed")
)

// Repository defines the interface for challenge claim data operations.
// Claims are append-only; there is no delete or update.
type Repository interface {
	// GetClaim retrieves the claim for (account, key, period)
	GetClaim(ctx context.Context, accountID, key, periodKey string) (*entities.ChallengeClaim, error)

	// InsertClaim records a new claim. Returns ErrDuplicateClaim when the
	// (account, key, period) triple already has one.
	InsertClaim(ctx context.Context, claim *entities.ChallengeClaim) error

	// CountClaims counts the claims an account holds for a reward key,
	// across all periods.
	CountClaims(ctx context.Context, accountID, key string) (int, error)

	// ListClaims retrieves all claims for an account
	ListClaims(ctx context.Context, accountID string) ([]*entities.ChallengeClaim, error)

	// Close releases any underlying resources
	Close() error
}
