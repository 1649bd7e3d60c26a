package challenge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fadedpez/caminata/pkg/entities"
)

// Both implementations must behave identically.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()

	sqliteRepo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteRepo.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestInsertAndGetClaim(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			claim := &entities.ChallengeClaim{
				AccountID: "user1",
				Key:       "monthly_start",
				PeriodKey: "2024-06",
			}
			require.NoError(t, repo.InsertClaim(ctx, claim))
			assert.NotEmpty(t, claim.ID)
			assert.False(t, claim.ClaimedAt.IsZero())

			got, err := repo.GetClaim(ctx, "user1", "monthly_start", "2024-06")
			require.NoError(t, err)
			assert.Equal(t, claim.ID, got.ID)

			_, err = repo.GetClaim(ctx, "user1", "monthly_start", "2024-07")
			assert.ErrorIs(t, err, ErrClaimNotFound)
		})
	}
}

func TestInsertClaimDuplicate(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := &entities.ChallengeClaim{AccountID: "user1", Key: "monthly_start", PeriodKey: "2024-06"}
			require.NoError(t, repo.InsertClaim(ctx, first))

			dup := &entities.ChallengeClaim{AccountID: "user1", Key: "monthly_start", PeriodKey: "2024-06"}
			assert.ErrorIs(t, repo.InsertClaim(ctx, dup), ErrDuplicateClaim)

			// Different period or account is fine
			other := &entities.ChallengeClaim{AccountID: "user1", Key: "monthly_start", PeriodKey: "2024-07"}
			assert.NoError(t, repo.InsertClaim(ctx, other))
			other = &entities.ChallengeClaim{AccountID: "user2", Key: "monthly_start", PeriodKey: "2024-06"}
			assert.NoError(t, repo.InsertClaim(ctx, other))
		})
	}
}

func TestCountAndListClaims(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, period := range []string{"2024-05", "2024-06", "2024-07"} {
				claim := &entities.ChallengeClaim{AccountID: "user1", Key: "monthly_start", PeriodKey: period}
				require.NoError(t, repo.InsertClaim(ctx, claim))
			}
			badge := &entities.ChallengeClaim{AccountID: "user1", Key: "bronze_badge"}
			require.NoError(t, repo.InsertClaim(ctx, badge))

			count, err := repo.CountClaims(ctx, "user1", "monthly_start")
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			count, err = repo.CountClaims(ctx, "user1", "silver_badge")
			require.NoError(t, err)
			assert.Zero(t, count)

			claims, err := repo.ListClaims(ctx, "user1")
			require.NoError(t, err)
			assert.Len(t, claims, 4)

			claims, err = repo.ListClaims(ctx, "user2")
			require.NoError(t, err)
			assert.Empty(t, claims)
		})
	}
}
