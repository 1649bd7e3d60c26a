package streak

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fadedpez/caminata/pkg/entities"
)

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

func TestGetStreakNotFound(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetStreak(context.Background(), "ghost")
			assert.ErrorIs(t, err, ErrStreakNotFound)
		})
	}
}

func TestSaveStreakUpserts(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, repo.SaveStreak(ctx, &entities.Streak{
				AccountID:      "user1",
				Current:        1,
				Longest:        1,
				LastActiveDate: "2024-06-01",
			}))

			got, err := repo.GetStreak(ctx, "user1")
			require.NoError(t, err)
			assert.Equal(t, 1, got.Current)
			assert.Equal(t, "2024-06-01", got.LastActiveDate)

			require.NoError(t, repo.SaveStreak(ctx, &entities.Streak{
				AccountID:      "user1",
				Current:        2,
				Longest:        5,
				LastActiveDate: "2024-06-02",
			}))

			got, err = repo.GetStreak(ctx, "user1")
			require.NoError(t, err)
			assert.Equal(t, 2, got.Current)
			assert.Equal(t, 5, got.Longest)
			assert.Equal(t, "2024-06-02", got.LastActiveDate)
		})
	}
}
