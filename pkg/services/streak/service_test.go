package streak

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streakRepo "github.com/fadedpez/caminata/pkg/repositories/streak"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(streakRepo.NewMemoryRepository())
}

func TestRecordSequence(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	// First ever activity starts a streak of one
	result, err := service.Record(ctx, "user1", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Current)
	assert.Equal(t, 1, result.Longest)

	// Consecutive day extends
	result, err = service.Record(ctx, "user1", "2024-06-02")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Current)
	assert.Equal(t, 2, result.Longest)

	// Same day is a no-op
	result, err = service.Record(ctx, "user1", "2024-06-02")
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Equal(t, 2, result.Current)

	// A gap resets current but longest survives
	result, err = service.Record(ctx, "user1", "2024-06-05")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Current)
	assert.Equal(t, 2, result.Longest)

	result, err = service.Record(ctx, "user1", "2024-06-06")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Current)

	result, err = service.Record(ctx, "user1", "2024-06-07")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Current)
	assert.Equal(t, 3, result.Longest)
}

func TestRecordBackdatedIsNoOp(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Record(ctx, "user1", "2024-06-05")
	require.NoError(t, err)

	// An out-of-order report never rewrites history
	result, err := service.Record(ctx, "user1", "2024-06-03")
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Equal(t, 1, result.Current)
	assert.Equal(t, "2024-06-05", result.LastActiveDate)
}

func TestRecordRejectsBadDate(t *testing.T) {
	service := newTestService(t)

	_, err := service.Record(context.Background(), "user1", "June 5th")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSeedImportsClientStreak(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	result, err := service.Seed(ctx, "user1", 12, 30, "2024-05-31")
	require.NoError(t, err)
	assert.Equal(t, 12, result.Current)
	assert.Equal(t, 30, result.Longest)
	assert.Equal(t, "2024-05-31", result.LastActiveDate)

	// Activity the next day continues the imported streak
	result, err = service.Record(ctx, "user1", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 13, result.Current)
	assert.Equal(t, 30, result.Longest)
}

func TestSeedMergeIsMonotonic(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Seed(ctx, "user1", 10, 20, "2024-06-01")
	require.NoError(t, err)

	// A weaker seed changes nothing
	result, err := service.Seed(ctx, "user1", 3, 5, "2024-05-01")
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Equal(t, 10, result.Current)
	assert.Equal(t, 20, result.Longest)
	assert.Equal(t, "2024-06-01", result.LastActiveDate)

	// A stronger seed only moves fields up
	result, err = service.Seed(ctx, "user1", 15, 18, "2024-06-03")
	require.NoError(t, err)
	assert.False(t, result.Idempotent)
	assert.Equal(t, 15, result.Current)
	assert.Equal(t, 20, result.Longest)
	assert.Equal(t, "2024-06-03", result.LastActiveDate)
}

func TestSeedLongestNeverBelowCurrent(t *testing.T) {
	service := newTestService(t)

	result, err := service.Seed(context.Background(), "user1", 9, 4, "")
	require.NoError(t, err)
	assert.Equal(t, 9, result.Current)
	assert.Equal(t, 9, result.Longest)
}

func TestSeedValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Seed(ctx, "user1", -1, 5, "")
	assert.ErrorIs(t, err, ErrNegativeStreak)

	_, err = service.Seed(ctx, "user1", 1, 5, "yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSeedWithoutDateThenRecord(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Seed(ctx, "user1", 7, 7, "")
	require.NoError(t, err)

	// First dated activity keeps the seeded count rather than resetting
	result, err := service.Record(ctx, "user1", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 7, result.Current)
	assert.Equal(t, "2024-06-01", result.LastActiveDate)
}

func TestGetUnknownAccountReadsZero(t *testing.T) {
	service := newTestService(t)

	streak, err := service.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, streak.Current)
	assert.Zero(t, streak.Longest)
	assert.Empty(t, streak.LastActiveDate)
}
