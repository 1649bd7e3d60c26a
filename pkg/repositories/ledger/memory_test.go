package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fadedpez/caminata/pkg/entities"
)

func earnParams(accountID string, amount int64, requestID string) ApplyParams {
	return ApplyParams{
		AccountID:       accountID,
		Kind:            entities.KindCoin,
		Delta:           amount,
		Type:            entities.EntryTypeEarn,
		Reason:          "test earn",
		ClientRequestID: requestID,
	}
}

func TestApplyDeltaCreatesWalletLazily(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	entry, err := repo.ApplyDelta(ctx, earnParams("user1", 100, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.BalanceAfter)
	assert.Equal(t, int64(1), entry.ID)

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)
	assert.Equal(t, int64(100), wallet.TotalEarned)
}

func TestApplyDeltaRejectsOverdraft(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.ApplyDelta(ctx, earnParams("user1", 50, ""))
	require.NoError(t, err)

	_, err = repo.ApplyDelta(ctx, ApplyParams{
		AccountID: "user1",
		Kind:      entities.KindCoin,
		Delta:     -80,
		Type:      entities.EntryTypeSpend,
	})

	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(50), insufficient.Balance)
	assert.Equal(t, int64(80), insufficient.Required)

	// No state change on failure
	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.Balance)

	entries, err := repo.GetEntries(ctx, "user1", entities.KindCoin, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApplyDeltaDuplicateRequestID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.ApplyDelta(ctx, earnParams("user1", 100, "req1"))
	require.NoError(t, err)

	_, err = repo.ApplyDelta(ctx, earnParams("user1", 100, "req1"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// The winner's entry is retrievable by request ID
	winner, err := repo.GetEntryByRequestID(ctx, "user1", entities.KindCoin, "req1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, winner.ID)

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance)
}

func TestCreateWalletIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	wallet, created, err := repo.CreateWallet(ctx, "user1", entities.KindCoin, 30)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(30), wallet.Balance)

	// A seed writes an INIT entry so conservation holds
	entries, err := repo.GetEntries(ctx, "user1", entities.KindCoin, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entities.EntryTypeInit, entries[0].Type)
	assert.Equal(t, int64(30), entries[0].Delta)

	// Second registration makes no change
	wallet, created, err = repo.CreateWallet(ctx, "user1", entities.KindCoin, 999)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(30), wallet.Balance)
}

func TestCreateWalletZeroSeedWritesNoEntry(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, created, err := repo.CreateWallet(ctx, "user1", entities.KindCoin, 0)
	require.NoError(t, err)
	assert.True(t, created)

	entries, err := repo.GetEntries(ctx, "user1", entities.KindCoin, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplyDeltaWithCap(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.ApplyDelta(ctx, earnParams("user1", 1000, ""))
	require.NoError(t, err)

	spend := ApplyParams{
		AccountID: "user1",
		Kind:      entities.KindCoin,
		Delta:     -300,
		Type:      entities.EntryTypeSpend,
	}
	entry, used, err := repo.ApplyDeltaWithCap(ctx, spend, "2024-06-01", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(300), used)
	assert.Equal(t, int64(700), entry.BalanceAfter)
	require.NotNil(t, entry.Metadata)
	require.NotNil(t, entry.Metadata.Cap)
	assert.Equal(t, int64(300), entry.Metadata.Cap.Used)

	// Exceeding the cap changes nothing
	spend.Delta = -250
	_, _, err = repo.ApplyDeltaWithCap(ctx, spend, "2024-06-01", 500)
	var capErr *CapExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(200), capErr.Remaining())

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(700), wallet.Balance)

	used, err = repo.GetDailyUsage(ctx, "user1", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, int64(300), used)

	// A different date starts fresh
	used, err = repo.GetDailyUsage(ctx, "user1", "2024-06-02")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestApplyDeltaWithCapDuplicateRequestID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.ApplyDelta(ctx, earnParams("user1", 1000, ""))
	require.NoError(t, err)

	spend := ApplyParams{
		AccountID:       "user1",
		Kind:            entities.KindCoin,
		Delta:           -300,
		Type:            entities.EntryTypeSpend,
		ClientRequestID: "cap1",
	}
	_, _, err = repo.ApplyDeltaWithCap(ctx, spend, "2024-06-01", 500)
	require.NoError(t, err)

	// A duplicate that would now exceed the cap is still a duplicate, not
	// a cap failure
	_, _, err = repo.ApplyDeltaWithCap(ctx, spend, "2024-06-01", 500)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	used, err := repo.GetDailyUsage(ctx, "user1", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, int64(300), used)

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(700), wallet.Balance)
}

func TestSyncDailyEarnedDuplicateRequestID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	params := ApplyParams{
		AccountID:       "user1",
		Kind:            entities.KindStamp,
		Type:            entities.EntryTypeSync,
		ClientRequestID: "sync1",
	}

	_, added, err := repo.SyncDailyEarned(ctx, params, "2024-06-01", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), added)

	// A duplicate reporting the same value is a duplicate, not a fresh
	// stale-report no-op
	_, _, err = repo.SyncDailyEarned(ctx, params, "2024-06-01", 5)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	winner, err := repo.GetEntryByRequestID(ctx, "user1", entities.KindStamp, "sync1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), winner.Delta)
}

func TestSyncDailyEarnedHighWaterMark(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	params := ApplyParams{
		AccountID: "user1",
		Kind:      entities.KindStamp,
		Type:      entities.EntryTypeSync,
	}

	entry, added, err := repo.SyncDailyEarned(ctx, params, "2024-06-01", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), added)
	assert.Equal(t, int64(5), entry.BalanceAfter)

	// Larger report applies only the difference
	entry, added, err = repo.SyncDailyEarned(ctx, params, "2024-06-01", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(3), added)
	assert.Equal(t, int64(8), entry.BalanceAfter)
	require.NotNil(t, entry.Metadata.Sync)
	assert.Equal(t, int64(5), entry.Metadata.Sync.Previous)

	// Stale report is a no-op, never subtracts
	entry, added, err = repo.SyncDailyEarned(ctx, params, "2024-06-01", 6)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, added)

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindStamp)
	require.NoError(t, err)
	assert.Equal(t, int64(8), wallet.Balance)
	assert.Equal(t, int64(8), wallet.TotalEarned)
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.ApplyDelta(ctx, earnParams("user1", 100, ""))
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	successes := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyDelta(ctx, ApplyParams{
				AccountID: "user1",
				Kind:      entities.KindCoin,
				Delta:     -30,
				Type:      entities.EntryTypeSpend,
			})
			if err == nil {
				successes <- 30
			}
		}()
	}
	wg.Wait()
	close(successes)

	var spent int64
	for amount := range successes {
		spent += amount
	}
	// floor(100/30) = 3 spends succeed
	assert.Equal(t, int64(90), spent)

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, int64(10), wallet.Balance)
}

func TestConservation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	deltas := []int64{100, -40, 25, -5, 60}
	for _, delta := range deltas {
		entryType := entities.EntryTypeEarn
		if delta < 0 {
			entryType = entities.EntryTypeSpend
		}
		_, err := repo.ApplyDelta(ctx, ApplyParams{
			AccountID: "user1",
			Kind:      entities.KindCoin,
			Delta:     delta,
			Type:      entryType,
		})
		require.NoError(t, err)
	}

	entries, err := repo.GetEntries(ctx, "user1", entities.KindCoin, 100)
	require.NoError(t, err)

	var sum int64
	for _, entry := range entries {
		sum += entry.Delta
	}

	wallet, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, sum, "balance must equal the sum of all ledger deltas")
}

func TestKindsAreIndependent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.ApplyDelta(ctx, earnParams("user1", 100, ""))
	require.NoError(t, err)

	_, err = repo.ApplyDelta(ctx, ApplyParams{
		AccountID: "user1",
		Kind:      entities.KindStamp,
		Delta:     7,
		Type:      entities.EntryTypeEarn,
	})
	require.NoError(t, err)

	coins, err := repo.GetWallet(ctx, "user1", entities.KindCoin)
	require.NoError(t, err)
	stamps, err := repo.GetWallet(ctx, "user1", entities.KindStamp)
	require.NoError(t, err)

	assert.Equal(t, int64(100), coins.Balance)
	assert.Equal(t, int64(7), stamps.Balance)
}
