package dailycap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fadedpez/caminata/pkg/entities"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

func newTestService(t *testing.T, limit int64) (*Service, *ledgersvc.Service) {
	t.Helper()
	ledger := ledgersvc.NewService(ledgerRepo.NewMemoryRepository())
	service := NewService(ledger, limit)
	service.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return service, ledger
}

func fund(t *testing.T, ledger *ledgersvc.Service, accountID string, amount int64) {
	t.Helper()
	_, err := ledger.Apply(context.Background(), ledgerRepo.ApplyParams{
		AccountID: accountID,
		Kind:      entities.KindCoin,
		Delta:     amount,
		Type:      entities.EntryTypeEarn,
	})
	require.NoError(t, err)
}

func TestUseWithinLimit(t *testing.T) {
	service, ledger := newTestService(t, 500)
	ctx := context.Background()
	fund(t, ledger, "user1", 10000)

	result, err := service.Use(ctx, "user1", 300, "premium class", "")
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.Used)
	assert.Equal(t, int64(200), result.Remaining)
	assert.Equal(t, int64(9700), result.Balance)

	// 250 more would exceed; nothing moves
	_, err = service.Use(ctx, "user1", 250, "premium class", "")
	var capErr *ledgerRepo.CapExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(300), capErr.Used)
	assert.Equal(t, int64(200), capErr.Remaining())

	remaining, err := service.Remaining(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), remaining)

	// Exactly the remaining amount is allowed
	result, err = service.Use(ctx, "user1", 200, "premium class", "")
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Used)
	assert.Zero(t, result.Remaining)
}

func TestUseRejectsNonPositiveAmount(t *testing.T) {
	service, _ := newTestService(t, 500)

	_, err := service.Use(context.Background(), "user1", 0, "zero", "")
	assert.ErrorIs(t, err, wallet.ErrNonPositiveAmount)
}

func TestCapResetsAtMidnightUTC(t *testing.T) {
	service, ledger := newTestService(t, 500)
	ctx := context.Background()
	fund(t, ledger, "user1", 10000)

	_, err := service.Use(ctx, "user1", 500, "premium class", "")
	require.NoError(t, err)

	_, err = service.Use(ctx, "user1", 1, "premium class", "")
	var capErr *ledgerRepo.CapExceededError
	require.ErrorAs(t, err, &capErr)

	// Next day, the counter starts over
	service.now = func() time.Time {
		return time.Date(2024, 6, 2, 0, 0, 1, 0, time.UTC)
	}

	result, err := service.Use(ctx, "user1", 500, "premium class", "")
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Used)
}

func TestUseIdempotentReplay(t *testing.T) {
	service, ledger := newTestService(t, 500)
	ctx := context.Background()
	fund(t, ledger, "user1", 10000)

	first, err := service.Use(ctx, "user1", 300, "premium class", "use1")
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	second, err := service.Use(ctx, "user1", 300, "premium class", "use1")
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.EntryID, second.EntryID)
	assert.Equal(t, int64(300), second.Used)
	assert.Equal(t, int64(200), second.Remaining)

	remaining, err := service.Remaining(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), remaining)
}

func TestCapCheckedBeforeBalance(t *testing.T) {
	service, ledger := newTestService(t, 500)
	ctx := context.Background()
	fund(t, ledger, "user1", 100)

	// Balance too small but within the cap: insufficient funds, and the
	// day's usage stays untouched.
	_, err := service.Use(ctx, "user1", 300, "premium class", "")
	var insufficient *ledgerRepo.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)

	remaining, err := service.Remaining(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), remaining)
}
