package repository

import (
	"context"
	"testing"

	"coliseum/models"
	"coliseum/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewLedgerRepository(testDB.DB)
	userRepo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("sender")
	_, err := userRepo.Create(ctx, user.ID, user.Username)
	require.NoError(t, err)

	t.Run("successful record creation", func(t *testing.T) {
		entry := testutil.CreateTestLedgerEntry(user.ID, 500, models.CoinKindPaid, models.TransactionTypePurchase)
		entry.BalanceAfter = 500

		err := repo.Record(ctx, entry)
		require.NoError(t, err)
		assert.NotZero(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	})

	t.Run("duplicate idempotency key is rejected", func(t *testing.T) {
		first := testutil.CreateTestLedgerEntryWithKey(user.ID, 500, models.CoinKindPaid, models.TransactionTypePurchase, "provider:tx-1")
		first.BalanceAfter = 1000
		require.NoError(t, repo.Record(ctx, first))

		second := testutil.CreateTestLedgerEntryWithKey(user.ID, 500, models.CoinKindPaid, models.TransactionTypePurchase, "provider:tx-1")
		second.BalanceAfter = 1500
		err := repo.Record(ctx, second)
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("lookup by idempotency key", func(t *testing.T) {
		found, err := repo.GetByIdempotencyKey(ctx, "provider:tx-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.ID, found.UserID)
		assert.Equal(t, int64(500), found.Amount)

		missing, err := repo.GetByIdempotencyKey(ctx, "provider:tx-unknown")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("entries without keys never collide", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			entry := testutil.CreateTestLedgerEntry(user.ID, -100, models.CoinKindPaid, models.TransactionTypeEntryFee)
			require.NoError(t, repo.Record(ctx, entry))
		}
	})
}

func TestLedgerRepository_SumMatchesProjection(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewLedgerRepository(testDB.DB)
	userRepo := NewUserRepository(testDB.DB)
	balanceRepo := NewBalanceRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("audited")
	_, err := userRepo.Create(ctx, user.ID, user.Username)
	require.NoError(t, err)
	require.NoError(t, balanceRepo.CreateIfAbsent(ctx, user.ID))

	// Apply a handful of movements through both the projection and the ledger
	movements := []struct {
		amount int64
		kind   models.CoinKind
		txType models.TransactionType
	}{
		{1000, models.CoinKindPaid, models.TransactionTypePurchase},
		{-100, models.CoinKindPaid, models.TransactionTypeEntryFee},
		{500, models.CoinKindBonus, models.TransactionTypeWinPayout},
		{-250, models.CoinKindPaid, models.TransactionTypeGiftSent},
	}
	for _, m := range movements {
		var balance int64
		if m.amount > 0 {
			balance, err = balanceRepo.AddCoins(ctx, user.ID, m.kind, m.amount)
		} else {
			balance, err = balanceRepo.DeductCoins(ctx, user.ID, m.kind, -m.amount)
		}
		require.NoError(t, err)

		entry := testutil.CreateTestLedgerEntry(user.ID, m.amount, m.kind, m.txType)
		entry.BalanceAfter = balance
		require.NoError(t, repo.Record(ctx, entry))
	}

	// The ledger sum must equal the projection for each coin kind
	paidSum, err := repo.SumByUser(ctx, user.ID, models.CoinKindPaid)
	require.NoError(t, err)
	bonusSum, err := repo.SumByUser(ctx, user.ID, models.CoinKindBonus)
	require.NoError(t, err)

	projection, err := balanceRepo.GetByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, projection)
	assert.Equal(t, projection.PaidCoins, paidSum)
	assert.Equal(t, projection.BonusCoins, bonusSum)
	assert.Equal(t, int64(650), paidSum)
	assert.Equal(t, int64(500), bonusSum)
}

func TestLedgerRepository_GetByUser(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewLedgerRepository(testDB.DB)
	userRepo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("historied")
	_, err := userRepo.Create(ctx, user.ID, user.Username)
	require.NoError(t, err)

	require.NoError(t, repo.Record(ctx, testutil.CreateTestLedgerEntry(user.ID, 1000, models.CoinKindPaid, models.TransactionTypePurchase)))
	require.NoError(t, repo.Record(ctx, testutil.CreateTestLedgerEntry(user.ID, -100, models.CoinKindPaid, models.TransactionTypeEntryFee)))
	require.NoError(t, repo.Record(ctx, testutil.CreateTestLedgerEntry(user.ID, 500, models.CoinKindBonus, models.TransactionTypeWinPayout)))

	t.Run("unfiltered, newest first", func(t *testing.T) {
		entries, err := repo.GetByUser(ctx, user.ID, models.HistoryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, models.TransactionTypeWinPayout, entries[0].Type)
	})

	t.Run("filtered by type", func(t *testing.T) {
		feeType := models.TransactionTypeEntryFee
		entries, err := repo.GetByUser(ctx, user.ID, models.HistoryFilter{Type: &feeType})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(-100), entries[0].Amount)
	})

	t.Run("stats aggregate", func(t *testing.T) {
		stats, err := repo.GetStats(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stats)
		assert.Equal(t, int64(1000), stats.TotalPurchased)
	})
}

func TestBalanceRepository_DeductCoins_Insufficient(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	userRepo := NewUserRepository(testDB.DB)
	balanceRepo := NewBalanceRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser("broke")
	_, err := userRepo.Create(ctx, user.ID, user.Username)
	require.NoError(t, err)
	require.NoError(t, balanceRepo.CreateIfAbsent(ctx, user.ID))

	_, err = balanceRepo.AddCoins(ctx, user.ID, models.CoinKindPaid, 50)
	require.NoError(t, err)

	_, err = balanceRepo.DeductCoins(ctx, user.ID, models.CoinKindPaid, 100)
	require.Error(t, err)

	// The failed deduction must not have touched the balance
	balance, err := balanceRepo.GetByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance.PaidCoins)
}
