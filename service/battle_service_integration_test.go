package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coliseum/config"
	"coliseum/events"
	"coliseum/models"
	"coliseum/repository"
	"coliseum/repository/testutil"
	"coliseum/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBattleService_GiftsNeverLandAfterSettlement(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	ledgerService := service.NewLedgerService(factory)
	battleService := service.NewBattleService(factory)
	userRepo := repository.NewUserRepository(testDB.DB)
	battleRepo := repository.NewBattleRepository(testDB.DB)

	host := testutil.CreateTestUser("battle-host")
	challenger := testutil.CreateTestUser("battle-challenger")
	gifter := testutil.CreateTestUser("battle-gifter")
	for _, u := range []*models.User{host, challenger, gifter} {
		_, err := userRepo.Create(ctx, u.ID, u.Username)
		require.NoError(t, err)
	}
	_, err := ledgerService.Credit(ctx, gifter.ID, 10000, models.CoinKindPaid, models.TransactionTypePurchase, nil, nil)
	require.NoError(t, err)

	battle, err := battleService.Start(ctx, host.ID, challenger.ID, nil, nil)
	require.NoError(t, err)

	// One goroutine streams gifts while settlement lands mid-stream.
	// The battle row lock forces each gift to either score before the
	// settlement or fail after it.
	var mu sync.Mutex
	var scored int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 30; i++ {
			_, err := battleService.ApplyGift(ctx, battle.ID, gifter.ID, models.BattleSideHost, 10, models.CoinKindPaid)
			if err != nil {
				if !errors.Is(err, service.ErrPreconditionFailed) {
					t.Errorf("unexpected gift error: %v", err)
				}
				return
			}
			mu.Lock()
			scored += 10
			mu.Unlock()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err = battleService.Complete(ctx, battle.ID)
	require.NoError(t, err)
	wg.Wait()

	stored, err := battleRepo.GetByID(ctx, battle.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.BattleStatusCompleted, stored.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, scored, stored.HostTotal)

	// Gifting a settled battle is rejected outright
	_, err = battleService.ApplyGift(ctx, battle.ID, gifter.ID, models.BattleSideHost, 10, models.CoinKindPaid)
	assert.ErrorIs(t, err, service.ErrPreconditionFailed)
}
