package service

import (
	"context"
	"testing"
	"time"

	"coliseum/config"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupBattleMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockUserRepository, *MockBalanceRepository, *MockLedgerRepository, *MockBattleRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockBalanceRepo := new(MockBalanceRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockBattleRepo := new(MockBattleRepository)

	mockUoW.SetRepositories(mockUserRepo, mockBalanceRepo, mockLedgerRepo, mockBattleRepo, nil, nil, nil)
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return mockFactory, mockUoW, mockUserRepo, mockBalanceRepo, mockLedgerRepo, mockBattleRepo
}

func activeBattle(hostID, challengerID uuid.UUID) *models.Battle {
	now := time.Now()
	return &models.Battle{
		ID:           uuid.New(),
		HostID:       hostID,
		ChallengerID: challengerID,
		Status:       models.BattleStatusActive,
		StartedAt:    now.Add(-time.Minute),
		EndsAt:       now.Add(time.Minute),
	}
}

func TestBattleService_Start(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, mockUoW, mockUserRepo, _, _, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	hostID := uuid.New()
	challengerID := uuid.New()

	mockUserRepo.On("GetByID", ctx, hostID).Return(&models.User{ID: hostID, Username: "host"}, nil)
	mockUserRepo.On("GetByID", ctx, challengerID).Return(&models.User{ID: challengerID, Username: "challenger"}, nil)
	mockBattleRepo.On("Create", ctx, mock.MatchedBy(func(b *models.Battle) bool {
		return b.HostID == hostID &&
			b.ChallengerID == challengerID &&
			b.Status == models.BattleStatusActive
	})).Return(nil)

	battle, err := service.Start(ctx, hostID, challengerID, nil, nil)

	assert.NoError(t, err)
	assert.NotNil(t, battle)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), battle.EndsAt, 5*time.Second)

	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockBattleRepo.AssertExpectations(t)
}

func TestBattleService_Start_SelfBattle(t *testing.T) {
	ctx := context.Background()
	mockFactory := new(MockUnitOfWorkFactory)
	service := NewBattleService(mockFactory)

	userID := uuid.New()
	_, err := service.Start(ctx, userID, userID, nil, nil)

	assert.ErrorIs(t, err, ErrValidation)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestBattleService_ApplyGift_PaidScoresSide(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockBalanceRepo, mockLedgerRepo, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	hostID := uuid.New()
	challengerID := uuid.New()
	senderID := uuid.New()
	battle := activeBattle(hostID, challengerID)

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, senderID).Return(nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, hostID).Return(nil)
	mockBalanceRepo.On("DeductCoins", ctx, senderID, models.CoinKindPaid, int64(300)).Return(int64(700), nil)
	mockBalanceRepo.On("AddCoins", ctx, hostID, models.CoinKindPaid, int64(300)).Return(int64(300), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == senderID && e.Amount == -300 && e.Type == models.TransactionTypeGiftSent
	})).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == hostID && e.Amount == 300 && e.Type == models.TransactionTypeGiftReceived
	})).Return(nil)
	mockBattleRepo.On("RecordGift", ctx, mock.MatchedBy(func(g *models.BattleGift) bool {
		return g.BattleID == battle.ID && g.SenderID == senderID && g.ReceiverSide == models.BattleSideHost && g.Amount == 300 && g.Paid
	})).Return(nil)
	mockBattleRepo.On("AddSideTotal", ctx, battle.ID, models.BattleSideHost, int64(300)).Return(nil)

	updated, err := service.ApplyGift(ctx, battle.ID, senderID, models.BattleSideHost, 300, models.CoinKindPaid)

	assert.NoError(t, err)
	assert.Equal(t, int64(300), updated.HostTotal)
	assert.Equal(t, int64(0), updated.ChallengerTotal)

	mockUoW.AssertExpectations(t)
	mockBalanceRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
	mockBattleRepo.AssertExpectations(t)
}

func TestBattleService_ApplyGift_BonusDoesNotScore(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, mockBalanceRepo, mockLedgerRepo, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	hostID := uuid.New()
	challengerID := uuid.New()
	senderID := uuid.New()
	battle := activeBattle(hostID, challengerID)

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, mock.Anything).Return(nil)
	mockBalanceRepo.On("DeductCoins", ctx, senderID, models.CoinKindBonus, int64(200)).Return(int64(0), nil)
	mockBalanceRepo.On("AddCoins", ctx, challengerID, models.CoinKindBonus, int64(200)).Return(int64(200), nil)
	mockLedgerRepo.On("Record", ctx, mock.Anything).Return(nil)
	mockBattleRepo.On("RecordGift", ctx, mock.MatchedBy(func(g *models.BattleGift) bool {
		return !g.Paid && g.ReceiverSide == models.BattleSideChallenger
	})).Return(nil)

	updated, err := service.ApplyGift(ctx, battle.ID, senderID, models.BattleSideChallenger, 200, models.CoinKindBonus)

	assert.NoError(t, err)
	assert.Equal(t, int64(0), updated.ChallengerTotal)

	// Bonus coins move but never enter the contest score
	mockBattleRepo.AssertNotCalled(t, "AddSideTotal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockBattleRepo.AssertExpectations(t)
}

func TestBattleService_ApplyGift_Expired(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockBalanceRepo, _, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	battle := activeBattle(uuid.New(), uuid.New())
	battle.EndsAt = time.Now().Add(-time.Second)

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)

	_, err := service.ApplyGift(ctx, battle.ID, uuid.New(), models.BattleSideHost, 100, models.CoinKindPaid)

	assert.ErrorIs(t, err, ErrPreconditionFailed)
	mockBalanceRepo.AssertNotCalled(t, "DeductCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestBattleService_ApplyGift_SettledBattle(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, mockBalanceRepo, _, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	hostID := uuid.New()
	battle := activeBattle(hostID, uuid.New())
	battle.Status = models.BattleStatusCompleted
	battle.WinnerID = &hostID

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)

	_, err := service.ApplyGift(ctx, battle.ID, uuid.New(), models.BattleSideHost, 100, models.CoinKindPaid)

	assert.ErrorIs(t, err, ErrPreconditionFailed)
	mockBalanceRepo.AssertNotCalled(t, "DeductCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockBattleRepo.AssertNotCalled(t, "AddSideTotal", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestBattleService_ApplyGift_OwnSide(t *testing.T) {
	ctx := context.Background()
	mockFactory, _, _, mockBalanceRepo, _, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	battle := activeBattle(uuid.New(), uuid.New())
	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)

	_, err := service.ApplyGift(ctx, battle.ID, battle.HostID, models.BattleSideHost, 100, models.CoinKindPaid)

	assert.ErrorIs(t, err, ErrValidation)
	mockBalanceRepo.AssertNotCalled(t, "DeductCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBattleService_Complete_HostWins(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, mockUoW, _, mockBalanceRepo, mockLedgerRepo, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	hostID := uuid.New()
	challengerID := uuid.New()
	battle := activeBattle(hostID, challengerID)
	battle.HostTotal = 1200
	battle.ChallengerTotal = 800

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)
	mockBattleRepo.On("Update", ctx, mock.MatchedBy(func(b *models.Battle) bool {
		return b.Status == models.BattleStatusCompleted && b.WinnerID != nil && *b.WinnerID == hostID
	})).Return(nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, hostID).Return(nil)
	mockBalanceRepo.On("AddCoins", ctx, hostID, models.CoinKindBonus, int64(500)).Return(int64(500), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == hostID && e.Amount == 500 && e.Type == models.TransactionTypeWinPayout
	})).Return(nil)
	mockBattleRepo.On("RecordReward", ctx, mock.MatchedBy(func(r *models.BattleReward) bool {
		return r.UserID == hostID && r.Badge == BattleChampionBadge && r.CoinMultiplier == 1.10
	})).Return(nil)
	mockBattleRepo.On("GetPaidSentByUser", ctx, battle.ID, hostID).Return(int64(0), nil)
	mockBattleRepo.On("GetPaidSentByUser", ctx, battle.ID, challengerID).Return(int64(150), nil)
	mockBattleRepo.On("RecordHistory", ctx, mock.MatchedBy(func(h *models.BattleHistory) bool {
		return h.UserID == hostID && h.Won && h.CoinsReceived == 1200
	})).Return(nil)
	mockBattleRepo.On("RecordHistory", ctx, mock.MatchedBy(func(h *models.BattleHistory) bool {
		return h.UserID == challengerID && !h.Won && h.CoinsSent == 150 && h.CoinsReceived == 800
	})).Return(nil)

	result, err := service.Complete(ctx, battle.ID)

	assert.NoError(t, err)
	assert.NotNil(t, result.WinnerID)
	assert.Equal(t, hostID, *result.WinnerID)
	assert.Equal(t, int64(500), result.Payout)

	mockUoW.AssertExpectations(t)
	mockBattleRepo.AssertExpectations(t)
	mockBalanceRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
}

func TestBattleService_Complete_Tie(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, _, mockBalanceRepo, _, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	battle := activeBattle(uuid.New(), uuid.New())
	battle.HostTotal = 400
	battle.ChallengerTotal = 400

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)
	mockBattleRepo.On("Update", ctx, mock.MatchedBy(func(b *models.Battle) bool {
		return b.Status == models.BattleStatusCompleted && b.WinnerID == nil
	})).Return(nil)
	mockBattleRepo.On("GetPaidSentByUser", ctx, battle.ID, mock.Anything).Return(int64(0), nil)
	mockBattleRepo.On("RecordHistory", ctx, mock.MatchedBy(func(h *models.BattleHistory) bool {
		return !h.Won
	})).Return(nil)

	result, err := service.Complete(ctx, battle.ID)

	assert.NoError(t, err)
	assert.Nil(t, result.WinnerID)
	assert.Equal(t, int64(0), result.Payout)

	mockBalanceRepo.AssertNotCalled(t, "AddCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockBattleRepo.AssertNotCalled(t, "RecordReward", mock.Anything, mock.Anything)
	mockBattleRepo.AssertExpectations(t)
}

func TestBattleService_Complete_AlreadyCompleted(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, _, mockBalanceRepo, _, mockBattleRepo := setupBattleMocks()
	service := NewBattleService(mockFactory)

	hostID := uuid.New()
	battle := activeBattle(hostID, uuid.New())
	now := time.Now()
	battle.Status = models.BattleStatusCompleted
	battle.WinnerID = &hostID
	battle.HostTotal = 900
	battle.ChallengerTotal = 100
	battle.CompletedAt = &now

	mockBattleRepo.On("GetByIDForUpdate", ctx, battle.ID).Return(battle, nil)

	result, err := service.Complete(ctx, battle.ID)

	assert.NoError(t, err)
	assert.Equal(t, hostID, *result.WinnerID)
	assert.Equal(t, int64(500), result.Payout)

	// Settlement must not run twice
	mockBattleRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	mockBalanceRepo.AssertNotCalled(t, "AddCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockBattleRepo.AssertNotCalled(t, "RecordHistory", mock.Anything, mock.Anything)
}
