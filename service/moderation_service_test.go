package service

import (
	"context"
	"errors"
	"testing"

	"coliseum/config"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupModerationMocks() (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockBalanceRepository, *MockLedgerRepository, *MockModerationRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockBalanceRepo := new(MockBalanceRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockModerationRepo := new(MockModerationRepository)

	mockUoW.SetRepositories(nil, mockBalanceRepo, mockLedgerRepo, nil, nil, mockModerationRepo, nil)
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return mockFactory, mockUoW, mockBalanceRepo, mockLedgerRepo, mockModerationRepo
}

func TestModerationService_ApplyFee_PaidCoversFee(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, mockUoW, mockBalanceRepo, mockLedgerRepo, mockModerationRepo := setupModerationMocks()
	mockUoW.On("Begin", ctx).Return(nil)
	service := NewModerationService(mockFactory)

	officerID := uuid.New()
	targetID := uuid.New()

	mockBalanceRepo.On("GetByUser", ctx, targetID).Return(&models.UserBalance{
		UserID:    targetID,
		PaidCoins: 250,
	}, nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, targetID).Return(nil)
	mockBalanceRepo.On("DeductCoins", ctx, targetID, models.CoinKindPaid, int64(100)).Return(int64(150), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == targetID && e.Amount == -100 && e.Type == models.TransactionTypeKickFee
	})).Return(nil)
	mockModerationRepo.On("CreateAction", ctx, mock.MatchedBy(func(a *models.ModerationAction) bool {
		return a.OfficerID == officerID &&
			a.TargetID == targetID &&
			a.ActionType == models.ModerationActionKick &&
			*a.FeeAmount == 100
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.ModerationAction).ID = 33
	})

	// Commission leg, 10% of the fee as paid coins
	mockBalanceRepo.On("CreateIfAbsent", ctx, officerID).Return(nil)
	mockBalanceRepo.On("AddCoins", ctx, officerID, models.CoinKindPaid, int64(10)).Return(int64(10), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == officerID && e.Amount == 10 && e.Type == models.TransactionTypeCommission
	})).Return(nil)
	mockModerationRepo.On("CreateCommission", ctx, mock.MatchedBy(func(c *models.Commission) bool {
		return c.ActionID == 33 && c.OfficerID == officerID && c.Amount == 10 && c.USDValue == 0.10
	})).Return(nil)

	result, err := service.ApplyFee(ctx, officerID, targetID, models.ModerationActionKick, 100, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(100), result.PaidDebit)
	assert.Equal(t, int64(0), result.BonusDebit)
	assert.NotNil(t, result.Commission)
	assert.Equal(t, int64(10), result.Commission.Amount)

	mockUoW.AssertNumberOfCalls(t, "Commit", 2)
	mockBalanceRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
	mockModerationRepo.AssertExpectations(t)
}

func TestModerationService_ApplyFee_BonusFallback(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, mockUoW, mockBalanceRepo, mockLedgerRepo, mockModerationRepo := setupModerationMocks()
	mockUoW.On("Begin", ctx).Return(nil)
	service := NewModerationService(mockFactory)

	officerID := uuid.New()
	targetID := uuid.New()

	mockBalanceRepo.On("GetByUser", ctx, targetID).Return(&models.UserBalance{
		UserID:     targetID,
		PaidCoins:  60,
		BonusCoins: 200,
	}, nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, targetID).Return(nil)
	mockBalanceRepo.On("DeductCoins", ctx, targetID, models.CoinKindPaid, int64(60)).Return(int64(0), nil)
	mockBalanceRepo.On("DeductCoins", ctx, targetID, models.CoinKindBonus, int64(40)).Return(int64(160), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == targetID && e.Type == models.TransactionTypeBanFee
	})).Return(nil)
	mockModerationRepo.On("CreateAction", ctx, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.ModerationAction).ID = 34
	})

	mockBalanceRepo.On("CreateIfAbsent", ctx, officerID).Return(nil)
	mockBalanceRepo.On("AddCoins", ctx, officerID, models.CoinKindPaid, int64(10)).Return(int64(10), nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == officerID && e.Type == models.TransactionTypeCommission
	})).Return(nil)
	mockModerationRepo.On("CreateCommission", ctx, mock.Anything).Return(nil)

	result, err := service.ApplyFee(ctx, officerID, targetID, models.ModerationActionBan, 100, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(60), result.PaidDebit)
	assert.Equal(t, int64(40), result.BonusDebit)

	mockBalanceRepo.AssertExpectations(t)
}

func TestModerationService_ApplyFee_InsufficientTotal(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, mockUoW, mockBalanceRepo, _, mockModerationRepo := setupModerationMocks()
	mockUoW.On("Begin", ctx).Return(nil)
	service := NewModerationService(mockFactory)

	targetID := uuid.New()
	mockBalanceRepo.On("GetByUser", ctx, targetID).Return(&models.UserBalance{
		UserID:     targetID,
		PaidCoins:  30,
		BonusCoins: 20,
	}, nil)

	_, err := service.ApplyFee(ctx, uuid.New(), targetID, models.ModerationActionKick, 100, nil, nil)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	mockBalanceRepo.AssertNotCalled(t, "DeductCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockModerationRepo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestModerationService_ApplyFee_SelfModeration(t *testing.T) {
	ctx := context.Background()
	mockFactory := new(MockUnitOfWorkFactory)
	service := NewModerationService(mockFactory)

	userID := uuid.New()
	_, err := service.ApplyFee(ctx, userID, userID, models.ModerationActionKick, 100, nil, nil)

	assert.ErrorIs(t, err, ErrValidation)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestModerationService_ApplyFee_CommissionFailureKeepsFee(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, mockUoW, mockBalanceRepo, mockLedgerRepo, mockModerationRepo := setupModerationMocks()
	service := NewModerationService(mockFactory)

	officerID := uuid.New()
	targetID := uuid.New()

	// Fee transaction succeeds; the commission transaction cannot start
	mockUoW.On("Begin", ctx).Return(nil).Once()
	mockUoW.On("Begin", ctx).Return(errors.New("connection lost")).Once()

	mockBalanceRepo.On("GetByUser", ctx, targetID).Return(&models.UserBalance{
		UserID:    targetID,
		PaidCoins: 500,
	}, nil)
	mockBalanceRepo.On("CreateIfAbsent", ctx, targetID).Return(nil)
	mockBalanceRepo.On("DeductCoins", ctx, targetID, models.CoinKindPaid, int64(100)).Return(int64(400), nil)
	mockLedgerRepo.On("Record", ctx, mock.Anything).Return(nil)
	mockModerationRepo.On("CreateAction", ctx, mock.Anything).Return(nil)

	result, err := service.ApplyFee(ctx, officerID, targetID, models.ModerationActionMute, 100, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(100), result.PaidDebit)
	assert.Nil(t, result.Commission)

	mockBalanceRepo.AssertNotCalled(t, "AddCoins", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockUoW.AssertNumberOfCalls(t, "Commit", 1)
}

func TestModerationService_GetHistory(t *testing.T) {
	ctx := context.Background()
	mockFactory, mockUoW, _, _, mockModerationRepo := setupModerationMocks()
	mockUoW.On("Begin", ctx).Return(nil)
	service := NewModerationService(mockFactory)

	targetID := uuid.New()
	fee := int64(100)
	actions := []*models.ModerationAction{
		{ID: 7, OfficerID: uuid.New(), TargetID: targetID, ActionType: models.ModerationActionKick, FeeAmount: &fee},
		{ID: 8, OfficerID: uuid.New(), TargetID: targetID, ActionType: models.ModerationActionMute},
	}

	mockModerationRepo.On("GetActionsByTarget", ctx, targetID, 50).Return(actions, nil)
	mockModerationRepo.On("GetCommissionByAction", ctx, int64(7)).Return(&models.Commission{ID: 3, ActionID: 7, OfficerID: actions[0].OfficerID, Amount: 10}, nil)
	mockModerationRepo.On("GetCommissionByAction", ctx, int64(8)).Return(nil, nil)

	records, err := service.GetHistory(ctx, targetID, 0)

	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(10), records[0].Commission.Amount)
	assert.Nil(t, records[1].Commission)
	mockModerationRepo.AssertExpectations(t)
}
