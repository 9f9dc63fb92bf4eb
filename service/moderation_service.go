package service

import (
	"context"
	"fmt"

	"coliseum/config"
	"coliseum/events"
	"coliseum/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type moderationService struct {
	uowFactory UnitOfWorkFactory
}

// NewModerationService creates a new moderation service
func NewModerationService(uowFactory UnitOfWorkFactory) ModerationService {
	return &moderationService{
		uowFactory: uowFactory,
	}
}

// ApplyFee debits the target and credits the officer's commission.
//
// The fee debit and the action record commit first; the commission is a
// second, independent transaction. A crash between the two leaves a fee
// charged without a commission — that gap is logged and reconciled out
// of band, never rolled back, because the debit already happened and is
// real.
func (s *moderationService) ApplyFee(ctx context.Context, officerID, targetID uuid.UUID, actionType models.ModerationActionType, feeAmount int64, reason *string, streamID *uuid.UUID) (*models.FeeResult, error) {
	if feeAmount <= 0 {
		return nil, fmt.Errorf("%w: fee amount must be positive", ErrValidation)
	}
	if officerID == targetID {
		return nil, fmt.Errorf("%w: cannot moderate yourself", ErrValidation)
	}
	switch actionType {
	case models.ModerationActionKick, models.ModerationActionBan, models.ModerationActionMute:
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrValidation, actionType)
	}

	action, paidDebit, bonusDebit, err := s.chargeFee(ctx, officerID, targetID, actionType, feeAmount, reason, streamID)
	if err != nil {
		return nil, err
	}

	result := &models.FeeResult{
		Action:     action,
		PaidDebit:  paidDebit,
		BonusDebit: bonusDebit,
	}

	cfg := config.Get()
	commissionAmount := int64(float64(feeAmount) * cfg.CommissionRate)
	if commissionAmount <= 0 {
		return result, nil
	}

	commission, err := s.payCommission(ctx, action, officerID, targetID, commissionAmount)
	if err != nil {
		// The fee stands; the missing commission is backfilled by the
		// reconciliation pass
		log.WithFields(log.Fields{
			"actionID":  action.ID,
			"officerID": officerID,
			"amount":    commissionAmount,
			"error":     err,
		}).Error("Commission payout failed after fee debit, reconciliation required")
		return result, nil
	}

	result.Commission = commission
	return result, nil
}

// chargeFee debits the target, paid coins first with bonus fallback,
// and records the moderation action in the same transaction
func (s *moderationService) chargeFee(ctx context.Context, officerID, targetID uuid.UUID, actionType models.ModerationActionType, feeAmount int64, reason *string, streamID *uuid.UUID) (*models.ModerationAction, int64, int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	balance, err := uow.BalanceRepository().GetByUser(ctx, targetID)
	if err != nil {
		return nil, 0, 0, err
	}
	if balance == nil {
		balance = &models.UserBalance{UserID: targetID}
	}
	if balance.PaidCoins+balance.BonusCoins < feeAmount {
		return nil, 0, 0, fmt.Errorf("%w: have %d total, need %d", ErrInsufficientFunds, balance.PaidCoins+balance.BonusCoins, feeAmount)
	}

	paidPortion := min(feeAmount, balance.PaidCoins)
	bonusPortion := feeAmount - paidPortion
	feeType := actionType.FeeType()
	metadata := map[string]any{
		"action_type": string(actionType),
		"officer_id":  officerID.String(),
	}

	if paidPortion > 0 {
		if _, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
			UserID:   targetID,
			Amount:   -paidPortion,
			CoinKind: models.CoinKindPaid,
			Type:     feeType,
			Metadata: metadata,
		}); err != nil {
			return nil, 0, 0, err
		}
	}
	if bonusPortion > 0 {
		if _, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
			UserID:   targetID,
			Amount:   -bonusPortion,
			CoinKind: models.CoinKindBonus,
			Type:     feeType,
			Metadata: metadata,
		}); err != nil {
			return nil, 0, 0, err
		}
	}

	action := &models.ModerationAction{
		OfficerID:  officerID,
		TargetID:   targetID,
		ActionType: actionType,
		FeeAmount:  &feeAmount,
		Reason:     reason,
		StreamID:   streamID,
	}
	if err := uow.ModerationRepository().CreateAction(ctx, action); err != nil {
		return nil, 0, 0, err
	}

	if err := uow.Commit(); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return action, paidPortion, bonusPortion, nil
}

// payCommission credits the officer and records the commission in one
// transaction of its own
func (s *moderationService) payCommission(ctx context.Context, action *models.ModerationAction, officerID, targetID uuid.UUID, amount int64) (*models.Commission, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
		UserID:   officerID,
		Amount:   amount,
		CoinKind: models.CoinKindPaid,
		Type:     models.TransactionTypeCommission,
		Metadata: map[string]any{"action_id": action.ID},
	}); err != nil {
		return nil, err
	}

	cfg := config.Get()
	commission := &models.Commission{
		ActionID:  action.ID,
		OfficerID: officerID,
		Amount:    amount,
		USDValue:  float64(amount) * cfg.CoinUSDRate,
	}
	if err := uow.ModerationRepository().CreateCommission(ctx, commission); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.CommissionRecordedEvent{
		ActionID:  action.ID,
		OfficerID: officerID,
		TargetID:  targetID,
		Amount:    amount,
		USDValue:  commission.USDValue,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return commission, nil
}

// GetHistory returns recent actions against a user, each paired with
// the commission its fee produced, if any
func (s *moderationService) GetHistory(ctx context.Context, targetID uuid.UUID, limit int) ([]*models.ModerationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	actions, err := uow.ModerationRepository().GetActionsByTarget(ctx, targetID, limit)
	if err != nil {
		return nil, err
	}

	records := make([]*models.ModerationRecord, 0, len(actions))
	for _, action := range actions {
		commission, err := uow.ModerationRepository().GetCommissionByAction(ctx, action.ID)
		if err != nil {
			return nil, err
		}
		records = append(records, &models.ModerationRecord{Action: action, Commission: commission})
	}

	return records, nil
}
