package service

import (
	"context"
	"fmt"
	"time"

	"coliseum/config"
	"coliseum/events"
	"coliseum/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BattleChampionBadge is granted to every battle winner
const BattleChampionBadge = "Battle Champion"

type battleService struct {
	uowFactory UnitOfWorkFactory
}

// NewBattleService creates a new battle service
func NewBattleService(uowFactory UnitOfWorkFactory) BattleService {
	return &battleService{
		uowFactory: uowFactory,
	}
}

// Start creates an active battle between two users
func (s *battleService) Start(ctx context.Context, hostID, challengerID uuid.UUID, hostStreamID, challengerStreamID *uuid.UUID) (*models.Battle, error) {
	if hostID == challengerID {
		return nil, fmt.Errorf("%w: cannot battle yourself", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	host, err := uow.UserRepository().GetByID(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	if host == nil {
		return nil, fmt.Errorf("%w: host user", ErrNotFound)
	}

	challenger, err := uow.UserRepository().GetByID(ctx, challengerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenger: %w", err)
	}
	if challenger == nil {
		return nil, fmt.Errorf("%w: challenger user", ErrNotFound)
	}

	cfg := config.Get()
	battle := &models.Battle{
		ID:                 uuid.New(),
		HostID:             hostID,
		ChallengerID:       challengerID,
		HostStreamID:       hostStreamID,
		ChallengerStreamID: challengerStreamID,
		Status:             models.BattleStatusActive,
		EndsAt:             time.Now().Add(cfg.BattleDuration),
	}

	if err := uow.BattleRepository().Create(ctx, battle); err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"battleID":   battle.ID,
		"host":       hostID,
		"challenger": challengerID,
		"endsAt":     battle.EndsAt,
	}).Info("Battle started")

	return battle, nil
}

// ApplyGift routes a gift through the ledger and scores the named side
// when the coins are paid. Bonus gifts move coins and are logged for
// audit but never affect the contest outcome.
func (s *battleService) ApplyGift(ctx context.Context, battleID, senderID uuid.UUID, side models.BattleSide, amount int64, kind models.CoinKind) (*models.Battle, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: gift amount must be positive", ErrValidation)
	}
	if side != models.BattleSideHost && side != models.BattleSideChallenger {
		return nil, fmt.Errorf("%w: unknown battle side %q", ErrValidation, side)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the row so scoring cannot interleave with settlement
	battle, err := uow.BattleRepository().GetByIDForUpdate(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get battle: %w", err)
	}
	if battle == nil {
		return nil, fmt.Errorf("%w: battle %s", ErrNotFound, battleID)
	}
	if !battle.IsActive() {
		return nil, fmt.Errorf("%w: battle is not active", ErrPreconditionFailed)
	}
	if battle.IsExpired(time.Now()) {
		return nil, fmt.Errorf("%w: battle has expired", ErrPreconditionFailed)
	}

	receiverID := battle.UserOnSide(side)
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot gift your own side", ErrValidation)
	}

	metadata := map[string]any{"battle_id": battle.ID.String(), "side": string(side)}
	if _, _, err := transferWithinUow(ctx, uow, senderID, receiverID, amount, kind, metadata); err != nil {
		return nil, err
	}

	paid := kind == models.CoinKindPaid
	gift := &models.BattleGift{
		BattleID:     battle.ID,
		SenderID:     senderID,
		ReceiverSide: side,
		Amount:       amount,
		Paid:         paid,
	}
	if err := uow.BattleRepository().RecordGift(ctx, gift); err != nil {
		return nil, err
	}

	if paid {
		if err := uow.BattleRepository().AddSideTotal(ctx, battle.ID, side, amount); err != nil {
			return nil, err
		}
		if side == models.BattleSideHost {
			battle.HostTotal += amount
		} else {
			battle.ChallengerTotal += amount
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return battle, nil
}

// Complete settles the battle. The row lock serializes concurrent
// callers; completed battles return the stored result unchanged.
func (s *battleService) Complete(ctx context.Context, battleID uuid.UUID) (*models.BattleResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	battle, err := uow.BattleRepository().GetByIDForUpdate(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get battle: %w", err)
	}
	if battle == nil {
		return nil, fmt.Errorf("%w: battle %s", ErrNotFound, battleID)
	}

	cfg := config.Get()

	if battle.Status == models.BattleStatusCompleted {
		payout := int64(0)
		if battle.WinnerID != nil {
			payout = cfg.BattleWinPayout
		}
		return &models.BattleResult{Battle: battle, WinnerID: battle.WinnerID, Payout: payout}, nil
	}

	now := time.Now()
	var winnerID *uuid.UUID
	switch {
	case battle.HostTotal > battle.ChallengerTotal:
		winnerID = &battle.HostID
	case battle.ChallengerTotal > battle.HostTotal:
		winnerID = &battle.ChallengerID
	}

	battle.Status = models.BattleStatusCompleted
	battle.WinnerID = winnerID
	battle.CompletedAt = &now

	if err := uow.BattleRepository().Update(ctx, battle); err != nil {
		return nil, err
	}

	payout := int64(0)
	if winnerID != nil {
		payout = cfg.BattleWinPayout
		if _, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
			UserID:   *winnerID,
			Amount:   payout,
			CoinKind: models.CoinKindBonus,
			Type:     models.TransactionTypeWinPayout,
			Metadata: map[string]any{"battle_id": battle.ID.String()},
		}); err != nil {
			return nil, err
		}

		reward := &models.BattleReward{
			BattleID:       battle.ID,
			UserID:         *winnerID,
			Badge:          BattleChampionBadge,
			CoinMultiplier: cfg.RewardMultiplier,
			ExpiresAt:      now.Add(cfg.RewardDuration),
		}
		if err := uow.BattleRepository().RecordReward(ctx, reward); err != nil {
			return nil, err
		}
	}

	duration := int(now.Sub(battle.StartedAt).Seconds())
	if err := s.recordHistory(ctx, uow, battle, duration); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BattleCompletedEvent{
		BattleID:        battle.ID,
		WinnerID:        winnerID,
		HostTotal:       battle.HostTotal,
		ChallengerTotal: battle.ChallengerTotal,
		Payout:          payout,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"battleID":        battle.ID,
		"winnerID":        winnerID,
		"hostTotal":       battle.HostTotal,
		"challengerTotal": battle.ChallengerTotal,
	}).Info("Battle completed")

	return &models.BattleResult{Battle: battle, WinnerID: winnerID, Payout: payout}, nil
}

// recordHistory writes one outcome row per participant, win or lose
func (s *battleService) recordHistory(ctx context.Context, uow UnitOfWork, battle *models.Battle, duration int) error {
	sides := []struct {
		userID     uuid.UUID
		opponentID uuid.UUID
		received   int64
	}{
		{battle.HostID, battle.ChallengerID, battle.HostTotal},
		{battle.ChallengerID, battle.HostID, battle.ChallengerTotal},
	}

	for _, side := range sides {
		sent, err := uow.BattleRepository().GetPaidSentByUser(ctx, battle.ID, side.userID)
		if err != nil {
			return err
		}

		won := battle.WinnerID != nil && *battle.WinnerID == side.userID
		history := &models.BattleHistory{
			BattleID:        battle.ID,
			UserID:          side.userID,
			OpponentID:      side.opponentID,
			Won:             won,
			CoinsSent:       sent,
			CoinsReceived:   side.received,
			DurationSeconds: duration,
		}
		if err := uow.BattleRepository().RecordHistory(ctx, history); err != nil {
			return err
		}
	}

	return nil
}
