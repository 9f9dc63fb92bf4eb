package service

import (
	"context"
	"errors"
	"fmt"

	"coliseum/models"

	"github.com/google/uuid"
)

type ledgerService struct {
	uowFactory UnitOfWorkFactory
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
	}
}

// Credit adds coins to a user
func (s *ledgerService) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind models.CoinKind, txType models.TransactionType, idempotencyKey *string, metadata map[string]any) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	return s.apply(ctx, userID, amount, kind, txType, idempotencyKey, metadata)
}

// Debit removes coins from a user
func (s *ledgerService) Debit(ctx context.Context, userID uuid.UUID, amount int64, kind models.CoinKind, txType models.TransactionType, idempotencyKey *string, metadata map[string]any) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	return s.apply(ctx, userID, -amount, kind, txType, idempotencyKey, metadata)
}

func (s *ledgerService) apply(ctx context.Context, userID uuid.UUID, signedAmount int64, kind models.CoinKind, txType models.TransactionType, idempotencyKey *string, metadata map[string]any) (*models.LedgerEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entry := &models.LedgerEntry{
		UserID:         userID,
		Amount:         signedAmount,
		CoinKind:       kind,
		Type:           txType,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
	}

	recorded, err := ApplyLedgerEntry(ctx, uow, entry)
	if err != nil {
		// A concurrent writer beat us to the key; their entry is the result
		if errors.Is(err, ErrConflict) && idempotencyKey != nil {
			uow.Rollback()
			return s.getByIdempotencyKey(ctx, *idempotencyKey)
		}
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return recorded, nil
}

func (s *ledgerService) getByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entry, err := uow.LedgerRepository().GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: ledger entry for idempotency key not found", ErrConflict)
	}

	return entry, nil
}

// Transfer moves coins between users as a gift_sent/gift_received pair.
// Both legs land in one transaction; either both commit or neither.
func (s *ledgerService) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, kind models.CoinKind, metadata map[string]any) (*models.LedgerEntry, *models.LedgerEntry, error) {
	if fromUserID == toUserID {
		return nil, nil, fmt.Errorf("%w: cannot transfer to yourself", ErrValidation)
	}
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: transfer amount must be positive", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	sent, received, err := transferWithinUow(ctx, uow, fromUserID, toUserID, amount, kind, metadata)
	if err != nil {
		return nil, nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return sent, received, nil
}

// transferWithinUow performs the debit/credit pair inside an existing
// unit of work, so engines can couple a transfer to their own state.
func transferWithinUow(ctx context.Context, uow UnitOfWork, fromUserID, toUserID uuid.UUID, amount int64, kind models.CoinKind, metadata map[string]any) (*models.LedgerEntry, *models.LedgerEntry, error) {
	sent, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
		UserID:   fromUserID,
		Amount:   -amount,
		CoinKind: kind,
		Type:     models.TransactionTypeGiftSent,
		Metadata: metadata,
	})
	if err != nil {
		return nil, nil, err
	}

	received, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
		UserID:   toUserID,
		Amount:   amount,
		CoinKind: kind,
		Type:     models.TransactionTypeGiftReceived,
		Metadata: metadata,
	})
	if err != nil {
		return nil, nil, err
	}

	return sent, received, nil
}

// GetBalance returns a user's balance projection
func (s *ledgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	balance, err := uow.BalanceRepository().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		// No entries yet; report zero balances rather than absence
		return &models.UserBalance{UserID: userID}, nil
	}

	return balance, nil
}

// GetHistory returns a user's ledger entries
func (s *ledgerService) GetHistory(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]*models.LedgerEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.LedgerRepository().GetByUser(ctx, userID, filter)
}

// GetStats returns aggregate totals for a user
func (s *ledgerService) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.LedgerRepository().GetStats(ctx, userID)
}

// GetUserByUsername resolves a username to its user record
func (s *ledgerService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, username)
	}

	return user, nil
}
