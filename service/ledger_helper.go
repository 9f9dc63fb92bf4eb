package service

import (
	"context"
	"errors"
	"fmt"

	"coliseum/events"
	"coliseum/models"

	"github.com/jackc/pgx/v5/pgconn"
)

// ApplyLedgerEntry mutates the balance projection and appends the ledger
// entry within the caller's unit of work. This is the single entry point
// for all balance changes in the system.
//
// If the entry carries an idempotency key that was already recorded, the
// prior entry is returned and no balances move. A key race that slips
// past the lookup is caught by the unique index and surfaced as
// ErrConflict; the caller must roll back and re-read.
func ApplyLedgerEntry(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if entry.Amount == 0 {
		return nil, fmt.Errorf("%w: change amount must not be zero", ErrValidation)
	}

	if entry.IdempotencyKey != nil {
		existing, err := uow.LedgerRepository().GetByIdempotencyKey(ctx, *entry.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	if err := uow.BalanceRepository().CreateIfAbsent(ctx, entry.UserID); err != nil {
		return nil, err
	}

	var newBalance int64
	var err error
	if entry.Amount > 0 {
		newBalance, err = uow.BalanceRepository().AddCoins(ctx, entry.UserID, entry.CoinKind, entry.Amount)
	} else {
		newBalance, err = uow.BalanceRepository().DeductCoins(ctx, entry.UserID, entry.CoinKind, -entry.Amount)
	}
	if err != nil {
		return nil, err
	}

	entry.BalanceAfter = newBalance
	if err := uow.LedgerRepository().Record(ctx, entry); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: idempotency key already recorded", ErrConflict)
		}
		return nil, err
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          entry.UserID,
		CoinKind:        entry.CoinKind,
		TransactionType: entry.Type,
		ChangeAmount:    entry.Amount,
		NewBalance:      entry.BalanceAfter,
	})

	return entry, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
