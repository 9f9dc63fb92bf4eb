package repository

import (
	"context"
	"fmt"

	"coliseum/database"
	"coliseum/models"
	"coliseum/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceRepository implements the BalanceRepository interface over the
// user_balances projection table
type BalanceRepository struct {
	q queryable
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *database.DB) *BalanceRepository {
	return &BalanceRepository{q: db.Pool}
}

// newBalanceRepositoryWithTx creates a new balance repository with a transaction
func newBalanceRepositoryWithTx(tx queryable) *BalanceRepository {
	return &BalanceRepository{q: tx}
}

func kindColumn(kind models.CoinKind) string {
	if kind == models.CoinKindPaid {
		return "paid_coins"
	}
	return "bonus_coins"
}

// GetByUser retrieves a user's balance row
func (r *BalanceRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	query := `
		SELECT user_id, paid_coins, bonus_coins, updated_at
		FROM user_balances
		WHERE user_id = $1
	`

	var balance models.UserBalance
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&balance.UserID,
		&balance.PaidCoins,
		&balance.BonusCoins,
		&balance.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}

	return &balance, nil
}

// CreateIfAbsent inserts a zero balance row if the user has none
func (r *BalanceRepository) CreateIfAbsent(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO user_balances (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to create balance row for user %s: %w", userID, err)
	}

	return nil
}

// AddCoins adds to one coin kind atomically and returns the new balance of that kind
func (r *BalanceRepository) AddCoins(ctx context.Context, userID uuid.UUID, kind models.CoinKind, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	column := kindColumn(kind)
	query := fmt.Sprintf(`
		UPDATE user_balances
		SET %s = %s + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING %s
	`, column, column, column)

	var newBalance int64
	err := r.q.QueryRow(ctx, query, amount, userID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("balance row for user %s not found", userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add %s for user %s: %w", kind, userID, err)
	}

	return newBalance, nil
}

// DeductCoins deducts from one coin kind atomically. The conditional
// update only matches when the balance covers the amount; zero rows
// means the user is missing or short.
func (r *BalanceRepository) DeductCoins(ctx context.Context, userID uuid.UUID, kind models.CoinKind, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	column := kindColumn(kind)
	query := fmt.Sprintf(`
		UPDATE user_balances
		SET %s = %s - $1, updated_at = NOW()
		WHERE user_id = $2 AND %s >= $1
		RETURNING %s
	`, column, column, column, column)

	var newBalance int64
	err := r.q.QueryRow(ctx, query, amount, userID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		balance, err := r.GetByUser(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("failed to check balance: %w", err)
		}
		if balance == nil {
			return 0, fmt.Errorf("balance row for user %s not found", userID)
		}
		return 0, fmt.Errorf("%w: have %d %s, need %d", service.ErrInsufficientFunds, balance.Of(kind), kind, amount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct %s for user %s: %w", kind, userID, err)
	}

	return newBalance, nil
}
