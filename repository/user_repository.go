package repository

import (
	"context"
	"fmt"

	"coliseum/database"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, username, wins_count, total_winnings, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.WinsCount,
		&user.TotalWinnings,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, wins_count, total_winnings, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.WinsCount,
		&user.TotalWinnings,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}

	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, id uuid.UUID, username string) (*models.User, error) {
	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		RETURNING id, username, wins_count, total_winnings, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id, username).Scan(
		&user.ID,
		&user.Username,
		&user.WinsCount,
		&user.TotalWinnings,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}

	return &user, nil
}

// RecordWin increments the user's lifetime win counters atomically
func (r *UserRepository) RecordWin(ctx context.Context, id uuid.UUID, winnings int64) error {
	if winnings < 0 {
		return fmt.Errorf("winnings must not be negative")
	}

	query := `
		UPDATE users
		SET wins_count = wins_count + 1,
		    total_winnings = total_winnings + $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, winnings, id)
	if err != nil {
		return fmt.Errorf("failed to record win for user %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id)
	}

	return nil
}
