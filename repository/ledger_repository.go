package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"coliseum/database"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository implements the LedgerRepository interface over the
// append-only coin_transactions table
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Record appends a new ledger entry
func (r *LedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal entry metadata: %w", err)
	}

	query := `
		INSERT INTO coin_transactions
		(user_id, amount, coin_kind, transaction_type, source, metadata, balance_after, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.Amount,
		entry.CoinKind,
		entry.Type,
		entry.Source,
		metadataJSON,
		entry.BalanceAfter,
		entry.IdempotencyKey,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record ledger entry for user %s: %w", entry.UserID, err)
	}

	return nil
}

// GetByIdempotencyKey returns the entry recorded under the key, or nil
func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	query := `
		SELECT id, user_id, amount, coin_kind, transaction_type, source, metadata,
		       balance_after, idempotency_key, created_at
		FROM coin_transactions
		WHERE idempotency_key = $1
	`

	entry, err := scanEntry(r.q.QueryRow(ctx, query, key))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry by idempotency key: %w", err)
	}

	return entry, nil
}

// GetByUser returns a user's entries, newest first
func (r *LedgerRepository) GetByUser(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, user_id, amount, coin_kind, transaction_type, source, metadata,
		       balance_after, idempotency_key, created_at
		FROM coin_transactions
		WHERE user_id = $1
		  AND ($2::text IS NULL OR transaction_type = $2)
		  AND ($3::text IS NULL OR coin_kind = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.q.Query(ctx, query, userID, filter.Type, filter.CoinKind, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// GetStats returns aggregate lifetime totals for a user
func (r *LedgerRepository) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE transaction_type = 'purchase'), 0) as total_purchased,
			COALESCE(SUM(-amount) FILTER (WHERE amount < 0), 0) as total_spent,
			COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND coin_kind = 'paid' AND transaction_type != 'purchase'), 0) as total_earned,
			COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND coin_kind = 'bonus'), 0) as total_bonus
		FROM coin_transactions
		WHERE user_id = $1
	`

	stats := models.UserStats{UserID: userID}
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&stats.TotalPurchased,
		&stats.TotalSpent,
		&stats.TotalEarned,
		&stats.TotalBonus,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger stats for user %s: %w", userID, err)
	}

	return &stats, nil
}

// SumByUser returns the sum of a user's entries for one coin kind.
// Always equal to the balance projection when the ledger is healthy.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID uuid.UUID, kind models.CoinKind) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM coin_transactions
		WHERE user_id = $1 AND coin_kind = $2
	`

	var sum int64
	err := r.q.QueryRow(ctx, query, userID, kind).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries for user %s: %w", userID, err)
	}

	return sum, nil
}

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var metadataJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.CoinKind,
		&entry.Type,
		&entry.Source,
		&metadataJSON,
		&entry.BalanceAfter,
		&entry.IdempotencyKey,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry metadata: %w", err)
		}
	}

	return &entry, nil
}
