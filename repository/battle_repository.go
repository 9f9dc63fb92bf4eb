package repository

import (
	"context"
	"fmt"
	"time"

	"coliseum/database"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const battleColumns = `
	id, host_id, challenger_id, host_stream_id, challenger_stream_id,
	status, host_total, challenger_total, winner_id, started_at, ends_at, completed_at
`

// BattleRepository implements the BattleRepository interface
type BattleRepository struct {
	q queryable
}

// NewBattleRepository creates a new battle repository
func NewBattleRepository(db *database.DB) *BattleRepository {
	return &BattleRepository{q: db.Pool}
}

// newBattleRepositoryWithTx creates a new battle repository with a transaction
func newBattleRepositoryWithTx(tx queryable) *BattleRepository {
	return &BattleRepository{q: tx}
}

// Create creates a new battle
func (r *BattleRepository) Create(ctx context.Context, battle *models.Battle) error {
	query := `
		INSERT INTO battles
		(id, host_id, challenger_id, host_stream_id, challenger_stream_id, status, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING started_at
	`

	err := r.q.QueryRow(ctx, query,
		battle.ID,
		battle.HostID,
		battle.ChallengerID,
		battle.HostStreamID,
		battle.ChallengerStreamID,
		battle.Status,
		battle.EndsAt,
	).Scan(&battle.StartedAt)

	if err != nil {
		return fmt.Errorf("failed to create battle: %w", err)
	}

	return nil
}

// GetByID retrieves a battle by id
func (r *BattleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE id = $1`

	battle, err := scanBattle(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get battle %s: %w", id, err)
	}

	return battle, nil
}

// GetByIDForUpdate retrieves a battle by id with a row lock. Completion
// runs behind this lock so concurrent Complete calls serialize.
func (r *BattleRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE id = $1 FOR UPDATE`

	battle, err := scanBattle(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock battle %s: %w", id, err)
	}

	return battle, nil
}

// AddSideTotal increments one side's accumulated paid total
func (r *BattleRepository) AddSideTotal(ctx context.Context, battleID uuid.UUID, side models.BattleSide, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	column := "host_total"
	if side == models.BattleSideChallenger {
		column = "challenger_total"
	}

	query := fmt.Sprintf(`
		UPDATE battles
		SET %s = %s + $1
		WHERE id = $2
	`, column, column)

	result, err := r.q.Exec(ctx, query, amount, battleID)
	if err != nil {
		return fmt.Errorf("failed to add side total for battle %s: %w", battleID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("battle %s not found", battleID)
	}

	return nil
}

// Update persists status, winner and completion time
func (r *BattleRepository) Update(ctx context.Context, battle *models.Battle) error {
	query := `
		UPDATE battles
		SET status = $1, winner_id = $2, completed_at = $3
		WHERE id = $4
	`

	result, err := r.q.Exec(ctx, query,
		battle.Status,
		battle.WinnerID,
		battle.CompletedAt,
		battle.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update battle %s: %w", battle.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("battle %s not found", battle.ID)
	}

	return nil
}

// RecordGift appends a gift audit row
func (r *BattleRepository) RecordGift(ctx context.Context, gift *models.BattleGift) error {
	query := `
		INSERT INTO battle_gifts (battle_id, sender_id, receiver_side, amount, paid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		gift.BattleID,
		gift.SenderID,
		gift.ReceiverSide,
		gift.Amount,
		gift.Paid,
	).Scan(&gift.ID, &gift.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record gift for battle %s: %w", gift.BattleID, err)
	}

	return nil
}

// GetPaidSentByUser returns the paid coins a user sent into a battle
func (r *BattleRepository) GetPaidSentByUser(ctx context.Context, battleID, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM battle_gifts
		WHERE battle_id = $1 AND sender_id = $2 AND paid
	`

	var total int64
	err := r.q.QueryRow(ctx, query, battleID, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get paid gifts sent by user %s in battle %s: %w", userID, battleID, err)
	}

	return total, nil
}

// RecordHistory appends a per-participant outcome row
func (r *BattleRepository) RecordHistory(ctx context.Context, history *models.BattleHistory) error {
	query := `
		INSERT INTO battle_history
		(battle_id, user_id, opponent_id, won, coins_sent, coins_received, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		history.BattleID,
		history.UserID,
		history.OpponentID,
		history.Won,
		history.CoinsSent,
		history.CoinsReceived,
		history.DurationSeconds,
	).Scan(&history.ID, &history.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record battle history for user %s: %w", history.UserID, err)
	}

	return nil
}

// RecordReward appends a winner reward row
func (r *BattleRepository) RecordReward(ctx context.Context, reward *models.BattleReward) error {
	query := `
		INSERT INTO battle_rewards (battle_id, user_id, badge, coin_multiplier, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		reward.BattleID,
		reward.UserID,
		reward.Badge,
		reward.CoinMultiplier,
		reward.ExpiresAt,
	).Scan(&reward.ID, &reward.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record battle reward for user %s: %w", reward.UserID, err)
	}

	return nil
}

// GetExpiredActive returns active battles whose scoring window has passed
func (r *BattleRepository) GetExpiredActive(ctx context.Context, now time.Time) ([]*models.Battle, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE status = 'active' AND ends_at < $1`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired battles: %w", err)
	}
	defer rows.Close()

	var battles []*models.Battle
	for rows.Next() {
		battle, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battle: %w", err)
		}
		battles = append(battles, battle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate battles: %w", err)
	}

	return battles, nil
}

func scanBattle(row pgx.Row) (*models.Battle, error) {
	var battle models.Battle
	err := row.Scan(
		&battle.ID,
		&battle.HostID,
		&battle.ChallengerID,
		&battle.HostStreamID,
		&battle.ChallengerStreamID,
		&battle.Status,
		&battle.HostTotal,
		&battle.ChallengerTotal,
		&battle.WinnerID,
		&battle.StartedAt,
		&battle.EndsAt,
		&battle.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &battle, nil
}
