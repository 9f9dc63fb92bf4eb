package repository

import (
	"context"
	"fmt"

	"coliseum/database"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ModerationRepository implements the ModerationRepository interface
type ModerationRepository struct {
	q queryable
}

// NewModerationRepository creates a new moderation repository
func NewModerationRepository(db *database.DB) *ModerationRepository {
	return &ModerationRepository{q: db.Pool}
}

// newModerationRepositoryWithTx creates a new moderation repository with a transaction
func newModerationRepositoryWithTx(tx queryable) *ModerationRepository {
	return &ModerationRepository{q: tx}
}

// CreateAction appends an officer action record
func (r *ModerationRepository) CreateAction(ctx context.Context, action *models.ModerationAction) error {
	query := `
		INSERT INTO moderation_actions (officer_id, target_id, action_type, fee_amount, reason, stream_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		action.OfficerID,
		action.TargetID,
		action.ActionType,
		action.FeeAmount,
		action.Reason,
		action.StreamID,
	).Scan(&action.ID, &action.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create moderation action: %w", err)
	}

	return nil
}

// CreateCommission appends a commission record linked to an action
func (r *ModerationRepository) CreateCommission(ctx context.Context, commission *models.Commission) error {
	query := `
		INSERT INTO commissions (action_id, officer_id, amount, usd_value)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		commission.ActionID,
		commission.OfficerID,
		commission.Amount,
		commission.USDValue,
	).Scan(&commission.ID, &commission.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create commission for action %d: %w", commission.ActionID, err)
	}

	return nil
}

// GetCommissionByAction returns the commission for an action, or nil
func (r *ModerationRepository) GetCommissionByAction(ctx context.Context, actionID int64) (*models.Commission, error) {
	query := `
		SELECT id, action_id, officer_id, amount, usd_value, created_at
		FROM commissions
		WHERE action_id = $1
	`

	var commission models.Commission
	err := r.q.QueryRow(ctx, query, actionID).Scan(
		&commission.ID,
		&commission.ActionID,
		&commission.OfficerID,
		&commission.Amount,
		&commission.USDValue,
		&commission.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commission for action %d: %w", actionID, err)
	}

	return &commission, nil
}

// GetActionsByTarget returns recent actions against a user
func (r *ModerationRepository) GetActionsByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*models.ModerationAction, error) {
	query := `
		SELECT id, officer_id, target_id, action_type, fee_amount, reason, stream_id, created_at
		FROM moderation_actions
		WHERE target_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get actions for target %s: %w", targetID, err)
	}
	defer rows.Close()

	var actions []*models.ModerationAction
	for rows.Next() {
		var action models.ModerationAction
		err := rows.Scan(
			&action.ID,
			&action.OfficerID,
			&action.TargetID,
			&action.ActionType,
			&action.FeeAmount,
			&action.Reason,
			&action.StreamID,
			&action.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan moderation action: %w", err)
		}
		actions = append(actions, &action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moderation actions: %w", err)
	}

	return actions, nil
}
