package models

import (
	"time"

	"github.com/google/uuid"
)

// ModerationActionType is the kind of officer action taken
type ModerationActionType string

const (
	ModerationActionKick ModerationActionType = "kick"
	ModerationActionBan  ModerationActionType = "ban"
	ModerationActionMute ModerationActionType = "mute"
)

// FeeType returns the ledger transaction type for the action's fee debit
func (t ModerationActionType) FeeType() TransactionType {
	if t == ModerationActionBan {
		return TransactionTypeBanFee
	}
	return TransactionTypeKickFee
}

// ModerationAction is an immutable record of an officer action
type ModerationAction struct {
	ID         int64                `db:"id"`
	OfficerID  uuid.UUID            `db:"officer_id"`
	TargetID   uuid.UUID            `db:"target_id"`
	ActionType ModerationActionType `db:"action_type"`
	FeeAmount  *int64               `db:"fee_amount"`
	Reason     *string              `db:"reason"`
	StreamID   *uuid.UUID           `db:"stream_id"`
	CreatedAt  time.Time            `db:"created_at"`
}

// Commission records the officer's cut of a fee-bearing action,
// linked 1:1 to the action
type Commission struct {
	ID        int64     `db:"id"`
	ActionID  int64     `db:"action_id"`
	OfficerID uuid.UUID `db:"officer_id"`
	Amount    int64     `db:"amount"`
	USDValue  float64   `db:"usd_value"`
	CreatedAt time.Time `db:"created_at"`
}

// ModerationRecord pairs an action with its commission, if one was paid
type ModerationRecord struct {
	Action     *ModerationAction
	Commission *Commission
}

// FeeResult is returned by applying a moderation fee
type FeeResult struct {
	Action     *ModerationAction
	PaidDebit  int64
	BonusDebit int64
	Commission *Commission
}
