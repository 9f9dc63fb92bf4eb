package models

import (
	"time"

	"github.com/google/uuid"
)

// BattleStatus represents the lifecycle state of a battle
type BattleStatus string

const (
	BattleStatusActive    BattleStatus = "active"
	BattleStatusCompleted BattleStatus = "completed"
)

// BattleSide names one of the two participants
type BattleSide string

const (
	BattleSideHost       BattleSide = "host"
	BattleSideChallenger BattleSide = "challenger"
)

// Battle represents a two-participant timed scoring contest.
// Side totals accumulate paid-coin gifts only; winner is nil on a tie.
type Battle struct {
	ID                 uuid.UUID    `db:"id"`
	HostID             uuid.UUID    `db:"host_id"`
	ChallengerID       uuid.UUID    `db:"challenger_id"`
	HostStreamID       *uuid.UUID   `db:"host_stream_id"`
	ChallengerStreamID *uuid.UUID   `db:"challenger_stream_id"`
	Status             BattleStatus `db:"status"`
	HostTotal          int64        `db:"host_total"`
	ChallengerTotal    int64        `db:"challenger_total"`
	WinnerID           *uuid.UUID   `db:"winner_id"`
	StartedAt          time.Time    `db:"started_at"`
	EndsAt             time.Time    `db:"ends_at"`
	CompletedAt        *time.Time   `db:"completed_at"`
}

// IsActive checks if the battle is still accepting gifts
func (b *Battle) IsActive() bool {
	return b.Status == BattleStatusActive
}

// IsExpired checks if the battle's scoring window has passed
func (b *Battle) IsExpired(now time.Time) bool {
	return now.After(b.EndsAt)
}

// SideOf returns which side the given user is on, or "" if not a participant
func (b *Battle) SideOf(userID uuid.UUID) BattleSide {
	switch userID {
	case b.HostID:
		return BattleSideHost
	case b.ChallengerID:
		return BattleSideChallenger
	}
	return ""
}

// UserOnSide returns the participant id for a side
func (b *Battle) UserOnSide(side BattleSide) uuid.UUID {
	if side == BattleSideHost {
		return b.HostID
	}
	return b.ChallengerID
}

// BattleGift is an audit record of a single gift applied to a battle.
// Written for every gift, paid or not; only paid gifts affect totals.
type BattleGift struct {
	ID           int64      `db:"id"`
	BattleID     uuid.UUID  `db:"battle_id"`
	SenderID     uuid.UUID  `db:"sender_id"`
	ReceiverSide BattleSide `db:"receiver_side"`
	Amount       int64      `db:"amount"`
	Paid         bool       `db:"paid"`
	CreatedAt    time.Time  `db:"created_at"`
}

// BattleHistory is a per-participant outcome record, written for both
// sides at completion regardless of who won.
type BattleHistory struct {
	ID              int64     `db:"id"`
	BattleID        uuid.UUID `db:"battle_id"`
	UserID          uuid.UUID `db:"user_id"`
	OpponentID      uuid.UUID `db:"opponent_id"`
	Won             bool      `db:"won"`
	CoinsSent       int64     `db:"coins_sent"`
	CoinsReceived   int64     `db:"coins_received"`
	DurationSeconds int       `db:"duration_seconds"`
	CreatedAt       time.Time `db:"created_at"`
}

// BattleReward is a time-boxed perk granted to the battle winner
type BattleReward struct {
	ID             int64     `db:"id"`
	BattleID       uuid.UUID `db:"battle_id"`
	UserID         uuid.UUID `db:"user_id"`
	Badge          string    `db:"badge"`
	CoinMultiplier float64   `db:"coin_multiplier"`
	ExpiresAt      time.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
}

// BattleResult is returned by battle completion
type BattleResult struct {
	Battle   *Battle
	WinnerID *uuid.UUID
	Payout   int64
}
