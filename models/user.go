package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform user with lifetime performance counters
type User struct {
	ID            uuid.UUID `db:"id"`
	Username      string    `db:"username"`
	WinsCount     int       `db:"wins_count"`
	TotalWinnings int64     `db:"total_winnings"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// UserBalance is the mutable balance projection, one row per user.
// Owned exclusively by the ledger service; always reconcilable against
// the sum of that user's ledger entries.
type UserBalance struct {
	UserID     uuid.UUID `db:"user_id"`
	PaidCoins  int64     `db:"paid_coins"`
	BonusCoins int64     `db:"bonus_coins"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Of returns the balance of the given coin kind
func (b *UserBalance) Of(kind CoinKind) int64 {
	if kind == CoinKindPaid {
		return b.PaidCoins
	}
	return b.BonusCoins
}
