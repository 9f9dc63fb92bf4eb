package models

import (
	"time"

	"github.com/google/uuid"
)

// CoinKind distinguishes purchased coins from promotional coins.
// Only paid coins count toward competitive outcomes.
type CoinKind string

const (
	CoinKindPaid  CoinKind = "paid"
	CoinKindBonus CoinKind = "bonus"
)

// TransactionType represents the type of ledger movement
type TransactionType string

const (
	TransactionTypePurchase     TransactionType = "purchase"
	TransactionTypeGiftSent     TransactionType = "gift_sent"
	TransactionTypeGiftReceived TransactionType = "gift_received"
	TransactionTypeEntryFee     TransactionType = "entry_fee"
	TransactionTypeKickFee      TransactionType = "kick_fee"
	TransactionTypeBanFee       TransactionType = "ban_fee"
	TransactionTypeCommission   TransactionType = "commission"
	TransactionTypeWinPayout    TransactionType = "win_payout"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeAdjustment   TransactionType = "adjustment"
	TransactionTypeInitial      TransactionType = "initial_balance"
)

// LedgerEntry is an immutable record of a single balance change.
// Amount is signed: positive for credits, negative for debits.
// BalanceAfter snapshots the projected balance of the entry's coin kind
// immediately after the mutation.
type LedgerEntry struct {
	ID             int64           `db:"id"`
	UserID         uuid.UUID       `db:"user_id"`
	Amount         int64           `db:"amount"`
	CoinKind       CoinKind        `db:"coin_kind"`
	Type           TransactionType `db:"transaction_type"`
	Source         string          `db:"source"`
	Metadata       map[string]any  `db:"metadata"`
	BalanceAfter   int64           `db:"balance_after"`
	IdempotencyKey *string         `db:"idempotency_key"`
	CreatedAt      time.Time       `db:"created_at"`
}

// IsCredit reports whether the entry increased the balance
func (e *LedgerEntry) IsCredit() bool {
	return e.Amount > 0
}

// HistoryFilter narrows ledger history reads
type HistoryFilter struct {
	Type     *TransactionType
	CoinKind *CoinKind
	Limit    int
	Offset   int
}

// UserStats aggregates a user's lifetime ledger totals
type UserStats struct {
	UserID         uuid.UUID
	TotalPurchased int64
	TotalSpent     int64
	TotalEarned    int64
	TotalBonus     int64
}
