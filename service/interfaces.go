package service

import (
	"context"
	"time"

	"coliseum/events"
	"coliseum/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Create creates a new user
	Create(ctx context.Context, id uuid.UUID, username string) (*models.User, error)

	// RecordWin increments the user's lifetime win counters atomically
	RecordWin(ctx context.Context, id uuid.UUID, winnings int64) error
}

// BalanceRepository defines the interface for the balance projection.
// Only the ledger service may call the mutating methods.
type BalanceRepository interface {
	// GetByUser retrieves a user's balance row
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)

	// CreateIfAbsent inserts a zero balance row if the user has none
	CreateIfAbsent(ctx context.Context, userID uuid.UUID) error

	// AddCoins adds to one coin kind atomically and returns the new balance of that kind
	AddCoins(ctx context.Context, userID uuid.UUID, kind models.CoinKind, amount int64) (int64, error)

	// DeductCoins deducts from one coin kind atomically, failing with
	// ErrInsufficientFunds if the balance is too low; returns the new balance
	DeductCoins(ctx context.Context, userID uuid.UUID, kind models.CoinKind, amount int64) (int64, error)
}

// LedgerRepository defines the interface for immutable ledger entries
type LedgerRepository interface {
	// Record appends a new ledger entry
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// GetByIdempotencyKey returns the entry recorded under the key, or nil
	GetByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error)

	// GetByUser returns a user's entries, newest first
	GetByUser(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]*models.LedgerEntry, error)

	// GetStats returns aggregate lifetime totals for a user
	GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)

	// SumByUser returns the sum of a user's entries for one coin kind
	SumByUser(ctx context.Context, userID uuid.UUID, kind models.CoinKind) (int64, error)
}

// BattleRepository defines the interface for battle data access
type BattleRepository interface {
	// Create creates a new battle
	Create(ctx context.Context, battle *models.Battle) error

	// GetByID retrieves a battle by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.Battle, error)

	// GetByIDForUpdate retrieves a battle by id with a row lock
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Battle, error)

	// AddSideTotal increments one side's accumulated paid total
	AddSideTotal(ctx context.Context, battleID uuid.UUID, side models.BattleSide, amount int64) error

	// Update persists status, winner and completion time
	Update(ctx context.Context, battle *models.Battle) error

	// RecordGift appends a gift audit row
	RecordGift(ctx context.Context, gift *models.BattleGift) error

	// GetPaidSentByUser returns the paid coins a user sent into a battle
	GetPaidSentByUser(ctx context.Context, battleID, userID uuid.UUID) (int64, error)

	// RecordHistory appends a per-participant outcome row
	RecordHistory(ctx context.Context, history *models.BattleHistory) error

	// RecordReward appends a winner reward row
	RecordReward(ctx context.Context, reward *models.BattleReward) error

	// GetExpiredActive returns active battles whose scoring window has passed
	GetExpiredActive(ctx context.Context, now time.Time) ([]*models.Battle, error)
}

// ShowRepository defines the interface for live show and waitlist data access
type ShowRepository interface {
	// GetActiveShow returns the current active show, or nil
	GetActiveShow(ctx context.Context) (*models.LiveShow, error)

	// GetByID retrieves a show by id
	GetByID(ctx context.Context, id uuid.UUID) (*models.LiveShow, error)

	// Create creates a new show
	Create(ctx context.Context, show *models.LiveShow) error

	// Update persists show state
	Update(ctx context.Context, show *models.LiveShow) error

	// LockShow takes a transaction-scoped advisory lock on the show.
	// Serializes position assignment and performer rotation.
	LockShow(ctx context.Context, showID uuid.UUID) error

	// GetMaxPosition returns the highest assigned position for a show, 0 if none
	GetMaxPosition(ctx context.Context, showID uuid.UUID) (int, error)

	// CreateEntry inserts a waitlist entry
	CreateEntry(ctx context.Context, entry *models.WaitlistEntry) error

	// GetActiveEntry returns a user's non-terminal entry for a show, or nil
	GetActiveEntry(ctx context.Context, showID, userID uuid.UUID) (*models.WaitlistEntry, error)

	// GetEntryByID retrieves a waitlist entry by id
	GetEntryByID(ctx context.Context, id int64) (*models.WaitlistEntry, error)

	// UpdateEntry persists waitlist entry state
	UpdateEntry(ctx context.Context, entry *models.WaitlistEntry) error

	// ListEntries returns a show's entries ordered by position
	ListEntries(ctx context.Context, showID uuid.UUID) ([]*models.WaitlistEntry, error)

	// UpsertVote creates or replaces a voter's vote on an entry
	UpsertVote(ctx context.Context, vote *models.ShowVote) error

	// CountVotes recounts all votes for an entry
	CountVotes(ctx context.Context, entryID int64) (*models.VoteTally, error)
}

// ModerationRepository defines the interface for moderation records
type ModerationRepository interface {
	// CreateAction appends an officer action record
	CreateAction(ctx context.Context, action *models.ModerationAction) error

	// CreateCommission appends a commission record linked to an action
	CreateCommission(ctx context.Context, commission *models.Commission) error

	// GetCommissionByAction returns the commission for an action, or nil
	GetCommissionByAction(ctx context.Context, actionID int64) (*models.Commission, error)

	// GetActionsByTarget returns recent actions against a user
	GetActionsByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*models.ModerationAction, error)
}

// StreamRepository defines the interface for stream record data access
type StreamRepository interface {
	// GetByRoomName retrieves a stream by its media room name, or nil
	GetByRoomName(ctx context.Context, roomName string) (*models.Stream, error)

	// Create creates a new stream record
	Create(ctx context.Context, stream *models.Stream) error

	// Update persists stream state
	Update(ctx context.Context, stream *models.Stream) error
}

// LedgerService defines the interface for coin ledger operations
type LedgerService interface {
	// Credit adds coins to a user. With an idempotency key, a replay
	// returns the prior entry without re-mutating the balance.
	Credit(ctx context.Context, userID uuid.UUID, amount int64, kind models.CoinKind, txType models.TransactionType, idempotencyKey *string, metadata map[string]any) (*models.LedgerEntry, error)

	// Debit removes coins from a user, failing with ErrInsufficientFunds
	// if the kind's balance is below the requested amount
	Debit(ctx context.Context, userID uuid.UUID, amount int64, kind models.CoinKind, txType models.TransactionType, idempotencyKey *string, metadata map[string]any) (*models.LedgerEntry, error)

	// Transfer moves coins between users as a gift_sent/gift_received pair
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, kind models.CoinKind, metadata map[string]any) (*models.LedgerEntry, *models.LedgerEntry, error)

	// GetBalance returns a user's balance projection
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error)

	// GetHistory returns a user's ledger entries
	GetHistory(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]*models.LedgerEntry, error)

	// GetStats returns aggregate totals for a user
	GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)

	// GetUserByUsername resolves a username to its user record
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// BattleService defines the interface for battle operations
type BattleService interface {
	// Start creates an active battle between two users
	Start(ctx context.Context, hostID, challengerID uuid.UUID, hostStreamID, challengerStreamID *uuid.UUID) (*models.Battle, error)

	// ApplyGift routes a gift through the ledger and scores the named
	// side when the coins are paid
	ApplyGift(ctx context.Context, battleID, senderID uuid.UUID, side models.BattleSide, amount int64, kind models.CoinKind) (*models.Battle, error)

	// Complete settles the battle; safe to call repeatedly
	Complete(ctx context.Context, battleID uuid.UUID) (*models.BattleResult, error)
}

// ShowService defines the interface for live show queue operations
type ShowService interface {
	// OpenShow activates a new show with the given entry fee
	OpenShow(ctx context.Context, entryFee int64) (*models.LiveShow, error)

	// CloseShow deactivates a show
	CloseShow(ctx context.Context, showID uuid.UUID) error

	// GetCurrentShow returns the active show, or nil
	GetCurrentShow(ctx context.Context) (*models.LiveShow, error)

	// JoinWaitlist charges the entry fee and queues the user
	JoinWaitlist(ctx context.Context, userID uuid.UUID) (*models.WaitlistEntry, error)

	// LeaveWaitlist marks a non-performing entry as left
	LeaveWaitlist(ctx context.Context, userID, showID uuid.UUID) error

	// CastVote upserts the voter's vote and recounts the entry's tallies
	CastVote(ctx context.Context, showID uuid.UUID, entryID int64, voterID uuid.UUID, voteType models.VoteType) (*models.VoteTally, error)

	// StartPerformance rotates the performer slot to the given user
	StartPerformance(ctx context.Context, showID, performerID uuid.UUID) error

	// EndPerformance completes the performance and pays out wins
	EndPerformance(ctx context.Context, showID, performerID uuid.UUID) (*models.PerformanceResult, error)

	// GetWaitlist returns a show's entries ordered by position
	GetWaitlist(ctx context.Context, showID uuid.UUID) ([]*models.WaitlistEntry, error)
}

// ModerationService defines the interface for moderation fee operations
type ModerationService interface {
	// ApplyFee debits the target (paid preferred, bonus fallback),
	// records the action and credits the officer's commission
	ApplyFee(ctx context.Context, officerID, targetID uuid.UUID, actionType models.ModerationActionType, feeAmount int64, reason *string, streamID *uuid.UUID) (*models.FeeResult, error)

	// GetHistory returns recent actions against a user with their commissions
	GetHistory(ctx context.Context, targetID uuid.UUID, limit int) ([]*models.ModerationRecord, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	BalanceRepository() BalanceRepository
	LedgerRepository() LedgerRepository
	BattleRepository() BattleRepository
	ShowRepository() ShowRepository
	ModerationRepository() ModerationRepository
	StreamRepository() StreamRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
