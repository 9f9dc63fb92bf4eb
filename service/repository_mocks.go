package service

import (
	"context"
	"time"

	"coliseum/events"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, id uuid.UUID, username string) (*models.User, error) {
	args := m.Called(ctx, id, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) RecordWin(ctx context.Context, id uuid.UUID, winnings int64) error {
	args := m.Called(ctx, id, winnings)
	return args.Error(0)
}

// MockBalanceRepository is a mock implementation of BalanceRepository
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.UserBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalance), args.Error(1)
}

func (m *MockBalanceRepository) CreateIfAbsent(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockBalanceRepository) AddCoins(ctx context.Context, userID uuid.UUID, kind models.CoinKind, amount int64) (int64, error) {
	args := m.Called(ctx, userID, kind, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBalanceRepository) DeductCoins(ctx context.Context, userID uuid.UUID, kind models.CoinKind, amount int64) (int64, error) {
	args := m.Called(ctx, userID, kind, amount)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) GetByUser(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserStats), args.Error(1)
}

func (m *MockLedgerRepository) SumByUser(ctx context.Context, userID uuid.UUID, kind models.CoinKind) (int64, error) {
	args := m.Called(ctx, userID, kind)
	return args.Get(0).(int64), args.Error(1)
}

// MockBattleRepository is a mock implementation of BattleRepository
type MockBattleRepository struct {
	mock.Mock
}

func (m *MockBattleRepository) Create(ctx context.Context, battle *models.Battle) error {
	args := m.Called(ctx, battle)
	return args.Error(0)
}

func (m *MockBattleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Battle), args.Error(1)
}

func (m *MockBattleRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Battle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Battle), args.Error(1)
}

func (m *MockBattleRepository) AddSideTotal(ctx context.Context, battleID uuid.UUID, side models.BattleSide, amount int64) error {
	args := m.Called(ctx, battleID, side, amount)
	return args.Error(0)
}

func (m *MockBattleRepository) Update(ctx context.Context, battle *models.Battle) error {
	args := m.Called(ctx, battle)
	return args.Error(0)
}

func (m *MockBattleRepository) RecordGift(ctx context.Context, gift *models.BattleGift) error {
	args := m.Called(ctx, gift)
	return args.Error(0)
}

func (m *MockBattleRepository) GetPaidSentByUser(ctx context.Context, battleID, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, battleID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBattleRepository) RecordHistory(ctx context.Context, history *models.BattleHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBattleRepository) RecordReward(ctx context.Context, reward *models.BattleReward) error {
	args := m.Called(ctx, reward)
	return args.Error(0)
}

func (m *MockBattleRepository) GetExpiredActive(ctx context.Context, now time.Time) ([]*models.Battle, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Battle), args.Error(1)
}

// MockShowRepository is a mock implementation of ShowRepository
type MockShowRepository struct {
	mock.Mock
}

func (m *MockShowRepository) GetActiveShow(ctx context.Context) (*models.LiveShow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveShow), args.Error(1)
}

func (m *MockShowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LiveShow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveShow), args.Error(1)
}

func (m *MockShowRepository) Create(ctx context.Context, show *models.LiveShow) error {
	args := m.Called(ctx, show)
	return args.Error(0)
}

func (m *MockShowRepository) Update(ctx context.Context, show *models.LiveShow) error {
	args := m.Called(ctx, show)
	return args.Error(0)
}

func (m *MockShowRepository) LockShow(ctx context.Context, showID uuid.UUID) error {
	args := m.Called(ctx, showID)
	return args.Error(0)
}

func (m *MockShowRepository) GetMaxPosition(ctx context.Context, showID uuid.UUID) (int, error) {
	args := m.Called(ctx, showID)
	return args.Int(0), args.Error(1)
}

func (m *MockShowRepository) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockShowRepository) GetActiveEntry(ctx context.Context, showID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	args := m.Called(ctx, showID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WaitlistEntry), args.Error(1)
}

func (m *MockShowRepository) GetEntryByID(ctx context.Context, id int64) (*models.WaitlistEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WaitlistEntry), args.Error(1)
}

func (m *MockShowRepository) UpdateEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockShowRepository) ListEntries(ctx context.Context, showID uuid.UUID) ([]*models.WaitlistEntry, error) {
	args := m.Called(ctx, showID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WaitlistEntry), args.Error(1)
}

func (m *MockShowRepository) UpsertVote(ctx context.Context, vote *models.ShowVote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockShowRepository) CountVotes(ctx context.Context, entryID int64) (*models.VoteTally, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VoteTally), args.Error(1)
}

// MockModerationRepository is a mock implementation of ModerationRepository
type MockModerationRepository struct {
	mock.Mock
}

func (m *MockModerationRepository) CreateAction(ctx context.Context, action *models.ModerationAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockModerationRepository) CreateCommission(ctx context.Context, commission *models.Commission) error {
	args := m.Called(ctx, commission)
	return args.Error(0)
}

func (m *MockModerationRepository) GetCommissionByAction(ctx context.Context, actionID int64) (*models.Commission, error) {
	args := m.Called(ctx, actionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commission), args.Error(1)
}

func (m *MockModerationRepository) GetActionsByTarget(ctx context.Context, targetID uuid.UUID, limit int) ([]*models.ModerationAction, error) {
	args := m.Called(ctx, targetID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ModerationAction), args.Error(1)
}

// MockStreamRepository is a mock implementation of StreamRepository
type MockStreamRepository struct {
	mock.Mock
}

func (m *MockStreamRepository) GetByRoomName(ctx context.Context, roomName string) (*models.Stream, error) {
	args := m.Called(ctx, roomName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stream), args.Error(1)
}

func (m *MockStreamRepository) Create(ctx context.Context, stream *models.Stream) error {
	args := m.Called(ctx, stream)
	return args.Error(0)
}

func (m *MockStreamRepository) Update(ctx context.Context, stream *models.Stream) error {
	args := m.Called(ctx, stream)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// nopEventPublisher drops events, for tests that don't assert on them
type nopEventPublisher struct{}

func (nopEventPublisher) Publish(events.Event) {}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and
// Rollback go through testify expectations; repository getters hand back
// whatever SetRepositories installed.
type MockUnitOfWork struct {
	mock.Mock

	users      UserRepository
	balances   BalanceRepository
	ledger     LedgerRepository
	battles    BattleRepository
	shows      ShowRepository
	moderation ModerationRepository
	streams    StreamRepository
	bus        EventPublisher
}

// SetRepositories installs the repositories the unit of work will hand out.
// Pass nil for repositories the test never touches.
func (m *MockUnitOfWork) SetRepositories(
	users UserRepository,
	balances BalanceRepository,
	ledger LedgerRepository,
	battles BattleRepository,
	shows ShowRepository,
	moderation ModerationRepository,
	streams StreamRepository,
) {
	m.users = users
	m.balances = balances
	m.ledger = ledger
	m.battles = battles
	m.shows = shows
	m.moderation = moderation
	m.streams = streams
}

// SetEventBus installs an event publisher; without one, events are dropped
func (m *MockUnitOfWork) SetEventBus(bus EventPublisher) {
	m.bus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository             { return m.users }
func (m *MockUnitOfWork) BalanceRepository() BalanceRepository       { return m.balances }
func (m *MockUnitOfWork) LedgerRepository() LedgerRepository         { return m.ledger }
func (m *MockUnitOfWork) BattleRepository() BattleRepository         { return m.battles }
func (m *MockUnitOfWork) ShowRepository() ShowRepository             { return m.shows }
func (m *MockUnitOfWork) ModerationRepository() ModerationRepository { return m.moderation }
func (m *MockUnitOfWork) StreamRepository() StreamRepository         { return m.streams }

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.bus == nil {
		return nopEventPublisher{}
	}
	return m.bus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
