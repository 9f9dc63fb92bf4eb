package events

import (
	"context"
	"sync"
	"time"

	"coliseum/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeBattleCompleted    EventType = "battle_completed"
	EventTypePerformanceEnded   EventType = "performance_ended"
	EventTypeCommissionRecorded EventType = "commission_recorded"
	EventTypeStreamStateChanged EventType = "stream_state_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          uuid.UUID
	CoinKind        models.CoinKind
	TransactionType models.TransactionType
	ChangeAmount    int64
	NewBalance      int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// BattleCompletedEvent represents a battle that reached its terminal state
type BattleCompletedEvent struct {
	BattleID        uuid.UUID
	WinnerID        *uuid.UUID
	HostTotal       int64
	ChallengerTotal int64
	Payout          int64
}

func (e BattleCompletedEvent) Type() EventType {
	return EventTypeBattleCompleted
}

// PerformanceEndedEvent represents a completed live show performance
type PerformanceEndedEvent struct {
	ShowID          uuid.UUID
	PerformerID     uuid.UUID
	DurationSeconds int
	Won             bool
	Payout          int64
}

func (e PerformanceEndedEvent) Type() EventType {
	return EventTypePerformanceEnded
}

// CommissionRecordedEvent represents a commission paid out to an officer
type CommissionRecordedEvent struct {
	ActionID  int64
	OfficerID uuid.UUID
	TargetID  uuid.UUID
	Amount    int64
	USDValue  float64
}

func (e CommissionRecordedEvent) Type() EventType {
	return EventTypeCommissionRecorded
}

// StreamStateChangedEvent represents a stream lifecycle transition
type StreamStateChangedEvent struct {
	StreamID  uuid.UUID
	RoomName  string
	OldStatus models.StreamStatus
	NewStatus models.StreamStatus
	At        time.Time
}

func (e StreamStateChangedEvent) Type() EventType {
	return EventTypeStreamStateChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Use background context for event emission to avoid issues with
	// transaction context expiration
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
