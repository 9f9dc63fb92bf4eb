package repository

import (
	"context"
	"fmt"

	"coliseum/database"
	"coliseum/events"
	"coliseum/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	userRepo         service.UserRepository
	balanceRepo      service.BalanceRepository
	ledgerRepo       service.LedgerRepository
	battleRepo       service.BattleRepository
	showRepo         service.ShowRepository
	moderationRepo   service.ModerationRepository
	streamRepo       service.StreamRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.userRepo = newUserRepositoryWithTx(tx)
	u.balanceRepo = newBalanceRepositoryWithTx(tx)
	u.ledgerRepo = newLedgerRepositoryWithTx(tx)
	u.battleRepo = newBattleRepositoryWithTx(tx)
	u.showRepo = newShowRepositoryWithTx(tx)
	u.moderationRepo = newModerationRepositoryWithTx(tx)
	u.streamRepo = newStreamRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// BalanceRepository returns the balance repository for this unit of work
func (u *unitOfWork) BalanceRepository() service.BalanceRepository {
	if u.balanceRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceRepo
}

// LedgerRepository returns the ledger repository for this unit of work
func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// BattleRepository returns the battle repository for this unit of work
func (u *unitOfWork) BattleRepository() service.BattleRepository {
	if u.battleRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.battleRepo
}

// ShowRepository returns the show repository for this unit of work
func (u *unitOfWork) ShowRepository() service.ShowRepository {
	if u.showRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.showRepo
}

// ModerationRepository returns the moderation repository for this unit of work
func (u *unitOfWork) ModerationRepository() service.ModerationRepository {
	if u.moderationRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.moderationRepo
}

// StreamRepository returns the stream repository for this unit of work
func (u *unitOfWork) StreamRepository() service.StreamRepository {
	if u.streamRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.streamRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
