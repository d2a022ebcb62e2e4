package repository

import (
	"context"
	"errors"
	"fmt"

	"herald/database"
	"herald/events"
	"herald/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	giveawayRepo     service.GiveawayRepository
	reactRoleRepo    service.ReactRoleRepository
	verificationRepo service.VerificationRepository
	stickyRepo       service.StickyChannelRepository
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

	u.giveawayRepo = newGiveawayRepositoryWithTx(tx)
	u.reactRoleRepo = newReactRoleRepositoryWithTx(tx)
	u.verificationRepo = newVerificationRepositoryWithTx(tx)
	u.stickyRepo = newStickyChannelRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return u.transactionalBus.Flush(u.ctx)
}

// Rollback rolls back the transaction; calling it after Commit is a no-op
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// GiveawayRepository returns the giveaway repository for this unit of work
func (u *unitOfWork) GiveawayRepository() service.GiveawayRepository {
	if u.giveawayRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.giveawayRepo
}

// ReactRoleRepository returns the react role repository for this unit of work
func (u *unitOfWork) ReactRoleRepository() service.ReactRoleRepository {
	if u.reactRoleRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.reactRoleRepo
}

// VerificationRepository returns the verification repository for this unit of work
func (u *unitOfWork) VerificationRepository() service.VerificationRepository {
	if u.verificationRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.verificationRepo
}

// StickyChannelRepository returns the sticky channel repository for this unit of work
func (u *unitOfWork) StickyChannelRepository() service.StickyChannelRepository {
	if u.stickyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.stickyRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
