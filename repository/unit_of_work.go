package repository

import (
	"context"
	"fmt"

	"surveydraw/database"
	"surveydraw/events"
	"surveydraw/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	surveyRepo       service.SurveyInstanceRepository
	responseRepo     service.ResponseRepository
	preferenceRepo   service.NotificationPreferenceRepository
	drawRecordRepo   service.DrawRecordRepository
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

	u.surveyRepo = newSurveyInstanceRepositoryWithTx(tx)
	u.responseRepo = newResponseRepositoryWithTx(tx)
	u.preferenceRepo = newNotificationPreferenceRepositoryWithTx(tx)
	u.drawRecordRepo = newDrawRecordRepositoryWithTx(tx)

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
	if err := u.transactionalBus.Flush(u.ctx); err != nil {
		log.WithError(err).Error("Failed to flush events after commit")
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	// The request context may already be cancelled; the rollback must still reach the server
	err := u.tx.Rollback(context.WithoutCancel(u.ctx))
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil
	u.transactionalBus.Discard()

	return nil
}

// SurveyInstanceRepository returns the survey instance repository for this unit of work
func (u *unitOfWork) SurveyInstanceRepository() service.SurveyInstanceRepository {
	if u.surveyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.surveyRepo
}

// ResponseRepository returns the response repository for this unit of work
func (u *unitOfWork) ResponseRepository() service.ResponseRepository {
	if u.responseRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.responseRepo
}

// NotificationPreferenceRepository returns the notification preference repository for this unit of work
func (u *unitOfWork) NotificationPreferenceRepository() service.NotificationPreferenceRepository {
	if u.preferenceRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.preferenceRepo
}

// DrawRecordRepository returns the draw record repository for this unit of work
func (u *unitOfWork) DrawRecordRepository() service.DrawRecordRepository {
	if u.drawRecordRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.drawRecordRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
