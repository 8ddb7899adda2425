// Package uow isolates callers from whether the underlying store supports
// multi-statement transactions. Capability is probed once at startup; callers
// always go through UnitOfWork.Run and never see transaction plumbing errors,
// only the business error raised by their own work function.
package uow

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UnitOfWork runs a unit of work, transactionally when the store allows it.
// The handle passed to fn is the scope every read/write inside the unit must
// use; in best-effort mode it is the plain connection and writes are only
// atomic per statement.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(tx *gorm.DB) error) error
	Transactional() bool
}

type transactionalUnitOfWork struct {
	db  *gorm.DB
	log *zap.Logger
}

func (u *transactionalUnitOfWork) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return u.db.WithContext(ctx).Transaction(fn)
}

func (u *transactionalUnitOfWork) Transactional() bool { return true }

type bestEffortUnitOfWork struct {
	db  *gorm.DB
	log *zap.Logger
}

func (u *bestEffortUnitOfWork) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(u.db.WithContext(ctx))
}

func (u *bestEffortUnitOfWork) Transactional() bool { return false }

// NewTransactional wraps every unit in a real transaction.
func NewTransactional(db *gorm.DB, log *zap.Logger) UnitOfWork {
	return &transactionalUnitOfWork{db: db, log: log}
}

// NewBestEffort runs units directly on the connection; writes are only atomic
// per statement.
func NewBestEffort(db *gorm.DB, log *zap.Logger) UnitOfWork {
	return &bestEffortUnitOfWork{db: db, log: log}
}

// New probes the store once and returns the matching implementation. The
// chosen mode is logged because it determines whether a partial failure can
// leave inconsistent state.
func New(db *gorm.DB, log *zap.Logger) UnitOfWork {
	log = log.Named("uow")
	if err := db.Transaction(func(*gorm.DB) error { return nil }); err != nil {
		log.Warn("store does not support multi-statement transactions, falling back to best-effort units of work",
			zap.Error(err),
		)
		return NewBestEffort(db, log)
	}
	log.Info("transactional units of work enabled")
	return NewTransactional(db, log)
}
