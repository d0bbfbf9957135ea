package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/billing"
)

// GormUnitOfWork implements billing.UnitOfWork over a GORM transaction.
// The repositories handed to the callback are bound to the transaction, so
// every read and write inside the callback shares one atomic scope. Any error
// returned by the callback rolls the whole transaction back.
type GormUnitOfWork struct {
	db *Database
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *Database) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn against a transaction-bound RepositorySet
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos billing.RepositorySet) error) error {
	return u.db.Transaction(func(tx *gorm.DB) error {
		repos := billing.RepositorySet{
			Invoices:    NewGormInvoiceRepository(tx),
			Payments:    NewGormIncomingPaymentRepository(tx),
			Allocations: NewGormAllocationRepository(tx),
		}
		return fn(ctx, repos)
	})
}

// Ensure GormUnitOfWork implements billing.UnitOfWork
var _ billing.UnitOfWork = (*GormUnitOfWork)(nil)
