package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	ClientID       *uuid.UUID
	Status         *InvoiceStatus
	InvoiceType    *InvoiceType
	EFacturaStatus *EFacturaStatus
	FromDate       *time.Time
	ToDate         *time.Time
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	// FindOpenByClient returns invoices open for settlement (positive
	// remaining amount, allocatable status), oldest issue date first.
	FindOpenByClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error)
	// FindByEFacturaStatus returns invoices in the given submission status,
	// used by the bulk poller.
	FindByEFacturaStatus(ctx context.Context, status EFacturaStatus) ([]Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
	// SaveWithLock saves with optimistic locking; it must fail with a
	// concurrency conflict when the stored version has moved on.
	SaveWithLock(ctx context.Context, invoice *Invoice) error
	// SumOutstandingByClient sums positive remaining amounts for a client
	SumOutstandingByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
	// SumOpenCreditByClient sums negative remaining amounts for a client
	SumOpenCreditByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
}

// PaymentFilter defines filtering options for payment queries
type PaymentFilter struct {
	shared.Filter
	ClientID *uuid.UUID
	Status   *PaymentStatus
	Method   *PaymentMethod
}

// IncomingPaymentRepository defines the interface for payment persistence
type IncomingPaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*IncomingPayment, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]IncomingPayment, int64, error)
	Save(ctx context.Context, payment *IncomingPayment) error
	SaveWithLock(ctx context.Context, payment *IncomingPayment) error
	// SumUnallocatedByClient sums unallocated amounts of non-cancelled payments
	SumUnallocatedByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
}

// AllocationRepository defines the interface for allocation persistence.
// Allocations are created and deleted only; they are never updated.
type AllocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]Allocation, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error)
	// FindLatestByInvoice returns the most recent allocation for an invoice,
	// or nil when the invoice is unsettled.
	FindLatestByInvoice(ctx context.Context, invoiceID uuid.UUID) (*Allocation, error)
	Create(ctx context.Context, allocation *Allocation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RepositorySet bundles the ledger repositories bound to one transaction
type RepositorySet struct {
	Invoices    InvoiceRepository
	Payments    IncomingPaymentRepository
	Allocations AllocationRepository
}

// UnitOfWork executes a function against a RepositorySet inside one atomic
// transaction. Any error aborts the whole transaction with zero partial
// effect; a conflicting concurrent writer surfaces as a concurrency error
// and is not retried automatically.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos RepositorySet) error) error
}
