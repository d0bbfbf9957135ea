package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// AllocationService is the allocation engine: it creates and deletes
// allocation records while keeping payment and invoice amounts consistent.
// Every operation runs inside one unit of work on freshly read documents;
// any failure aborts with zero partial effect.
type AllocationService struct {
	uow    billing.UnitOfWork
	logger *zap.Logger
}

// NewAllocationService creates a new allocation service
func NewAllocationService(uow billing.UnitOfWork, logger *zap.Logger) *AllocationService {
	return &AllocationService{uow: uow, logger: logger}
}

// CreateAllocationRequest carries the input for CreateAllocation
type CreateAllocationRequest struct {
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Date      time.Time
	ActorID   uuid.UUID
}

// CreateAllocation applies part of a payment to an invoice.
// The amount must be positive and within both the payment's unallocated
// capacity and the invoice's remaining capacity.
func (s *AllocationService) CreateAllocation(ctx context.Context, req CreateAllocationRequest) (*billing.Allocation, error) {
	amount := valueobject.Round2(req.Amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Allocation amount must be positive")
	}

	var created *billing.Allocation
	err := s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		payment, err := repos.Payments.FindByID(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		if !payment.CanAllocate() {
			return shared.NewInvalidStateError(fmt.Sprintf(
				"Cannot allocate cancelled payment %s", payment.PaymentNumber))
		}

		invoice, err := repos.Invoices.FindByID(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !invoice.Status.CanAllocate() {
			return shared.NewInvalidStateError(fmt.Sprintf(
				"Cannot allocate against invoice %s in %s status", invoice.DocumentID(), invoice.Status))
		}
		if amount.GreaterThan(invoice.RemainingAmount) {
			return shared.NewOverAllocationError(fmt.Sprintf(
				"Allocation %s exceeds remaining amount %s on invoice %s",
				amount.StringFixed(2), invoice.RemainingAmount.StringFixed(2), invoice.DocumentID()))
		}

		created, err = applyAllocation(ctx, repos, payment, invoice, amount, req.Date, req.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("allocation created",
		zap.String("allocation_id", created.ID.String()),
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("amount", amount.StringFixed(2)))

	return created, nil
}

// DeleteAllocation reverses an allocation, restoring both parents to their
// pre-allocation amounts. The negative source entry of a compensation is
// permanently locked: deleting it would resurrect a credit without
// reversing its consumption.
func (s *AllocationService) DeleteAllocation(ctx context.Context, allocationID, actorID uuid.UUID) error {
	err := s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		allocation, err := repos.Allocations.FindByID(ctx, allocationID)
		if err != nil {
			return err
		}
		payment, err := repos.Payments.FindByID(ctx, allocation.PaymentID)
		if err != nil {
			return err
		}
		if payment.IsCompensation() && allocation.IsNegative() {
			return shared.NewInvalidStateError(
				"Compensation source allocation is locked; cancel the compensation payment instead")
		}

		invoice, err := repos.Invoices.FindByID(ctx, allocation.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.IsCancelled() {
			return shared.NewInvalidStateError(fmt.Sprintf(
				"Cannot reverse allocation on cancelled invoice %s", invoice.DocumentID()))
		}

		return reverseAllocation(ctx, repos, payment, invoice, allocation)
	})
	if err != nil {
		return err
	}

	s.logger.Info("allocation deleted",
		zap.String("allocation_id", allocationID.String()),
		zap.String("actor_id", actorID.String()))

	return nil
}

// applyAllocation performs the shared write half of the engine: insert the
// allocation record and move the amounts on both parents. Callers have
// already validated state and invoice capacity.
func applyAllocation(
	ctx context.Context,
	repos billing.RepositorySet,
	payment *billing.IncomingPayment,
	invoice *billing.Invoice,
	amount decimal.Decimal,
	date time.Time,
	actorID uuid.UUID,
) (*billing.Allocation, error) {
	allocation, err := billing.NewAllocation(payment.ID, invoice.ID, amount, date)
	if err != nil {
		return nil, err
	}
	if actorID != uuid.Nil {
		allocation.CreatedBy = &actorID
	}

	if err := payment.Allocate(amount); err != nil {
		return nil, err
	}
	if err := invoice.ApplyAllocation(amount); err != nil {
		return nil, err
	}
	if err := invoice.CheckConsistency(); err != nil {
		return nil, err
	}

	if err := repos.Allocations.Create(ctx, allocation); err != nil {
		return nil, err
	}
	if err := repos.Payments.SaveWithLock(ctx, payment); err != nil {
		return nil, err
	}
	if err := repos.Invoices.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}

	return allocation, nil
}

// reverseAllocation is the exact algebraic inverse of applyAllocation.
// Negative source entries never consumed payment capacity, so only the
// invoice side is restored for them.
func reverseAllocation(
	ctx context.Context,
	repos billing.RepositorySet,
	payment *billing.IncomingPayment,
	invoice *billing.Invoice,
	allocation *billing.Allocation,
) error {
	if err := invoice.ReverseAllocation(allocation.AmountAllocated); err != nil {
		return err
	}
	if allocation.AmountAllocated.IsPositive() {
		if err := payment.Release(allocation.AmountAllocated); err != nil {
			return err
		}
	}
	if err := invoice.CheckConsistency(); err != nil {
		return err
	}

	if err := repos.Allocations.Delete(ctx, allocation.ID); err != nil {
		return err
	}
	if err := repos.Payments.SaveWithLock(ctx, payment); err != nil {
		return err
	}
	return repos.Invoices.SaveWithLock(ctx, invoice)
}
