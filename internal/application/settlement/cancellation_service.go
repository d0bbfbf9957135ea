package settlement

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
)

// CancellationService cancels incoming payments. There is one canonical
// rule: a payment that was never allocated is cancelled directly, and a
// payment with allocations is cancelled by reversing every allocation
// first. Both run through the same path in one transaction.
type CancellationService struct {
	uow    billing.UnitOfWork
	logger *zap.Logger
}

// NewCancellationService creates a new cancellation service
func NewCancellationService(uow billing.UnitOfWork, logger *zap.Logger) *CancellationService {
	return &CancellationService{uow: uow, logger: logger}
}

// CancelPayment reverses all allocations on the payment, deletes them, and
// marks the payment CANCELLED with its full amount restored. A compensation
// payment refuses cancellation while its negative source entry exists,
// because reversing it would resurrect credit that was already consumed.
func (s *CancellationService) CancelPayment(ctx context.Context, paymentID uuid.UUID, reason string, actorID uuid.UUID) error {
	if reason == "" {
		return shared.NewValidationError("Cancel reason is required")
	}

	var reversed int
	err := s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		payment, err := repos.Payments.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.IsCancelled() {
			return shared.NewInvalidStateError("Payment is already cancelled")
		}

		allocations, err := repos.Allocations.FindByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.PaymentMethod == billing.PaymentMethodCompensation {
			for i := range allocations {
				if allocations[i].AmountAllocated.IsNegative() {
					return shared.NewInvalidStateError(
						"Cannot cancel a compensation payment while its credit source allocation exists")
				}
			}
		}
		for i := range allocations {
			allocation := &allocations[i]
			invoice, err := repos.Invoices.FindByID(ctx, allocation.InvoiceID)
			if err != nil {
				return err
			}
			if err := reverseAllocation(ctx, repos, payment, invoice, allocation); err != nil {
				return err
			}
		}
		reversed = len(allocations)

		if err := payment.Cancel(reason); err != nil {
			return err
		}
		return repos.Payments.SaveWithLock(ctx, payment)
	})
	if err != nil {
		return err
	}

	s.logger.Info("payment cancelled",
		zap.String("payment_id", paymentID.String()),
		zap.String("reason", reason),
		zap.Int("allocations_reversed", reversed),
		zap.String("actor_id", actorID.String()))

	return nil
}
