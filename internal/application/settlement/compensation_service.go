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
)

// compensationSeries is the document series used for synthetic payments
const compensationSeries = "CMP"

// CompensationService settles credit (storno) invoices by consuming them
// against the client's other open invoices instead of moving cash.
type CompensationService struct {
	uow       billing.UnitOfWork
	sequences shared.Sequencer
	logger    *zap.Logger
}

// NewCompensationService creates a new compensation service
func NewCompensationService(uow billing.UnitOfWork, sequences shared.Sequencer, logger *zap.Logger) *CompensationService {
	return &CompensationService{uow: uow, sequences: sequences, logger: logger}
}

// CompensateRequest carries the input for Compensate
type CompensateRequest struct {
	CreditInvoiceID uuid.UUID
	Date            time.Time
	ActorID         uuid.UUID
}

// ConsumedInvoice reports one open invoice settled by a compensation
type ConsumedInvoice struct {
	InvoiceID  uuid.UUID
	DocumentID string
	Amount     decimal.Decimal
}

// CompensationResult reports the outcome of a compensation run
type CompensationResult struct {
	PaymentID          uuid.UUID
	PaymentNumber      string
	SourceAllocationID uuid.UUID
	Consumed           []ConsumedInvoice
	LeftoverAmount     decimal.Decimal
}

// Compensate settles a credit invoice: it creates a synthetic COMPENSATION
// payment for the open credit amount, links it to the credit invoice with a
// locked negative source allocation, then consumes the payment against the
// client's open invoices oldest first until exhausted or none remain.
// The whole run is one atomic transaction.
func (s *CompensationService) Compensate(ctx context.Context, req CompensateRequest) (*CompensationResult, error) {
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	// The payment number is drawn before the transaction; an aborted run
	// leaves a gap in the series, which the series tolerates.
	seq, err := s.sequences.Next(ctx, compensationSeries)
	if err != nil {
		return nil, err
	}
	paymentNumber := fmt.Sprintf("%s-%d", compensationSeries, seq)

	var result *CompensationResult
	err = s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		credit, err := repos.Invoices.FindByID(ctx, req.CreditInvoiceID)
		if err != nil {
			return err
		}
		if !credit.IsCredit() {
			return shared.NewValidationError(fmt.Sprintf(
				"Invoice %s is not a credit invoice", credit.DocumentID()))
		}
		if !credit.Status.CanAllocate() {
			return shared.NewInvalidStateError(fmt.Sprintf(
				"Cannot compensate credit invoice %s in %s status", credit.DocumentID(), credit.Status))
		}
		if !credit.RemainingAmount.IsNegative() {
			return shared.NewInvalidStateError(fmt.Sprintf(
				"Credit invoice %s has no open credit to compensate", credit.DocumentID()))
		}

		payment, err := billing.NewCompensationPayment(
			paymentNumber, credit.ClientID, credit.ClientName, credit.RemainingAmount, req.Date)
		if err != nil {
			return err
		}
		if err := repos.Payments.Save(ctx, payment); err != nil {
			return err
		}

		// The source entry funds the payment from the credit invoice.
		// It carries the credit's negative sign and does not consume the
		// payment's unallocated capacity.
		source, err := billing.NewAllocation(payment.ID, credit.ID, credit.RemainingAmount, req.Date)
		if err != nil {
			return err
		}
		if req.ActorID != uuid.Nil {
			source.CreatedBy = &req.ActorID
		}
		if err := repos.Allocations.Create(ctx, source); err != nil {
			return err
		}
		if err := credit.ApplyAllocation(source.AmountAllocated); err != nil {
			return err
		}
		if err := repos.Invoices.SaveWithLock(ctx, credit); err != nil {
			return err
		}

		open, err := repos.Invoices.FindOpenByClient(ctx, credit.ClientID)
		if err != nil {
			return err
		}

		result = &CompensationResult{
			PaymentID:          payment.ID,
			PaymentNumber:      payment.PaymentNumber,
			SourceAllocationID: source.ID,
		}
		for i := range open {
			if payment.UnallocatedAmount.LessThanOrEqual(decimal.Zero) {
				break
			}
			invoice := &open[i]
			if invoice.ID == credit.ID {
				continue
			}
			amount := decimal.Min(payment.UnallocatedAmount, invoice.RemainingAmount)
			if amount.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if _, err := applyAllocation(ctx, repos, payment, invoice, amount, req.Date, req.ActorID); err != nil {
				return err
			}
			result.Consumed = append(result.Consumed, ConsumedInvoice{
				InvoiceID:  invoice.ID,
				DocumentID: invoice.DocumentID(),
				Amount:     amount,
			})
		}
		result.LeftoverAmount = payment.UnallocatedAmount

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credit invoice compensated",
		zap.String("credit_invoice_id", req.CreditInvoiceID.String()),
		zap.String("payment_number", result.PaymentNumber),
		zap.Int("consumed_invoices", len(result.Consumed)),
		zap.String("leftover", result.LeftoverAmount.StringFixed(2)))

	return result, nil
}
