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

// paymentSeries is the document series for operator-recorded receipts
const paymentSeries = "OP"

// PaymentService records and reads incoming payments. Recording a payment
// does not touch any invoice; settlement happens separately through the
// allocation engine.
type PaymentService struct {
	uow       billing.UnitOfWork
	sequences shared.Sequencer
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(uow billing.UnitOfWork, sequences shared.Sequencer, logger *zap.Logger) *PaymentService {
	return &PaymentService{uow: uow, sequences: sequences, logger: logger}
}

// RecordPaymentRequest carries the input for RecordPayment
type RecordPaymentRequest struct {
	ClientID   uuid.UUID
	ClientName string
	Amount     decimal.Decimal
	Method     billing.PaymentMethod
	Reference  string
	Date       time.Time
}

// RecordPayment registers a new, fully unallocated receipt
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*billing.IncomingPayment, error) {
	if req.Method == billing.PaymentMethodCompensation {
		return nil, shared.NewValidationError("Compensation payments are created only by the compensation engine")
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	seq, err := s.sequences.Next(ctx, paymentSeries)
	if err != nil {
		return nil, err
	}
	number := fmt.Sprintf("%s-%d", paymentSeries, seq)

	payment, err := billing.NewIncomingPayment(number, req.ClientID, req.ClientName, req.Amount, req.Method, req.Date)
	if err != nil {
		return nil, err
	}
	payment.Reference = req.Reference

	err = s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		return repos.Payments.Save(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("client_id", req.ClientID.String()),
		zap.String("amount", payment.TotalAmount.StringFixed(2)),
		zap.String("method", payment.PaymentMethod.String()))

	return payment, nil
}

// GetPayment returns one payment by id
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*billing.IncomingPayment, error) {
	var payment *billing.IncomingPayment
	err := s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		var err error
		payment, err = repos.Payments.FindByID(ctx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments returns payments matching the filter with a total count
func (s *PaymentService) ListPayments(ctx context.Context, filter billing.PaymentFilter) ([]billing.IncomingPayment, int64, error) {
	var (
		payments []billing.IncomingPayment
		total    int64
	)
	err := s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		var err error
		payments, total, err = repos.Payments.FindAll(ctx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// ListAllocations returns the allocations attached to a payment
func (s *PaymentService) ListAllocations(ctx context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	var allocations []billing.Allocation
	err := s.uow.Execute(ctx, func(ctx context.Context, repos billing.RepositorySet) error {
		if _, err := repos.Payments.FindByID(ctx, paymentID); err != nil {
			return err
		}
		var err error
		allocations, err = repos.Allocations.FindByPayment(ctx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}
