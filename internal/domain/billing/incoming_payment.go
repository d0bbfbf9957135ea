package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// PaymentStatus represents the allocation status of an incoming payment.
// It is fully derived from the amounts except for terminal CANCELLED.
type PaymentStatus string

const (
	PaymentStatusUnallocated        PaymentStatus = "UNALLOCATED"
	PaymentStatusPartiallyAllocated PaymentStatus = "PARTIALLY_ALLOCATED"
	PaymentStatusFullyAllocated     PaymentStatus = "FULLY_ALLOCATED"
	PaymentStatusCancelled          PaymentStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnallocated, PaymentStatusPartiallyAllocated,
		PaymentStatusFullyAllocated, PaymentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents how an incoming payment was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	// PaymentMethodCompensation marks synthetic payments created by the
	// compensation engine to consume credit invoices. No cash moves.
	PaymentMethodCompensation PaymentMethod = "COMPENSATION"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard,
		PaymentMethodCheck, PaymentMethodCompensation:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// IncomingPayment is a recorded receipt, independent of which invoice(s)
// it settles. Invariant outside in-flight transactions:
//
//	unallocatedAmount == totalAmount - sum(active allocations)
//	0 <= unallocatedAmount <= totalAmount (within 0.01)
type IncomingPayment struct {
	shared.BaseAggregateRoot
	PaymentNumber     string
	ClientID          uuid.UUID
	ClientName        string
	TotalAmount       decimal.Decimal
	UnallocatedAmount decimal.Decimal
	PaymentMethod     PaymentMethod
	Reference         string
	Status            PaymentStatus
	PaymentDate       time.Time
	CancelReason      string
	CancelledAt       *time.Time
}

// NewIncomingPayment creates a new, fully unallocated payment
func NewIncomingPayment(
	paymentNumber string,
	clientID uuid.UUID,
	clientName string,
	amount decimal.Decimal,
	method PaymentMethod,
	paymentDate time.Time,
) (*IncomingPayment, error) {
	if paymentNumber == "" {
		return nil, shared.NewValidationError("Payment number cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	amount = valueobject.Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("Payment method is not valid")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewValidationError("Payment date is required")
	}

	p := &IncomingPayment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentNumber:     paymentNumber,
		ClientID:          clientID,
		ClientName:        clientName,
		TotalAmount:       amount,
		UnallocatedAmount: amount,
		PaymentMethod:     method,
		Status:            PaymentStatusUnallocated,
		PaymentDate:       paymentDate,
	}

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return p, nil
}

// NewCompensationPayment creates the synthetic payment used by the
// compensation engine to settle a credit invoice against open invoices.
func NewCompensationPayment(
	paymentNumber string,
	clientID uuid.UUID,
	clientName string,
	creditAmount decimal.Decimal,
	date time.Time,
) (*IncomingPayment, error) {
	return NewIncomingPayment(paymentNumber, clientID, clientName, creditAmount.Abs(), PaymentMethodCompensation, date)
}

// IsCompensation returns true for synthetic compensation payments
func (p *IncomingPayment) IsCompensation() bool {
	return p.PaymentMethod == PaymentMethodCompensation
}

// IsCancelled returns true if the payment is cancelled
func (p *IncomingPayment) IsCancelled() bool {
	return p.Status == PaymentStatusCancelled
}

// CanAllocate returns true if the payment may still be allocated
func (p *IncomingPayment) CanAllocate() bool {
	return p.Status != PaymentStatusCancelled
}

// Allocate consumes part of the unallocated amount.
// The caller validates capacity against the invoice side; this method
// guards only the payment's own capacity.
func (p *IncomingPayment) Allocate(amount decimal.Decimal) error {
	if p.IsCancelled() {
		return shared.NewInvalidStateError("Cannot allocate a cancelled payment")
	}
	amount = valueobject.Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Allocation amount must be positive")
	}
	if amount.GreaterThan(p.UnallocatedAmount) {
		return shared.NewOverAllocationError(fmt.Sprintf(
			"Allocation %s exceeds unallocated amount %s on payment %s",
			amount.StringFixed(2), p.UnallocatedAmount.StringFixed(2), p.PaymentNumber))
	}

	p.UnallocatedAmount = valueobject.Round2(p.UnallocatedAmount.Sub(amount))
	p.deriveStatus()
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// Release is the exact inverse of Allocate, used when an allocation is reversed
func (p *IncomingPayment) Release(amount decimal.Decimal) error {
	amount = valueobject.Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Release amount must be positive")
	}
	restored := valueobject.Round2(p.UnallocatedAmount.Add(amount))
	if restored.GreaterThan(p.TotalAmount.Add(valueobject.MoneyTolerance)) {
		return shared.NewInvalidStateError(fmt.Sprintf(
			"Release would push unallocated amount %s above total %s on payment %s",
			restored.StringFixed(2), p.TotalAmount.StringFixed(2), p.PaymentNumber))
	}

	p.UnallocatedAmount = restored
	p.deriveStatus()
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// deriveStatus maps the unallocated amount to a status.
// CANCELLED is terminal and never re-derived.
func (p *IncomingPayment) deriveStatus() {
	if p.Status == PaymentStatusCancelled {
		return
	}
	switch {
	case valueobject.ApproxZero(p.UnallocatedAmount):
		p.Status = PaymentStatusFullyAllocated
	case valueobject.ApproxEqual(p.UnallocatedAmount, p.TotalAmount):
		p.Status = PaymentStatusUnallocated
	default:
		p.Status = PaymentStatusPartiallyAllocated
	}
}

// DeriveStatus recomputes the status from amounts; exposed so tests can
// recompute-and-compare instead of trusting the stored field.
func (p *IncomingPayment) DeriveStatus() PaymentStatus {
	if p.Status == PaymentStatusCancelled {
		return PaymentStatusCancelled
	}
	switch {
	case valueobject.ApproxZero(p.UnallocatedAmount):
		return PaymentStatusFullyAllocated
	case valueobject.ApproxEqual(p.UnallocatedAmount, p.TotalAmount):
		return PaymentStatusUnallocated
	default:
		return PaymentStatusPartiallyAllocated
	}
}

// Cancel marks the payment as cancelled. The cancellation engine must have
// restored the full unallocated amount first; a payment with outstanding
// allocations cannot be cancelled.
func (p *IncomingPayment) Cancel(reason string) error {
	if p.IsCancelled() {
		return shared.NewInvalidStateError("Payment is already cancelled")
	}
	if reason == "" {
		return shared.NewValidationError("Cancel reason is required")
	}
	if !valueobject.ApproxEqual(p.UnallocatedAmount, p.TotalAmount) {
		return shared.NewInvalidStateError(fmt.Sprintf(
			"Cannot cancel payment %s with outstanding allocations", p.PaymentNumber))
	}

	now := time.Now()
	p.UnallocatedAmount = p.TotalAmount
	p.Status = PaymentStatusCancelled
	p.CancelReason = reason
	p.CancelledAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentCancelledEvent(p))

	return nil
}

// CheckConsistency verifies the payment-side conservation invariant against
// the sum of its active allocations.
func (p *IncomingPayment) CheckConsistency(activeAllocationSum decimal.Decimal) error {
	if !valueobject.ApproxEqual(p.TotalAmount, p.UnallocatedAmount.Add(activeAllocationSum)) {
		return shared.NewInvalidStateError(fmt.Sprintf(
			"Payment %s amounts out of balance: total %s != unallocated %s + allocated %s",
			p.PaymentNumber, p.TotalAmount, p.UnallocatedAmount, activeAllocationSum))
	}
	if p.UnallocatedAmount.LessThan(valueobject.MoneyTolerance.Neg()) ||
		p.UnallocatedAmount.GreaterThan(p.TotalAmount.Add(valueobject.MoneyTolerance)) {
		return shared.NewInvalidStateError(fmt.Sprintf(
			"Payment %s unallocated amount %s outside [0, %s]",
			p.PaymentNumber, p.UnallocatedAmount, p.TotalAmount))
	}
	return nil
}
