package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// Allocation records "amount X of payment P applied to invoice I on date D".
// AmountAllocated is signed: negative only for the compensation-source entry
// that links a synthetic payment to its credit invoice.
type Allocation struct {
	shared.BaseEntity
	PaymentID       uuid.UUID
	InvoiceID       uuid.UUID
	AmountAllocated decimal.Decimal
	AllocationDate  time.Time
	CreatedBy       *uuid.UUID
}

// NewAllocation creates an allocation record. Capacity checks against both
// parents are the allocation engine's responsibility; only local shape is
// validated here.
func NewAllocation(paymentID, invoiceID uuid.UUID, amount decimal.Decimal, date time.Time) (*Allocation, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewValidationError("Payment ID cannot be empty")
	}
	if invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("Invoice ID cannot be empty")
	}
	amount = valueobject.Round2(amount)
	if amount.IsZero() {
		return nil, shared.NewValidationError("Allocation amount cannot be zero")
	}
	if date.IsZero() {
		date = time.Now()
	}

	return &Allocation{
		BaseEntity:      shared.NewBaseEntity(),
		PaymentID:       paymentID,
		InvoiceID:       invoiceID,
		AmountAllocated: amount,
		AllocationDate:  date,
	}, nil
}

// IsNegative returns true for compensation-source entries
func (a *Allocation) IsNegative() bool {
	return a.AmountAllocated.IsNegative()
}

// SumActive sums the allocated amounts of a slice of allocations
func SumActive(allocations []Allocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocations {
		sum = sum.Add(a.AmountAllocated)
	}
	return valueobject.Round2(sum)
}
