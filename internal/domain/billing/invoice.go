package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusCreated     InvoiceStatus = "CREATED"      // Draft, not yet approved
	InvoiceStatusApproved    InvoiceStatus = "APPROVED"     // Approved, open for settlement
	InvoiceStatusRejected    InvoiceStatus = "REJECTED"     // Rejected during approval
	InvoiceStatusPartialPaid InvoiceStatus = "PARTIAL_PAID" // Partially settled
	InvoiceStatusPaid        InvoiceStatus = "PAID"         // Fully settled
	InvoiceStatusCancelled   InvoiceStatus = "CANCELLED"    // Cancelled, terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusCreated, InvoiceStatusApproved, InvoiceStatusRejected,
		InvoiceStatusPartialPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanAllocate returns true if allocations may be applied in this status.
// Only fully settled and cancelled invoices are closed to allocation.
func (s InvoiceStatus) CanAllocate() bool {
	return s != InvoiceStatusPaid && s != InvoiceStatusCancelled
}

// InvoiceType distinguishes the commercial nature of the document
type InvoiceType string

const (
	InvoiceTypeStandard InvoiceType = "STANDARD" // Regular sales invoice
	InvoiceTypeAvans    InvoiceType = "AVANS"    // Advance payment invoice
	InvoiceTypeStorno   InvoiceType = "STORNO"   // Credit/reversal invoice, negative value
	InvoiceTypeProforma InvoiceType = "PROFORMA" // Proforma, not a fiscal document
)

// IsValid checks if the invoice type is valid
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeStandard, InvoiceTypeAvans, InvoiceTypeStorno, InvoiceTypeProforma:
		return true
	}
	return false
}

// IsCredit returns true for credit (storno) documents
func (t InvoiceType) IsCredit() bool {
	return t == InvoiceTypeStorno
}

// EFacturaStatus is the e-invoice submission status denormalized onto the invoice
type EFacturaStatus string

const (
	EFacturaStatusPending      EFacturaStatus = "PENDING"       // Never submitted
	EFacturaStatusSent         EFacturaStatus = "SENT"          // Uploaded, awaiting verdict
	EFacturaStatusAccepted     EFacturaStatus = "ACCEPTED"      // Validated by the authority
	EFacturaStatusRejectedAnaf EFacturaStatus = "REJECTED_ANAF" // Rejected; stable and retryable
)

// IsValid checks if the e-factura status is valid
func (s EFacturaStatus) IsValid() bool {
	switch s {
	case EFacturaStatusPending, EFacturaStatusSent, EFacturaStatusAccepted, EFacturaStatusRejectedAnaf:
		return true
	}
	return false
}

// eFacturaErrorLimit caps the stored rejection message
const eFacturaErrorLimit = 500

// InvoiceLine is a value object for a single billed item, stored as JSONB.
// Line-level tax and cost calculation happens upstream; only the snapshot
// needed for totals and the wire document is kept here.
type InvoiceLine struct {
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	VatRate         decimal.Decimal `json:"vat_rate"`
	TaxCategory     string          `json:"tax_category"`
	ExemptionReason string          `json:"exemption_reason,omitempty"`
}

// NetAmount returns quantity * unit price rounded to 2 decimals.
// The unit price itself is kept at 6-decimal precision.
func (l InvoiceLine) NetAmount() decimal.Decimal {
	return valueobject.Round2(l.Quantity.Mul(valueobject.Round6(l.UnitPrice)))
}

// VatAmount returns the VAT for this line rounded to 2 decimals
func (l InvoiceLine) VatAmount() decimal.Decimal {
	return valueobject.Round2(l.NetAmount().Mul(l.VatRate).Div(decimal.NewFromInt(100)))
}

// InvoiceLines implements GORM Scanner/Valuer for JSONB storage
type InvoiceLines []InvoiceLine

// Value implements driver.Valuer for GORM to store as JSONB
func (l InvoiceLines) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (l *InvoiceLines) Scan(value interface{}) error {
	if value == nil {
		*l = InvoiceLines{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan InvoiceLines: unsupported type")
	}
	if len(bytes) == 0 {
		*l = InvoiceLines{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Invoice represents a billing document owed by a client.
// GrandTotal is immutable after issue; PaidAmount and RemainingAmount are
// mutated only by the allocation, compensation and cancellation engines.
// Invariant outside in-flight transactions:
//
//	paidAmount + remainingAmount == grandTotal (within 0.01)
//
// RemainingAmount is negative for STORNO invoices: credit owed to the client.
type Invoice struct {
	shared.BaseAggregateRoot
	Series          string
	Number          int
	ClientID        uuid.UUID
	ClientName      string
	InvoiceType     InvoiceType
	Currency        valueobject.Currency
	IssueDate       time.Time
	DueDate         *time.Time
	Lines           InvoiceLines
	GrandTotal      decimal.Decimal
	PaidAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	Status          InvoiceStatus
	EFacturaStatus  EFacturaStatus
	EFacturaUploadID string
	EFacturaError    string
	RejectReason     string
	CancelReason     string
	CancelledAt      *time.Time
}

// NewInvoice creates a new invoice in CREATED status.
// grandTotal must match the document sign: negative for STORNO, positive otherwise.
func NewInvoice(
	series string,
	clientID uuid.UUID,
	clientName string,
	invoiceType InvoiceType,
	currency valueobject.Currency,
	issueDate time.Time,
	lines InvoiceLines,
	grandTotal decimal.Decimal,
) (*Invoice, error) {
	if series == "" {
		return nil, shared.NewValidationError("Invoice series cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, shared.NewValidationError("Client ID cannot be empty")
	}
	if clientName == "" {
		return nil, shared.NewValidationError("Client name cannot be empty")
	}
	if !invoiceType.IsValid() {
		return nil, shared.NewValidationError("Invoice type is not valid")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if issueDate.IsZero() {
		return nil, shared.NewValidationError("Issue date is required")
	}
	grandTotal = valueobject.Round2(grandTotal)
	if invoiceType.IsCredit() {
		if !grandTotal.IsNegative() {
			return nil, shared.NewValidationError("Storno invoice must have a negative grand total")
		}
	} else if grandTotal.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Grand total must be positive")
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Series:            series,
		ClientID:          clientID,
		ClientName:        clientName,
		InvoiceType:       invoiceType,
		Currency:          currency,
		IssueDate:         issueDate,
		Lines:             lines,
		GrandTotal:        grandTotal,
		PaidAmount:        decimal.Zero,
		RemainingAmount:   grandTotal,
		Status:            InvoiceStatusCreated,
		EFacturaStatus:    EFacturaStatusPending,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// DocumentID returns the series+number identifier used on wire documents
func (inv *Invoice) DocumentID() string {
	return fmt.Sprintf("%s-%d", inv.Series, inv.Number)
}

// Approve moves the invoice from CREATED to APPROVED and assigns its number
func (inv *Invoice) Approve(number int, approvedBy uuid.UUID) error {
	if inv.Status != InvoiceStatusCreated {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot approve invoice in %s status", inv.Status))
	}
	if number <= 0 {
		return shared.NewValidationError("Invoice number must be positive")
	}
	if approvedBy == uuid.Nil {
		return shared.NewValidationError("Approving user ID is required")
	}

	inv.Number = number
	inv.Status = InvoiceStatusApproved
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceApprovedEvent(inv))

	return nil
}

// Reject moves the invoice from CREATED to REJECTED
func (inv *Invoice) Reject(reason string, rejectedBy uuid.UUID) error {
	if inv.Status != InvoiceStatusCreated {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot reject invoice in %s status", inv.Status))
	}
	if reason == "" {
		return shared.NewValidationError("Reject reason is required")
	}
	if rejectedBy == uuid.Nil {
		return shared.NewValidationError("Rejecting user ID is required")
	}

	inv.Status = InvoiceStatusRejected
	inv.RejectReason = reason
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// ApplyAllocation records a settlement amount against the invoice.
// The amount is signed: positive for normal settlement, negative for the
// compensation source entry on a credit invoice. RemainingAmount is always
// recomputed from GrandTotal so that a later reversal restores the exact
// pre-allocation snapshot.
func (inv *Invoice) ApplyAllocation(amount decimal.Decimal) error {
	if !inv.Status.CanAllocate() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot allocate against invoice in %s status", inv.Status))
	}
	if amount.IsZero() {
		return shared.NewValidationError("Allocation amount cannot be zero")
	}

	inv.PaidAmount = valueobject.Round2(inv.PaidAmount.Add(amount))
	inv.RemainingAmount = valueobject.Round2(inv.GrandTotal.Sub(inv.PaidAmount))
	inv.deriveSettlementStatus()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	if inv.Status == InvoiceStatusPaid {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}

	return nil
}

// ReverseAllocation is the exact algebraic inverse of ApplyAllocation
func (inv *Invoice) ReverseAllocation(amount decimal.Decimal) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewInvalidStateError("Cannot reverse allocation on a cancelled invoice")
	}

	inv.PaidAmount = valueobject.Round2(inv.PaidAmount.Sub(amount))
	inv.RemainingAmount = valueobject.Round2(inv.GrandTotal.Sub(inv.PaidAmount))
	inv.deriveSettlementStatus()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// deriveSettlementStatus re-derives the stored settlement status from amounts.
// A remaining balance within 0.001 of zero is clamped to exactly zero.
func (inv *Invoice) deriveSettlementStatus() {
	if valueobject.Settled(inv.RemainingAmount) {
		inv.RemainingAmount = decimal.Zero
		inv.Status = InvoiceStatusPaid
		return
	}
	if inv.PaidAmount.IsZero() {
		inv.Status = InvoiceStatusApproved
		return
	}
	inv.Status = InvoiceStatusPartialPaid
}

// Cancel cancels an invoice that carries no settlements
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCancelled {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if !inv.PaidAmount.IsZero() {
		return shared.NewInvalidStateError("Cannot cancel invoice with existing allocations")
	}
	if reason == "" {
		return shared.NewValidationError("Cancel reason is required")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelReason = reason
	inv.CancelledAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// MarkEFacturaSent records a successful upload on the invoice
func (inv *Invoice) MarkEFacturaSent(uploadID string) {
	inv.EFacturaStatus = EFacturaStatusSent
	inv.EFacturaUploadID = uploadID
	inv.EFacturaError = ""
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// MarkEFacturaAccepted records an accepted verdict on the invoice
func (inv *Invoice) MarkEFacturaAccepted() {
	inv.EFacturaStatus = EFacturaStatusAccepted
	inv.EFacturaError = ""
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// MarkEFacturaRejected records a rejection with a truncated error message.
// REJECTED_ANAF is a stable, retryable state.
func (inv *Invoice) MarkEFacturaRejected(message string) {
	inv.EFacturaStatus = EFacturaStatusRejectedAnaf
	inv.EFacturaError = TruncateError(message)
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}

// TruncateError trims an error message for storage and display
func TruncateError(message string) string {
	if len(message) > eFacturaErrorLimit {
		return message[:eFacturaErrorLimit]
	}
	return message
}

// IsCredit returns true if this is a credit (storno) invoice
func (inv *Invoice) IsCredit() bool {
	return inv.InvoiceType.IsCredit()
}

// IsPaid returns true if the invoice is fully settled
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsCancelled returns true if the invoice is cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// OpenRemaining returns the remaining amount still open for settlement
func (inv *Invoice) OpenRemaining() decimal.Decimal {
	return inv.RemainingAmount
}

// CheckConsistency verifies paid + remaining == grand total within tolerance.
// Used by tests and by the engines as a post-condition.
func (inv *Invoice) CheckConsistency() error {
	if !valueobject.ApproxEqual(inv.PaidAmount.Add(inv.RemainingAmount), inv.GrandTotal) {
		return shared.NewInvalidStateError(fmt.Sprintf(
			"Invoice %s amounts out of balance: paid %s + remaining %s != total %s",
			inv.DocumentID(), inv.PaidAmount, inv.RemainingAmount, inv.GrandTotal))
	}
	return nil
}
