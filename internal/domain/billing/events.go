package billing

import (
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/shared"
)

// Event types for the billing context
const (
	EventTypeInvoiceCreated    = "billing.invoice.created"
	EventTypeInvoiceApproved   = "billing.invoice.approved"
	EventTypeInvoicePaid       = "billing.invoice.paid"
	EventTypePaymentRecorded   = "billing.payment.recorded"
	EventTypePaymentCancelled  = "billing.payment.cancelled"
	EventTypeAllocationCreated = "billing.allocation.created"
	EventTypeAllocationDeleted = "billing.allocation.deleted"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	Series      string          `json:"series"`
	ClientID    string          `json:"client_id"`
	InvoiceType InvoiceType     `json:"invoice_type"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, "Invoice", inv.ID),
		Series:          inv.Series,
		ClientID:        inv.ClientID.String(),
		InvoiceType:     inv.InvoiceType,
		GrandTotal:      inv.GrandTotal,
	}
}

// InvoiceApprovedEvent is raised when an invoice is approved
type InvoiceApprovedEvent struct {
	shared.BaseDomainEvent
	DocumentID string `json:"document_id"`
}

// NewInvoiceApprovedEvent creates a new InvoiceApprovedEvent
func NewInvoiceApprovedEvent(inv *Invoice) *InvoiceApprovedEvent {
	return &InvoiceApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceApproved, "Invoice", inv.ID),
		DocumentID:      inv.DocumentID(),
	}
}

// InvoicePaidEvent is raised when an invoice becomes fully settled
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	DocumentID string          `json:"document_id"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, "Invoice", inv.ID),
		DocumentID:      inv.DocumentID(),
		PaidAmount:      inv.PaidAmount,
	}
}

// PaymentRecordedEvent is raised when an incoming payment is recorded
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string          `json:"payment_number"`
	ClientID      string          `json:"client_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Method        PaymentMethod   `json:"method"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *IncomingPayment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "IncomingPayment", p.ID),
		PaymentNumber:   p.PaymentNumber,
		ClientID:        p.ClientID.String(),
		TotalAmount:     p.TotalAmount,
		Method:          p.PaymentMethod,
	}
}

// PaymentCancelledEvent is raised when a payment is cancelled
type PaymentCancelledEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string `json:"payment_number"`
	Reason        string `json:"reason"`
}

// NewPaymentCancelledEvent creates a new PaymentCancelledEvent
func NewPaymentCancelledEvent(p *IncomingPayment) *PaymentCancelledEvent {
	return &PaymentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCancelled, "IncomingPayment", p.ID),
		PaymentNumber:   p.PaymentNumber,
		Reason:          p.CancelReason,
	}
}
