package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	Series           string                 `gorm:"type:varchar(10);not null;uniqueIndex:idx_invoice_series_number,priority:1,where:number > 0"`
	Number           int                    `gorm:"not null;default:0;uniqueIndex:idx_invoice_series_number,priority:2,where:number > 0"`
	ClientID         uuid.UUID              `gorm:"type:uuid;not null;index"`
	ClientName       string                 `gorm:"type:varchar(200);not null"`
	InvoiceType      billing.InvoiceType    `gorm:"type:varchar(20);not null;index"`
	Currency         valueobject.Currency   `gorm:"type:varchar(3);not null;default:'RON'"`
	IssueDate        time.Time              `gorm:"not null;index"`
	DueDate          *time.Time             `gorm:"index"`
	Lines            billing.InvoiceLines   `gorm:"type:jsonb;default:'[]'"`
	GrandTotal       decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	PaidAmount       decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	RemainingAmount  decimal.Decimal        `gorm:"type:decimal(18,2);not null;index"`
	Status           billing.InvoiceStatus  `gorm:"type:varchar(20);not null;default:'CREATED';index"`
	EFacturaStatus   billing.EFacturaStatus `gorm:"column:efactura_status;type:varchar(20);not null;default:'PENDING';index"`
	EFacturaUploadID string                 `gorm:"column:efactura_upload_id;type:varchar(64)"`
	EFacturaError    string                 `gorm:"column:efactura_error;type:varchar(500)"`
	RejectReason     string                 `gorm:"type:varchar(500)"`
	CancelReason     string                 `gorm:"type:varchar(500)"`
	CancelledAt      *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Series:            m.Series,
		Number:            m.Number,
		ClientID:          m.ClientID,
		ClientName:        m.ClientName,
		InvoiceType:       m.InvoiceType,
		Currency:          m.Currency,
		IssueDate:         m.IssueDate,
		DueDate:           m.DueDate,
		Lines:             m.Lines,
		GrandTotal:        m.GrandTotal,
		PaidAmount:        m.PaidAmount,
		RemainingAmount:   m.RemainingAmount,
		Status:            m.Status,
		EFacturaStatus:    m.EFacturaStatus,
		EFacturaUploadID:  m.EFacturaUploadID,
		EFacturaError:     m.EFacturaError,
		RejectReason:      m.RejectReason,
		CancelReason:      m.CancelReason,
		CancelledAt:       m.CancelledAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.Series = inv.Series
	m.Number = inv.Number
	m.ClientID = inv.ClientID
	m.ClientName = inv.ClientName
	m.InvoiceType = inv.InvoiceType
	m.Currency = inv.Currency
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Lines = inv.Lines
	m.GrandTotal = inv.GrandTotal
	m.PaidAmount = inv.PaidAmount
	m.RemainingAmount = inv.RemainingAmount
	m.Status = inv.Status
	m.EFacturaStatus = inv.EFacturaStatus
	m.EFacturaUploadID = inv.EFacturaUploadID
	m.EFacturaError = inv.EFacturaError
	m.RejectReason = inv.RejectReason
	m.CancelReason = inv.CancelReason
	m.CancelledAt = inv.CancelledAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// IncomingPaymentModel is the persistence model for the IncomingPayment aggregate root.
type IncomingPaymentModel struct {
	AggregateModel
	PaymentNumber     string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	ClientID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	ClientName        string                `gorm:"type:varchar(200);not null"`
	TotalAmount       decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	UnallocatedAmount decimal.Decimal       `gorm:"type:decimal(18,2);not null;index"`
	PaymentMethod     billing.PaymentMethod `gorm:"type:varchar(20);not null;index"`
	Reference         string                `gorm:"type:varchar(200)"`
	Status            billing.PaymentStatus `gorm:"type:varchar(25);not null;default:'UNALLOCATED';index"`
	PaymentDate       time.Time             `gorm:"not null;index"`
	CancelReason      string                `gorm:"type:varchar(500)"`
	CancelledAt       *time.Time
}

// TableName returns the table name for GORM
func (IncomingPaymentModel) TableName() string {
	return "incoming_payments"
}

// ToDomain converts the persistence model to a domain IncomingPayment entity.
func (m *IncomingPaymentModel) ToDomain() *billing.IncomingPayment {
	return &billing.IncomingPayment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PaymentNumber:     m.PaymentNumber,
		ClientID:          m.ClientID,
		ClientName:        m.ClientName,
		TotalAmount:       m.TotalAmount,
		UnallocatedAmount: m.UnallocatedAmount,
		PaymentMethod:     m.PaymentMethod,
		Reference:         m.Reference,
		Status:            m.Status,
		PaymentDate:       m.PaymentDate,
		CancelReason:      m.CancelReason,
		CancelledAt:       m.CancelledAt,
	}
}

// FromDomain populates the persistence model from a domain IncomingPayment entity.
func (m *IncomingPaymentModel) FromDomain(p *billing.IncomingPayment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.ClientID = p.ClientID
	m.ClientName = p.ClientName
	m.TotalAmount = p.TotalAmount
	m.UnallocatedAmount = p.UnallocatedAmount
	m.PaymentMethod = p.PaymentMethod
	m.Reference = p.Reference
	m.Status = p.Status
	m.PaymentDate = p.PaymentDate
	m.CancelReason = p.CancelReason
	m.CancelledAt = p.CancelledAt
}

// IncomingPaymentModelFromDomain creates a new persistence model from a domain IncomingPayment.
func IncomingPaymentModelFromDomain(p *billing.IncomingPayment) *IncomingPaymentModel {
	m := &IncomingPaymentModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is the persistence model for Allocation entities.
// Allocations are immutable: rows are inserted and hard-deleted, never updated.
type AllocationModel struct {
	BaseModel
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	AmountAllocated decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AllocationDate  time.Time       `gorm:"not null"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation entity.
func (m *AllocationModel) ToDomain() *billing.Allocation {
	return &billing.Allocation{
		BaseEntity:      m.BaseModel.ToDomain(),
		PaymentID:       m.PaymentID,
		InvoiceID:       m.InvoiceID,
		AmountAllocated: m.AmountAllocated,
		AllocationDate:  m.AllocationDate,
		CreatedBy:       m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain Allocation entity.
func (m *AllocationModel) FromDomain(a *billing.Allocation) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.AmountAllocated = a.AmountAllocated
	m.AllocationDate = a.AllocationDate
	m.CreatedBy = a.CreatedBy
}

// AllocationModelFromDomain creates a new persistence model from a domain Allocation.
func AllocationModelFromDomain(a *billing.Allocation) *AllocationModel {
	m := &AllocationModel{}
	m.FromDomain(a)
	return m
}

// NumberSequenceModel backs the per-series document number sequences.
// CurrentValue is the last number issued. Numbers are claimed with an atomic
// upsert outside the business transaction, so gaps are possible and tolerated.
type NumberSequenceModel struct {
	Series       string    `gorm:"type:varchar(10);primary_key"`
	CurrentValue int       `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NumberSequenceModel) TableName() string {
	return "number_sequences"
}
