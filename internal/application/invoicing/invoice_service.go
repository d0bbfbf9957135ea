package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// InvoiceService manages the invoice lifecycle outside the settlement core:
// drafting, approval with number assignment, rejection and cancellation.
type InvoiceService struct {
	invoices  billing.InvoiceRepository
	sequences shared.Sequencer
	logger    *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(invoices billing.InvoiceRepository, sequences shared.Sequencer, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{invoices: invoices, sequences: sequences, logger: logger}
}

// CreateInvoiceRequest carries the input for CreateInvoice. Line-level tax
// and cost calculation happens upstream; only the resulting totals arrive
// here.
type CreateInvoiceRequest struct {
	Series     string
	ClientID   uuid.UUID
	ClientName string
	Type       billing.InvoiceType
	Currency   valueobject.Currency
	IssueDate  time.Time
	DueDate    *time.Time
	Lines      billing.InvoiceLines
	GrandTotal decimal.Decimal
}

// CreateInvoice drafts a new invoice in CREATED status, without a number
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*billing.Invoice, error) {
	inv, err := billing.NewInvoice(req.Series, req.ClientID, req.ClientName, req.Type,
		req.Currency, req.IssueDate, req.Lines, req.GrandTotal)
	if err != nil {
		return nil, err
	}
	inv.DueDate = req.DueDate

	if err := s.invoices.Save(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice drafted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("series", inv.Series),
		zap.String("type", string(inv.InvoiceType)),
		zap.String("grand_total", inv.GrandTotal.StringFixed(2)))

	return inv, nil
}

// ApproveInvoice assigns the next number in the invoice's series and moves
// it to APPROVED, opening it for settlement and submission.
func (s *InvoiceService) ApproveInvoice(ctx context.Context, invoiceID, actorID uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	number, err := s.sequences.Next(ctx, inv.Series)
	if err != nil {
		return nil, err
	}
	if err := inv.Approve(number, actorID); err != nil {
		return nil, err
	}
	if err := s.invoices.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice approved",
		zap.String("invoice", inv.DocumentID()),
		zap.String("actor_id", actorID.String()))

	return inv, nil
}

// RejectInvoice rejects a draft invoice with a reason
func (s *InvoiceService) RejectInvoice(ctx context.Context, invoiceID uuid.UUID, reason string, actorID uuid.UUID) error {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if err := inv.Reject(reason, actorID); err != nil {
		return err
	}
	return s.invoices.SaveWithLock(ctx, inv)
}

// CancelInvoice cancels an invoice that carries no settlements
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) error {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if err := inv.Cancel(reason); err != nil {
		return err
	}
	if err := s.invoices.SaveWithLock(ctx, inv); err != nil {
		return err
	}

	s.logger.Info("invoice cancelled",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("reason", reason))
	return nil
}

// GetInvoice returns one invoice by id
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	return s.invoices.FindByID(ctx, invoiceID)
}

// ListInvoices returns invoices matching the filter with a total count
func (s *InvoiceService) ListInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	return s.invoices.FindAll(ctx, filter)
}
