package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

type stubInvoiceRepo struct {
	invoices map[uuid.UUID]billing.Invoice
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.NewNotFoundError("Invoice not found")
	}
	return &inv, nil
}

func (r *stubInvoiceRepo) FindAll(context.Context, billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	var out []billing.Invoice
	for _, inv := range r.invoices {
		out = append(out, inv)
	}
	return out, int64(len(out)), nil
}

func (r *stubInvoiceRepo) FindOpenByClient(context.Context, uuid.UUID) ([]billing.Invoice, error) {
	return nil, nil
}

func (r *stubInvoiceRepo) FindByEFacturaStatus(context.Context, billing.EFacturaStatus) ([]billing.Invoice, error) {
	return nil, nil
}

func (r *stubInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.invoices[inv.ID] = *inv
	return nil
}

func (r *stubInvoiceRepo) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	return r.Save(ctx, inv)
}

func (r *stubInvoiceRepo) SumOutstandingByClient(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (r *stubInvoiceRepo) SumOpenCreditByClient(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type stubSequencer struct{ counters map[string]int }

func (s *stubSequencer) Next(_ context.Context, series string) (int, error) {
	if s.counters == nil {
		s.counters = map[string]int{}
	}
	s.counters[series]++
	return s.counters[series], nil
}

func newService() (*InvoiceService, *stubInvoiceRepo) {
	repo := &stubInvoiceRepo{invoices: map[uuid.UUID]billing.Invoice{}}
	return NewInvoiceService(repo, &stubSequencer{}, zap.NewNop()), repo
}

func draftRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		Series:     "FCT",
		ClientID:   uuid.New(),
		ClientName: "Client SRL",
		Type:       billing.InvoiceTypeStandard,
		Currency:   valueobject.RON,
		IssueDate:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		GrandTotal: decimal.RequireFromString("119"),
	}
}

func TestCreateInvoice(t *testing.T) {
	svc, repo := newService()

	inv, err := svc.CreateInvoice(context.Background(), draftRequest())
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusCreated, inv.Status)
	assert.Equal(t, billing.EFacturaStatusPending, inv.EFacturaStatus)
	assert.Zero(t, inv.Number)
	assert.Contains(t, repo.invoices, inv.ID)

	bad := draftRequest()
	bad.GrandTotal = decimal.RequireFromString("-10")
	_, err = svc.CreateInvoice(context.Background(), bad)
	assert.Error(t, err)
}

func TestApproveInvoice_AssignsSequentialNumbers(t *testing.T) {
	svc, _ := newService()
	actor := uuid.New()
	ctx := context.Background()

	first, err := svc.CreateInvoice(ctx, draftRequest())
	require.NoError(t, err)
	second, err := svc.CreateInvoice(ctx, draftRequest())
	require.NoError(t, err)

	approved, err := svc.ApproveInvoice(ctx, first.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 1, approved.Number)
	assert.Equal(t, billing.InvoiceStatusApproved, approved.Status)
	assert.Equal(t, "FCT-1", approved.DocumentID())

	approved, err = svc.ApproveInvoice(ctx, second.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, 2, approved.Number)

	// approving twice is illegal
	_, err = svc.ApproveInvoice(ctx, first.ID, actor)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrCodeInvalidState, domainErr.Code)
}

func TestRejectInvoice(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, draftRequest())
	require.NoError(t, err)

	require.NoError(t, svc.RejectInvoice(ctx, inv.ID, "wrong client", uuid.New()))
	got := repo.invoices[inv.ID]
	assert.Equal(t, billing.InvoiceStatusRejected, got.Status)
	assert.Equal(t, "wrong client", got.RejectReason)

	assert.Error(t, svc.RejectInvoice(ctx, inv.ID, "again", uuid.New()))
}

func TestCancelInvoice(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, draftRequest())
	require.NoError(t, err)
	_, err = svc.ApproveInvoice(ctx, inv.ID, uuid.New())
	require.NoError(t, err)

	require.NoError(t, svc.CancelInvoice(ctx, inv.ID, "client withdrew order"))
	got := repo.invoices[inv.ID]
	assert.Equal(t, billing.InvoiceStatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)

	// settled invoices cannot be cancelled
	other, err := svc.CreateInvoice(ctx, draftRequest())
	require.NoError(t, err)
	_, err = svc.ApproveInvoice(ctx, other.ID, uuid.New())
	require.NoError(t, err)
	settled := repo.invoices[other.ID]
	require.NoError(t, settled.ApplyAllocation(decimal.RequireFromString("50")))
	repo.invoices[other.ID] = settled

	assert.Error(t, svc.CancelInvoice(ctx, other.ID, "too late"))
}
