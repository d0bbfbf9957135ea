package einvoice

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/efactura"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// stubInvoiceRepo is locked because bulk polling saves invoices from
// multiple goroutines.
type stubInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]billing.Invoice
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.NewNotFoundError("Invoice not found")
	}
	return &inv, nil
}

func (r *stubInvoiceRepo) FindAll(context.Context, billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	return nil, 0, nil
}

func (r *stubInvoiceRepo) FindOpenByClient(context.Context, uuid.UUID) ([]billing.Invoice, error) {
	return nil, nil
}

func (r *stubInvoiceRepo) FindByEFacturaStatus(_ context.Context, status billing.EFacturaStatus) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []billing.Invoice
	for _, inv := range r.invoices {
		if inv.EFacturaStatus == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *stubInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

type stubPaymentRepo struct {
	payments map[uuid.UUID]billing.IncomingPayment
}

func (r *stubPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.IncomingPayment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.NewNotFoundError("Payment not found")
	}
	return &p, nil
}

func (r *stubPaymentRepo) FindAll(context.Context, billing.PaymentFilter) ([]billing.IncomingPayment, int64, error) {
	return nil, 0, nil
}

func (r *stubPaymentRepo) Save(_ context.Context, p *billing.IncomingPayment) error {
	r.payments[p.ID] = *p
	return nil
}

func (r *stubPaymentRepo) SaveWithLock(ctx context.Context, p *billing.IncomingPayment) error {
	return r.Save(ctx, p)
}

func (r *stubPaymentRepo) SumUnallocatedByClient(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type stubAllocationRepo struct {
	allocations []billing.Allocation
}

func (r *stubAllocationRepo) FindByID(context.Context, uuid.UUID) (*billing.Allocation, error) {
	return nil, shared.NewNotFoundError("Allocation not found")
}

func (r *stubAllocationRepo) FindByPayment(context.Context, uuid.UUID) ([]billing.Allocation, error) {
	return nil, nil
}

func (r *stubAllocationRepo) FindByInvoice(context.Context, uuid.UUID) ([]billing.Allocation, error) {
	return nil, nil
}

func (r *stubAllocationRepo) FindLatestByInvoice(_ context.Context, invoiceID uuid.UUID) (*billing.Allocation, error) {
	for i := len(r.allocations) - 1; i >= 0; i-- {
		if r.allocations[i].InvoiceID == invoiceID {
			return &r.allocations[i], nil
		}
	}
	return nil, nil
}

func (r *stubAllocationRepo) Create(_ context.Context, a *billing.Allocation) error {
	r.allocations = append(r.allocations, *a)
	return nil
}

func (r *stubAllocationRepo) Delete(context.Context, uuid.UUID) error {
	return nil
}

type stubSubmissionRepo struct {
	mu        sync.Mutex
	byInvoice map[uuid.UUID]efactura.Submission
}

func (r *stubSubmissionRepo) FindByID(_ context.Context, id uuid.UUID) (*efactura.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byInvoice {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, shared.NewNotFoundError("Submission not found")
}

func (r *stubSubmissionRepo) FindByInvoiceID(_ context.Context, invoiceID uuid.UUID) (*efactura.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byInvoice[invoiceID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *stubSubmissionRepo) Save(_ context.Context, s *efactura.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byInvoice[s.InvoiceID] = *s
	return nil
}

// fakeClient is a deterministic stand-in for the authority API
type fakeClient struct {
	uploadFn   func(ctx context.Context, document []byte) (*efactura.UploadResult, error)
	statusFn   func(ctx context.Context, uploadID string) (*efactura.StatusResult, error)
	downloadFn func(ctx context.Context, downloadID string) ([]byte, error)
	uploads    int
	downloads  int
}

func (c *fakeClient) Upload(ctx context.Context, document []byte) (*efactura.UploadResult, error) {
	c.uploads++
	return c.uploadFn(ctx, document)
}

func (c *fakeClient) Status(ctx context.Context, uploadID string) (*efactura.StatusResult, error) {
	return c.statusFn(ctx, uploadID)
}

func (c *fakeClient) Download(ctx context.Context, downloadID string) ([]byte, error) {
	c.downloads++
	return c.downloadFn(ctx, downloadID)
}

type fixedIssuer struct{}

func (fixedIssuer) Issuer(context.Context) (efactura.Issuer, error) {
	return efactura.Issuer{
		Name:    "TradeCo SRL",
		TaxID:   "RO12345678",
		RegCode: "J40/1234/2020",
		IBAN:    "RO49AAAA1B31007593840000",
	}, nil
}

type testEnv struct {
	invoices    *stubInvoiceRepo
	payments    *stubPaymentRepo
	allocations *stubAllocationRepo
	submissions *stubSubmissionRepo
	client      *fakeClient
	service     *SubmissionService
	actor       uuid.UUID
	numbers     int
}

func newTestEnv() *testEnv {
	env := &testEnv{
		invoices:    &stubInvoiceRepo{invoices: map[uuid.UUID]billing.Invoice{}},
		payments:    &stubPaymentRepo{payments: map[uuid.UUID]billing.IncomingPayment{}},
		allocations: &stubAllocationRepo{},
		submissions: &stubSubmissionRepo{byInvoice: map[uuid.UUID]efactura.Submission{}},
		client:      &fakeClient{},
		actor:       uuid.New(),
	}
	env.service = NewSubmissionService(
		env.invoices, env.payments, env.allocations, env.submissions,
		env.client, fixedIssuer{}, zap.NewNop())
	return env
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) seedApprovedInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	lines := billing.InvoiceLines{
		{Description: "Widget", Quantity: dec("10"), Unit: "buc", UnitPrice: dec("10"), VatRate: dec("19"), TaxCategory: "S"},
	}
	inv, err := billing.NewInvoice("FCT", uuid.New(), "Client SRL", billing.InvoiceTypeStandard,
		valueobject.RON, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), lines, dec("119"))
	require.NoError(t, err)
	e.numbers++
	require.NoError(t, inv.Approve(e.numbers, e.actor))
	e.invoices.invoices[inv.ID] = *inv
	return inv
}

func (e *testEnv) seedSentInvoice(t *testing.T, uploadID string) *billing.Invoice {
	t.Helper()
	inv := e.seedApprovedInvoice(t)
	got := e.invoices.invoices[inv.ID]
	got.MarkEFacturaSent(uploadID)
	e.invoices.invoices[inv.ID] = got

	sub, err := efactura.NewSubmission(inv.ID)
	require.NoError(t, err)
	require.NoError(t, sub.RecordSent(uploadID, "<Invoice/>"))
	e.submissions.byInvoice[inv.ID] = *sub
	return inv
}

func (e *testEnv) invoice(t *testing.T, id uuid.UUID) billing.Invoice {
	t.Helper()
	inv, ok := e.invoices.invoices[id]
	require.True(t, ok)
	return inv
}

func (e *testEnv) submission(t *testing.T, invoiceID uuid.UUID) efactura.Submission {
	t.Helper()
	s, ok := e.submissions.byInvoice[invoiceID]
	require.True(t, ok)
	return s
}

func zipArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}
