package settlement

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// memStore backs the in-memory fakes. Values are stored by copy so a
// rolled-back transaction cannot leak mutations through shared pointers.
type memStore struct {
	invoices    map[uuid.UUID]billing.Invoice
	payments    map[uuid.UUID]billing.IncomingPayment
	allocations map[uuid.UUID]billing.Allocation
	allocOrder  []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		invoices:    make(map[uuid.UUID]billing.Invoice),
		payments:    make(map[uuid.UUID]billing.IncomingPayment),
		allocations: make(map[uuid.UUID]billing.Allocation),
	}
}

func (s *memStore) snapshot() memStore {
	out := memStore{
		invoices:    make(map[uuid.UUID]billing.Invoice, len(s.invoices)),
		payments:    make(map[uuid.UUID]billing.IncomingPayment, len(s.payments)),
		allocations: make(map[uuid.UUID]billing.Allocation, len(s.allocations)),
		allocOrder:  append([]uuid.UUID(nil), s.allocOrder...),
	}
	for k, v := range s.invoices {
		out.invoices[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	for k, v := range s.allocations {
		out.allocations[k] = v
	}
	return out
}

type memInvoiceRepo struct{ store *memStore }

func (r *memInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, ok := r.store.invoices[id]
	if !ok {
		return nil, shared.NewNotFoundError("Invoice not found")
	}
	return &inv, nil
}

func (r *memInvoiceRepo) FindAll(_ context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, int64, error) {
	var out []billing.Invoice
	for _, inv := range r.store.invoices {
		if filter.ClientID != nil && inv.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, inv)
	}
	return out, int64(len(out)), nil
}

func (r *memInvoiceRepo) FindOpenByClient(_ context.Context, clientID uuid.UUID) ([]billing.Invoice, error) {
	var out []billing.Invoice
	for _, inv := range r.store.invoices {
		if inv.ClientID != clientID {
			continue
		}
		if inv.Status != billing.InvoiceStatusApproved && inv.Status != billing.InvoiceStatusPartialPaid {
			continue
		}
		if !inv.RemainingAmount.IsPositive() {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueDate.Before(out[j].IssueDate) })
	return out, nil
}

func (r *memInvoiceRepo) FindByEFacturaStatus(_ context.Context, status billing.EFacturaStatus) ([]billing.Invoice, error) {
	var out []billing.Invoice
	for _, inv := range r.store.invoices {
		if inv.EFacturaStatus == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.store.invoices[inv.ID] = *inv
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	return r.Save(ctx, inv)
}

func (r *memInvoiceRepo) SumOutstandingByClient(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.store.invoices {
		if inv.ClientID == clientID && inv.RemainingAmount.IsPositive() && inv.Status.CanAllocate() {
			sum = sum.Add(inv.RemainingAmount)
		}
	}
	return sum, nil
}

func (r *memInvoiceRepo) SumOpenCreditByClient(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.store.invoices {
		if inv.ClientID == clientID && inv.RemainingAmount.IsNegative() && inv.Status.CanAllocate() {
			sum = sum.Add(inv.RemainingAmount)
		}
	}
	return sum, nil
}

type memPaymentRepo struct{ store *memStore }

func (r *memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.IncomingPayment, error) {
	p, ok := r.store.payments[id]
	if !ok {
		return nil, shared.NewNotFoundError("Payment not found")
	}
	return &p, nil
}

func (r *memPaymentRepo) FindAll(_ context.Context, filter billing.PaymentFilter) ([]billing.IncomingPayment, int64, error) {
	var out []billing.IncomingPayment
	for _, p := range r.store.payments {
		if filter.ClientID != nil && p.ClientID != *filter.ClientID {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *memPaymentRepo) Save(_ context.Context, p *billing.IncomingPayment) error {
	r.store.payments[p.ID] = *p
	return nil
}

func (r *memPaymentRepo) SaveWithLock(ctx context.Context, p *billing.IncomingPayment) error {
	return r.Save(ctx, p)
}

func (r *memPaymentRepo) SumUnallocatedByClient(_ context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.store.payments {
		if p.ClientID == clientID && !p.IsCancelled() {
			sum = sum.Add(p.UnallocatedAmount)
		}
	}
	return sum, nil
}

type memAllocationRepo struct{ store *memStore }

func (r *memAllocationRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Allocation, error) {
	a, ok := r.store.allocations[id]
	if !ok {
		return nil, shared.NewNotFoundError("Allocation not found")
	}
	return &a, nil
}

func (r *memAllocationRepo) FindByPayment(_ context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	var out []billing.Allocation
	for _, id := range r.store.allocOrder {
		if a, ok := r.store.allocations[id]; ok && a.PaymentID == paymentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocationRepo) FindByInvoice(_ context.Context, invoiceID uuid.UUID) ([]billing.Allocation, error) {
	var out []billing.Allocation
	for _, id := range r.store.allocOrder {
		if a, ok := r.store.allocations[id]; ok && a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocationRepo) FindLatestByInvoice(ctx context.Context, invoiceID uuid.UUID) (*billing.Allocation, error) {
	all, err := r.FindByInvoice(ctx, invoiceID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[len(all)-1], nil
}

func (r *memAllocationRepo) Create(_ context.Context, a *billing.Allocation) error {
	r.store.allocations[a.ID] = *a
	r.store.allocOrder = append(r.store.allocOrder, a.ID)
	return nil
}

func (r *memAllocationRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store.allocations[id]; !ok {
		return shared.NewNotFoundError("Allocation not found")
	}
	delete(r.store.allocations, id)
	for i, oid := range r.store.allocOrder {
		if oid == id {
			r.store.allocOrder = append(r.store.allocOrder[:i], r.store.allocOrder[i+1:]...)
			break
		}
	}
	return nil
}

// fakeUnitOfWork snapshots the store before the function runs and restores
// it on error, mimicking transactional rollback.
type fakeUnitOfWork struct{ store *memStore }

func (u *fakeUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos billing.RepositorySet) error) error {
	saved := u.store.snapshot()
	repos := billing.RepositorySet{
		Invoices:    &memInvoiceRepo{store: u.store},
		Payments:    &memPaymentRepo{store: u.store},
		Allocations: &memAllocationRepo{store: u.store},
	}
	if err := fn(ctx, repos); err != nil {
		*u.store = saved
		return err
	}
	return nil
}

type fakeSequencer struct{ n int }

func (s *fakeSequencer) Next(context.Context, string) (int, error) {
	s.n++
	return s.n, nil
}

type testEnv struct {
	store        *memStore
	uow          *fakeUnitOfWork
	allocations  *AllocationService
	compensation *CompensationService
	cancellation *CancellationService
	actor        uuid.UUID
	client       uuid.UUID
	numbers      int
}

func newTestEnv() *testEnv {
	store := newMemStore()
	uow := &fakeUnitOfWork{store: store}
	logger := zap.NewNop()
	return &testEnv{
		store:        store,
		uow:          uow,
		allocations:  NewAllocationService(uow, logger),
		compensation: NewCompensationService(uow, &fakeSequencer{}, logger),
		cancellation: NewCancellationService(uow, logger),
		actor:        uuid.New(),
		client:       uuid.New(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedInvoice creates an approved invoice for the env's client.
// issueOffset staggers issue dates so oldest-first ordering is deterministic.
func (e *testEnv) seedInvoice(t *testing.T, total string, issueOffset int) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice("FCT", e.client, "Client SRL", billing.InvoiceTypeStandard,
		valueobject.RON, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, issueOffset),
		nil, dec(total))
	require.NoError(t, err)
	e.numbers++
	require.NoError(t, inv.Approve(e.numbers, e.actor))
	e.store.invoices[inv.ID] = *inv
	return inv
}

func (e *testEnv) seedCreditInvoice(t *testing.T, total string) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice("STR", e.client, "Client SRL", billing.InvoiceTypeStorno,
		valueobject.RON, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), nil, dec(total))
	require.NoError(t, err)
	e.numbers++
	require.NoError(t, inv.Approve(e.numbers, e.actor))
	e.store.invoices[inv.ID] = *inv
	return inv
}

func (e *testEnv) seedPayment(t *testing.T, amount string) *billing.IncomingPayment {
	t.Helper()
	p, err := billing.NewIncomingPayment("OP-1001", e.client, "Client SRL", dec(amount),
		billing.PaymentMethodBankTransfer, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	e.store.payments[p.ID] = *p
	return p
}

func (e *testEnv) invoice(t *testing.T, id uuid.UUID) billing.Invoice {
	t.Helper()
	inv, ok := e.store.invoices[id]
	require.True(t, ok)
	return inv
}

func (e *testEnv) payment(t *testing.T, id uuid.UUID) billing.IncomingPayment {
	t.Helper()
	p, ok := e.store.payments[id]
	require.True(t, ok)
	return p
}
