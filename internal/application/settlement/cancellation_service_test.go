package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
)

func TestCancelPayment_NeverAllocated(t *testing.T) {
	env := newTestEnv()
	pay := env.seedPayment(t, "300")

	require.NoError(t, env.cancellation.CancelPayment(context.Background(), pay.ID, "entered twice", env.actor))

	got := env.payment(t, pay.ID)
	assert.Equal(t, billing.PaymentStatusCancelled, got.Status)
	assert.Equal(t, "entered twice", got.CancelReason)
	assert.NotNil(t, got.CancelledAt)
	assert.True(t, got.UnallocatedAmount.Equal(dec("300")))
}

func TestCancelPayment_FullReversal(t *testing.T) {
	env := newTestEnv()
	inv1 := env.seedInvoice(t, "100", 0)
	inv2 := env.seedInvoice(t, "200", 1)
	pay := env.seedPayment(t, "250")

	ctx := context.Background()
	_, err := env.allocations.CreateAllocation(ctx, CreateAllocationRequest{
		PaymentID: pay.ID, InvoiceID: inv1.ID, Amount: dec("100"), ActorID: env.actor,
	})
	require.NoError(t, err)
	_, err = env.allocations.CreateAllocation(ctx, CreateAllocationRequest{
		PaymentID: pay.ID, InvoiceID: inv2.ID, Amount: dec("150"), ActorID: env.actor,
	})
	require.NoError(t, err)

	require.NoError(t, env.cancellation.CancelPayment(ctx, pay.ID, "bounced check", env.actor))

	got := env.payment(t, pay.ID)
	assert.Equal(t, billing.PaymentStatusCancelled, got.Status)
	assert.True(t, got.UnallocatedAmount.Equal(dec("250")))

	restored1 := env.invoice(t, inv1.ID)
	assert.Equal(t, billing.InvoiceStatusApproved, restored1.Status)
	assert.True(t, restored1.RemainingAmount.Equal(dec("100")))

	restored2 := env.invoice(t, inv2.ID)
	assert.Equal(t, billing.InvoiceStatusApproved, restored2.Status)
	assert.True(t, restored2.RemainingAmount.Equal(dec("200")))

	assert.Empty(t, env.store.allocations)
}

func TestCancelPayment_CompensationRefused(t *testing.T) {
	env := newTestEnv()
	inv50 := env.seedInvoice(t, "50", 0)
	credit := env.seedCreditInvoice(t, "-120")

	ctx := context.Background()
	result, err := env.compensation.Compensate(ctx, CompensateRequest{
		CreditInvoiceID: credit.ID, ActorID: env.actor,
	})
	require.NoError(t, err)
	allocationsBefore := len(env.store.allocations)

	// reversing the locked source entry would resurrect consumed credit
	err = env.cancellation.CancelPayment(ctx, result.PaymentID, "compensated in error", env.actor)
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrCodeInvalidState, domainErr.Code)

	// nothing moved: the payment stays live and the ledger is untouched
	got := env.payment(t, result.PaymentID)
	assert.NotEqual(t, billing.PaymentStatusCancelled, got.Status)
	assert.Len(t, env.store.allocations, allocationsBefore)

	gotCredit := env.invoice(t, credit.ID)
	assert.Equal(t, billing.InvoiceStatusPaid, gotCredit.Status)
	assert.True(t, gotCredit.RemainingAmount.IsZero())

	consumed := env.invoice(t, inv50.ID)
	assert.Equal(t, billing.InvoiceStatusPaid, consumed.Status)
	assert.True(t, consumed.RemainingAmount.IsZero())
}

func TestCancelPayment_Validation(t *testing.T) {
	env := newTestEnv()
	pay := env.seedPayment(t, "100")

	assert.Error(t, env.cancellation.CancelPayment(context.Background(), pay.ID, "", env.actor))

	require.NoError(t, env.cancellation.CancelPayment(context.Background(), pay.ID, "duplicate", env.actor))
	err := env.cancellation.CancelPayment(context.Background(), pay.ID, "again", env.actor)
	assert.Error(t, err)
}
