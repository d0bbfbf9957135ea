package balance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// InvoiceSums is the slice of the invoice repository the projection needs
type InvoiceSums interface {
	SumOutstandingByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
	SumOpenCreditByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
}

// PaymentSums is the slice of the payment repository the projection needs
type PaymentSums interface {
	SumUnallocatedByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error)
}

// ClientBalance is a read-only projection over the ledger for one client
type ClientBalance struct {
	ClientID    uuid.UUID       `json:"client_id"`
	Outstanding decimal.Decimal `json:"outstanding"`  // open invoice amounts owed by the client
	OpenCredit  decimal.Decimal `json:"open_credit"`  // uncompensated credit owed to the client (negative)
	Unallocated decimal.Decimal `json:"unallocated"`  // received but unallocated payment amounts
	NetBalance  decimal.Decimal `json:"net_balance"`  // outstanding + credit - unallocated
}

// BalanceService aggregates balances from the same entities the settlement
// core mutates. It never writes.
type BalanceService struct {
	invoices InvoiceSums
	payments PaymentSums
}

// NewBalanceService creates a new balance service
func NewBalanceService(invoices InvoiceSums, payments PaymentSums) *BalanceService {
	return &BalanceService{invoices: invoices, payments: payments}
}

// ClientBalance computes the balance projection for one client
func (s *BalanceService) ClientBalance(ctx context.Context, clientID uuid.UUID) (*ClientBalance, error) {
	outstanding, err := s.invoices.SumOutstandingByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	credit, err := s.invoices.SumOpenCreditByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	unallocated, err := s.payments.SumUnallocatedByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	return &ClientBalance{
		ClientID:    clientID,
		Outstanding: valueobject.Round2(outstanding),
		OpenCredit:  valueobject.Round2(credit),
		Unallocated: valueobject.Round2(unallocated),
		NetBalance:  valueobject.Round2(outstanding.Add(credit).Sub(unallocated)),
	}, nil
}
