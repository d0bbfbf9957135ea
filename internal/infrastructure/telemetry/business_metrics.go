// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the settlement ledger.
// It tracks invoice issuance, payment registration, allocation activity and
// e-invoice submission outcomes.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceIssuedTotal   *Counter
	invoiceAmountTotal   *Counter
	paymentTotal         *Counter
	allocationTotal      *Counter
	submissionTotal      *Counter

	// Gauge metrics (point-in-time values)
	outstandingBalance *FloatGauge
	unallocatedCredit  *FloatGauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	balanceProvider BalanceMetricsProvider
}

// BalanceMetricsProvider provides ledger balance data for periodic metrics
// collection. The interface keeps the telemetry layer off the billing domain.
type BalanceMetricsProvider interface {
	// GetOutstandingTotal returns the sum of open invoice remainders
	GetOutstandingTotal(ctx context.Context) (decimal.Decimal, error)

	// GetUnallocatedTotal returns the sum of unallocated payment amounts
	GetUnallocatedTotal(ctx context.Context) (decimal.Decimal, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	BalanceProvider BalanceMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		balanceProvider: cfg.BalanceProvider,
	}

	var err error

	lm.invoiceIssuedTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_invoice_issued_total",
		"Total number of invoices issued",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	lm.invoiceAmountTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_invoice_amount_total",
		"Total issued invoice amount in subunits (bani)",
		"{bani}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_payment_registered_total",
		"Total number of incoming payments registered",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	lm.allocationTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_allocation_total",
		"Total number of allocation ledger entries written",
		"{allocations}",
	)
	if err != nil {
		return nil, err
	}

	lm.submissionTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_efactura_submission_total",
		"Total number of e-invoice submission outcomes",
		"{submissions}",
	)
	if err != nil {
		return nil, err
	}

	lm.outstandingBalance, err = NewFloatGauge(
		cfg.Meter,
		"backoffice_outstanding_balance",
		"Sum of open invoice remainders",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}

	lm.unallocatedCredit, err = NewFloatGauge(
		cfg.Meter,
		"backoffice_unallocated_credit",
		"Sum of unallocated payment amounts",
		"{currency}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Invoice Metrics
// =============================================================================

// RecordInvoiceIssued records an invoice issuance with its grand total.
func (lm *LedgerMetrics) RecordInvoiceIssued(ctx context.Context, invoiceType string, amount decimal.Decimal) {
	lm.invoiceIssuedTotal.Inc(ctx, AttrInvoiceType.String(invoiceType))

	amountBani := amount.Mul(decimal.NewFromInt(100)).IntPart()
	lm.invoiceAmountTotal.Add(ctx, amountBani, AttrInvoiceType.String(invoiceType))
}

// =============================================================================
// Payment and Allocation Metrics
// =============================================================================

// AllocationKind labels the flavor of a ledger entry for metrics.
type AllocationKind string

const (
	AllocationKindPayment      AllocationKind = "payment"
	AllocationKindCompensation AllocationKind = "compensation"
	AllocationKindReversal     AllocationKind = "reversal"
)

// RecordPaymentRegistered records an incoming payment registration.
func (lm *LedgerMetrics) RecordPaymentRegistered(ctx context.Context, paymentMethod string) {
	lm.paymentTotal.Inc(ctx, AttrPaymentMethod.String(paymentMethod))
}

// RecordAllocation records one written allocation ledger entry.
func (lm *LedgerMetrics) RecordAllocation(ctx context.Context, kind AllocationKind) {
	lm.allocationTotal.Inc(ctx, AttrAllocationKind.String(string(kind)))
}

// =============================================================================
// Submission Metrics
// =============================================================================

// SubmissionOutcome labels an e-invoice submission event.
type SubmissionOutcome string

const (
	SubmissionOutcomeSent     SubmissionOutcome = "sent"
	SubmissionOutcomeAccepted SubmissionOutcome = "accepted"
	SubmissionOutcomeRejected SubmissionOutcome = "rejected"
)

// RecordSubmission records an e-invoice submission outcome.
func (lm *LedgerMetrics) RecordSubmission(ctx context.Context, outcome SubmissionOutcome) {
	lm.submissionTotal.Inc(ctx, AttrSubmissionOutcome.String(string(outcome)))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of balance gauges.
// Non-blocking; use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collectBalanceMetrics(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectBalanceMetrics(ctx)
		}
	}
}

func (lm *LedgerMetrics) collectBalanceMetrics(ctx context.Context) {
	if lm.balanceProvider == nil {
		lm.logger.Debug("No balance provider configured, skipping balance metrics collection")
		return
	}

	outstanding, err := lm.balanceProvider.GetOutstandingTotal(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get outstanding total for metrics", zap.Error(err))
	} else {
		lm.outstandingBalance.Record(ctx, outstanding.InexactFloat64())
	}

	unallocated, err := lm.balanceProvider.GetUnallocatedTotal(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get unallocated total for metrics", zap.Error(err))
	} else {
		lm.unallocatedCredit.Record(ctx, unallocated.InexactFloat64())
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
