package einvoice

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/efactura"
	"github.com/tradeco/backoffice/internal/domain/shared"
)

// defaultPollWorkers bounds the parallelism of a bulk poll run
const defaultPollWorkers = 4

// IssuerProvider supplies the company-profile snapshot stamped on every
// wire document.
type IssuerProvider interface {
	Issuer(ctx context.Context) (efactura.Issuer, error)
}

// SubmissionService drives the e-invoice submission state machine: it builds
// wire documents, submits them, polls for verdicts and archives signed
// results. It reads the ledger but never mutates amounts; the only invoice
// fields it touches are the denormalized e-factura ones.
//
// Submit and poll for the same invoice are serialized in-process; bulk
// polling parallelizes only across invoices.
type SubmissionService struct {
	invoices    billing.InvoiceRepository
	payments    billing.IncomingPaymentRepository
	allocations billing.AllocationRepository
	submissions efactura.SubmissionRepository
	client      efactura.Client
	issuer      IssuerProvider
	logger      *zap.Logger
	pollWorkers int
	inflight    sync.Map
}

// SubmissionServiceOption configures a SubmissionService
type SubmissionServiceOption func(*SubmissionService)

// WithPollWorkers overrides the bulk poll parallelism bound
func WithPollWorkers(n int) SubmissionServiceOption {
	return func(s *SubmissionService) {
		if n > 0 {
			s.pollWorkers = n
		}
	}
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	invoices billing.InvoiceRepository,
	payments billing.IncomingPaymentRepository,
	allocations billing.AllocationRepository,
	submissions efactura.SubmissionRepository,
	client efactura.Client,
	issuer IssuerProvider,
	logger *zap.Logger,
	opts ...SubmissionServiceOption,
) *SubmissionService {
	s := &SubmissionService{
		invoices:    invoices,
		payments:    payments,
		allocations: allocations,
		submissions: submissions,
		client:      client,
		issuer:      issuer,
		logger:      logger,
		pollWorkers: defaultPollWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitResult reports the outcome of a submission attempt. A rejected
// submission is a result, not an error: the invoice lands in the stable,
// retryable REJECTED_ANAF state.
type SubmitResult struct {
	Status       billing.EFacturaStatus
	UploadID     string
	ErrorMessage string
}

// PollResult reports the outcome of one poll
type PollResult struct {
	Verdict        efactura.Verdict
	Status         billing.EFacturaStatus
	DownloadID     string
	ErrorMessage   string
	SignedArchived bool
}

// BulkPollResult aggregates a bulk poll run
type BulkPollResult struct {
	Total           int
	Completed       int
	StillProcessing int
	Errored         int
}

// lock serializes submit/poll per invoice. Returns false when another call
// for the same invoice is in flight.
func (s *SubmissionService) lock(invoiceID uuid.UUID) bool {
	_, loaded := s.inflight.LoadOrStore(invoiceID, struct{}{})
	return !loaded
}

func (s *SubmissionService) unlock(invoiceID uuid.UUID) {
	s.inflight.Delete(invoiceID)
}

// Submit builds the wire document for an invoice and uploads it.
// Transport and HTTP failures are recorded in history and returned as a
// non-fatal rejected result.
func (s *SubmissionService) Submit(ctx context.Context, invoiceID uuid.UUID) (*SubmitResult, error) {
	if !s.lock(invoiceID) {
		return nil, shared.NewInvalidStateError("A submission call for this invoice is already in flight")
	}
	defer s.unlock(invoiceID)

	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceType == billing.InvoiceTypeProforma {
		return nil, shared.NewInvalidStateError("Proforma invoices are not fiscal documents and cannot be submitted")
	}
	switch inv.Status {
	case billing.InvoiceStatusCreated, billing.InvoiceStatusRejected, billing.InvoiceStatusCancelled:
		return nil, shared.NewInvalidStateError(fmt.Sprintf(
			"Cannot submit invoice in %s status", inv.Status))
	}
	switch inv.EFacturaStatus {
	case billing.EFacturaStatusSent:
		return nil, shared.NewInvalidStateError("Invoice is already submitted and awaiting a verdict")
	case billing.EFacturaStatusAccepted:
		return nil, shared.NewInvalidStateError("Invoice is already accepted by the authority")
	}

	issuer, err := s.issuer.Issuer(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := efactura.BuildDocument(inv, issuer, s.settlementMethod(ctx, inv.ID))
	if err != nil {
		return nil, err
	}
	payload, err := doc.ToXML()
	if err != nil {
		return nil, err
	}

	submission, err := s.submissions.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		submission, err = efactura.NewSubmission(invoiceID)
		if err != nil {
			return nil, err
		}
	}

	upload, err := s.client.Upload(ctx, payload)
	if err != nil || upload == nil || upload.UploadID == "" {
		message := "Upload response carried no upload identifier"
		if err != nil {
			message = err.Error()
		}
		message = billing.TruncateError(message)

		submission.RecordSubmitFailure(string(payload), message)
		inv.MarkEFacturaRejected(message)
		if err := s.saveOutcome(ctx, submission, inv); err != nil {
			return nil, err
		}

		s.logger.Warn("e-invoice submission failed",
			zap.String("invoice", inv.DocumentID()),
			zap.String("error", message))
		return &SubmitResult{Status: billing.EFacturaStatusRejectedAnaf, ErrorMessage: message}, nil
	}

	if err := submission.RecordSent(upload.UploadID, string(payload)); err != nil {
		return nil, err
	}
	inv.MarkEFacturaSent(upload.UploadID)
	if err := s.saveOutcome(ctx, submission, inv); err != nil {
		return nil, err
	}

	s.logger.Info("e-invoice submitted",
		zap.String("invoice", inv.DocumentID()),
		zap.String("upload_id", upload.UploadID))
	return &SubmitResult{Status: billing.EFacturaStatusSent, UploadID: upload.UploadID}, nil
}

// Poll queries the verdict for a submitted invoice. "in progress" leaves
// everything unchanged; "ok" accepts and opportunistically archives the
// signed document; "nok" rejects with the best error text available.
func (s *SubmissionService) Poll(ctx context.Context, invoiceID uuid.UUID) (*PollResult, error) {
	if !s.lock(invoiceID) {
		return nil, shared.NewInvalidStateError("A submission call for this invoice is already in flight")
	}
	defer s.unlock(invoiceID)

	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.EFacturaStatus != billing.EFacturaStatusSent || inv.EFacturaUploadID == "" {
		return nil, shared.NewInvalidStateError(fmt.Sprintf(
			"Invoice %s is not awaiting a verdict", inv.DocumentID()))
	}
	submission, err := s.submissions.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, shared.NewInvalidStateError(fmt.Sprintf(
			"Invoice %s has no submission record", inv.DocumentID()))
	}

	status, err := s.client.Status(ctx, inv.EFacturaUploadID)
	if err != nil {
		// transport failure: the invoice stays SENT; polling is retryable
		message := billing.TruncateError(err.Error())
		s.logger.Warn("e-invoice status poll failed",
			zap.String("invoice", inv.DocumentID()),
			zap.String("error", message))
		return &PollResult{Status: billing.EFacturaStatusSent, ErrorMessage: message}, nil
	}

	switch status.Verdict {
	case efactura.VerdictInProgress:
		return &PollResult{Verdict: status.Verdict, Status: billing.EFacturaStatusSent}, nil

	case efactura.VerdictOK:
		if err := submission.RecordAccepted(inv.EFacturaUploadID, status.DownloadID); err != nil {
			return nil, err
		}
		inv.MarkEFacturaAccepted()

		archived := s.tryArchiveSigned(ctx, submission, status.DownloadID, inv.DocumentID())
		if err := s.saveOutcome(ctx, submission, inv); err != nil {
			return nil, err
		}
		return &PollResult{
			Verdict:        status.Verdict,
			Status:         billing.EFacturaStatusAccepted,
			DownloadID:     status.DownloadID,
			SignedArchived: archived,
		}, nil

	case efactura.VerdictNok:
		message := s.rejectionText(ctx, status)
		if err := submission.RecordRejectedVerdict(inv.EFacturaUploadID, status.DownloadID, message); err != nil {
			return nil, err
		}
		inv.MarkEFacturaRejected(message)
		if err := s.saveOutcome(ctx, submission, inv); err != nil {
			return nil, err
		}

		s.logger.Warn("e-invoice rejected by authority",
			zap.String("invoice", inv.DocumentID()),
			zap.String("error", message))
		return &PollResult{
			Verdict:      status.Verdict,
			Status:       billing.EFacturaStatusRejectedAnaf,
			DownloadID:   status.DownloadID,
			ErrorMessage: message,
		}, nil
	}

	return nil, shared.NewExternalServiceError(fmt.Sprintf("Unknown verdict %q", status.Verdict))
}

// DownloadSigned returns the signed result document for an accepted invoice,
// fetching and storing it first if it has not been archived yet.
func (s *SubmissionService) DownloadSigned(ctx context.Context, invoiceID uuid.UUID) ([]byte, error) {
	submission, err := s.submissions.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, shared.NewNotFoundError("Invoice has never been submitted")
	}
	downloadID := submission.LatestDownloadID()
	if downloadID == "" {
		return nil, shared.NewInvalidStateError("No result is available for download yet")
	}

	for i := range submission.Attempts {
		attempt := &submission.Attempts[i]
		if attempt.DownloadID == downloadID && attempt.HasSignedDocument() {
			return base64.StdEncoding.DecodeString(attempt.SignedDocument)
		}
	}

	archive, err := s.client.Download(ctx, downloadID)
	if err != nil {
		return nil, err
	}
	content, err := efactura.ExtractFromArchive(archive)
	if err != nil {
		return nil, err
	}
	if _, err := submission.AttachSignedDocument(downloadID, content); err != nil {
		return nil, err
	}
	if err := s.submissions.Save(ctx, submission); err != nil {
		return nil, err
	}
	return content, nil
}

// PollAll polls every SENT invoice with bounded parallelism, tolerating
// individual failures. Each invoice's own call sequence stays sequential.
func (s *SubmissionService) PollAll(ctx context.Context) (*BulkPollResult, error) {
	pending, err := s.invoices.FindByEFacturaStatus(ctx, billing.EFacturaStatusSent)
	if err != nil {
		return nil, err
	}

	result := &BulkPollResult{Total: len(pending)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.pollWorkers)

	for i := range pending {
		invoiceID := pending[i].ID
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			poll, err := s.Poll(ctx, invoiceID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil || poll.ErrorMessage != "" && poll.Status == billing.EFacturaStatusSent:
				result.Errored++
			case poll.Verdict == efactura.VerdictInProgress:
				result.StillProcessing++
			default:
				result.Completed++
			}
		}()
	}
	wg.Wait()

	s.logger.Info("bulk poll finished",
		zap.Int("total", result.Total),
		zap.Int("completed", result.Completed),
		zap.Int("still_processing", result.StillProcessing),
		zap.Int("errored", result.Errored))
	return result, nil
}

// rejectionText resolves the best error text available for a nok verdict:
// the structured messages inside the published rejection document when the
// verdict carries a download id, otherwise the truncated raw status response.
func (s *SubmissionService) rejectionText(ctx context.Context, status *efactura.StatusResult) string {
	if status.DownloadID != "" {
		archive, err := s.client.Download(ctx, status.DownloadID)
		if err == nil {
			if content, err := efactura.ExtractFromArchive(archive); err == nil {
				if message := efactura.ParseErrorMessages(content); message != "" {
					return billing.TruncateError(message)
				}
			}
		}
	}
	return billing.TruncateError(status.Raw)
}

// settlementMethod resolves the payment-means source for the wire document:
// the payment behind the invoice's most recent allocation, or the default
// bank-transfer code when the invoice is unsettled.
func (s *SubmissionService) settlementMethod(ctx context.Context, invoiceID uuid.UUID) billing.PaymentMethod {
	allocation, err := s.allocations.FindLatestByInvoice(ctx, invoiceID)
	if err != nil || allocation == nil {
		return billing.PaymentMethodBankTransfer
	}
	payment, err := s.payments.FindByID(ctx, allocation.PaymentID)
	if err != nil {
		return billing.PaymentMethodBankTransfer
	}
	return payment.PaymentMethod
}

// tryArchiveSigned downloads and stores the signed document after an
// accepted verdict. Best effort: failures are logged and never block the
// acceptance itself.
func (s *SubmissionService) tryArchiveSigned(ctx context.Context, submission *efactura.Submission, downloadID, documentID string) bool {
	if downloadID == "" {
		return false
	}
	archive, err := s.client.Download(ctx, downloadID)
	if err != nil {
		s.logger.Warn("signed document download failed",
			zap.String("invoice", documentID), zap.Error(err))
		return false
	}
	content, err := efactura.ExtractFromArchive(archive)
	if err != nil {
		s.logger.Warn("signed document extraction failed",
			zap.String("invoice", documentID), zap.Error(err))
		return false
	}
	attached, err := submission.AttachSignedDocument(downloadID, content)
	if err != nil {
		s.logger.Warn("signed document attach failed",
			zap.String("invoice", documentID), zap.Error(err))
		return false
	}
	return attached
}

// saveOutcome persists the submission record and the invoice's denormalized
// e-factura fields together.
func (s *SubmissionService) saveOutcome(ctx context.Context, submission *efactura.Submission, inv *billing.Invoice) error {
	if err := s.submissions.Save(ctx, submission); err != nil {
		return err
	}
	return s.invoices.Save(ctx, inv)
}
