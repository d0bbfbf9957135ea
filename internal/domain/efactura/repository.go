package efactura

import (
	"context"

	"github.com/google/uuid"
)

// SubmissionRepository defines the interface for submission persistence.
// Submissions are created lazily on first submit and never deleted.
type SubmissionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	// FindByInvoiceID returns the submission for an invoice, or nil when the
	// invoice has never been submitted.
	FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*Submission, error)
	Save(ctx context.Context, submission *Submission) error
}
