package efactura

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/domain/shared"
)

// SubmissionStatus represents the state of the e-invoice submission machine.
// Transitions: PENDING -> SENT -> {ACCEPTED, REJECTED}. REJECTED is reachable
// both from a failed submission and from a rejected verdict after polling,
// and is retryable by the operator.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusSent     SubmissionStatus = "SENT"
	SubmissionStatusAccepted SubmissionStatus = "ACCEPTED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// IsValid checks if the status is a valid SubmissionStatus
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusSent, SubmissionStatusAccepted, SubmissionStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of SubmissionStatus
func (s SubmissionStatus) String() string {
	return string(s)
}

// Attempt is one submission attempt and its eventual outcome, stored as JSONB
// within the Submission aggregate.
type Attempt struct {
	ID             uuid.UUID        `json:"id"`
	Status         SubmissionStatus `json:"status"`
	UploadID       string           `json:"upload_id,omitempty"`
	DownloadID     string           `json:"download_id,omitempty"`
	Payload        string           `json:"payload,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	SignedDocument string           `json:"signed_document,omitempty"` // base64 signed archive content
	SubmittedAt    time.Time        `json:"submitted_at"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
}

// HasSignedDocument returns true once the signed document has been stored
func (a *Attempt) HasSignedDocument() bool {
	return a.SignedDocument != ""
}

// Attempts implements GORM Scanner/Valuer for JSONB storage
type Attempts []Attempt

// Value implements driver.Valuer for GORM to store as JSONB
func (a Attempts) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (a *Attempts) Scan(value interface{}) error {
	if value == nil {
		*a = Attempts{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Attempts: unsupported type")
	}
	if len(bytes) == 0 {
		*a = Attempts{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Submission tracks the e-invoice lifecycle for one invoice. Created lazily
// on first submission, updated on every submit/poll, never deleted. It reads
// invoice data but never mutates ledger amounts.
type Submission struct {
	shared.BaseAggregateRoot
	InvoiceID     uuid.UUID
	CurrentStatus SubmissionStatus
	Attempts      Attempts
}

// NewSubmission creates a submission record for an invoice
func NewSubmission(invoiceID uuid.UUID) (*Submission, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("Invoice ID cannot be empty")
	}
	return &Submission{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceID:         invoiceID,
		CurrentStatus:     SubmissionStatusPending,
		Attempts:          Attempts{},
	}, nil
}

// RecordSent appends a SENT attempt after a successful upload
func (s *Submission) RecordSent(uploadID, payload string) error {
	if uploadID == "" {
		return shared.NewValidationError("Upload ID cannot be empty")
	}
	s.Attempts = append(s.Attempts, Attempt{
		ID:          uuid.New(),
		Status:      SubmissionStatusSent,
		UploadID:    uploadID,
		Payload:     payload,
		SubmittedAt: time.Now(),
	})
	s.CurrentStatus = SubmissionStatusSent
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// RecordSubmitFailure appends a REJECTED attempt for a failed upload
// (transport error or response without an upload identifier).
func (s *Submission) RecordSubmitFailure(payload, message string) {
	now := time.Now()
	s.Attempts = append(s.Attempts, Attempt{
		ID:           uuid.New(),
		Status:       SubmissionStatusRejected,
		Payload:      payload,
		ErrorMessage: message,
		SubmittedAt:  now,
		ResolvedAt:   &now,
	})
	s.CurrentStatus = SubmissionStatusRejected
	s.UpdatedAt = now
	s.IncrementVersion()
}

// RecordAccepted resolves the attempt matching the upload id with an accepted
// verdict and stores the download identifier.
func (s *Submission) RecordAccepted(uploadID, downloadID string) error {
	attempt := s.findByUploadID(uploadID)
	if attempt == nil {
		return shared.NewInvalidStateError(fmt.Sprintf("No attempt found for upload id %s", uploadID))
	}
	now := time.Now()
	attempt.Status = SubmissionStatusAccepted
	attempt.DownloadID = downloadID
	attempt.ResolvedAt = &now
	s.CurrentStatus = SubmissionStatusAccepted
	s.UpdatedAt = now
	s.IncrementVersion()
	return nil
}

// RecordRejectedVerdict resolves the attempt matching the upload id with a
// rejected verdict and the extracted error text.
func (s *Submission) RecordRejectedVerdict(uploadID, downloadID, message string) error {
	attempt := s.findByUploadID(uploadID)
	if attempt == nil {
		return shared.NewInvalidStateError(fmt.Sprintf("No attempt found for upload id %s", uploadID))
	}
	now := time.Now()
	attempt.Status = SubmissionStatusRejected
	attempt.DownloadID = downloadID
	attempt.ErrorMessage = message
	attempt.ResolvedAt = &now
	s.CurrentStatus = SubmissionStatusRejected
	s.UpdatedAt = now
	s.IncrementVersion()
	return nil
}

// AttachSignedDocument stores the signed archive content against the attempt
// holding the download id. Idempotent: returns false without modification
// when the document is already stored.
func (s *Submission) AttachSignedDocument(downloadID string, content []byte) (bool, error) {
	if downloadID == "" {
		return false, shared.NewValidationError("Download ID cannot be empty")
	}
	for i := range s.Attempts {
		if s.Attempts[i].DownloadID == downloadID {
			if s.Attempts[i].HasSignedDocument() {
				return false, nil
			}
			s.Attempts[i].SignedDocument = base64.StdEncoding.EncodeToString(content)
			s.UpdatedAt = time.Now()
			s.IncrementVersion()
			return true, nil
		}
	}
	return false, shared.NewNotFoundError(fmt.Sprintf("No attempt found for download id %s", downloadID))
}

// LatestAttempt returns the most recent attempt, or nil when none exist
func (s *Submission) LatestAttempt() *Attempt {
	if len(s.Attempts) == 0 {
		return nil
	}
	return &s.Attempts[len(s.Attempts)-1]
}

// LatestDownloadID returns the most recently stored download id, if any
func (s *Submission) LatestDownloadID() string {
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].DownloadID != "" {
			return s.Attempts[i].DownloadID
		}
	}
	return ""
}

func (s *Submission) findByUploadID(uploadID string) *Attempt {
	if uploadID == "" {
		return nil
	}
	for i := len(s.Attempts) - 1; i >= 0; i-- {
		if s.Attempts[i].UploadID == uploadID {
			return &s.Attempts[i]
		}
	}
	return nil
}
