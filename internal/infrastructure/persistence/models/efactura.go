package models

import (
	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/domain/efactura"
)

// SubmissionModel is the persistence model for the e-invoice Submission
// aggregate root. The full attempt history is stored as JSONB; submissions
// are created lazily on first submit and never deleted.
type SubmissionModel struct {
	AggregateModel
	InvoiceID     uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex"`
	CurrentStatus efactura.SubmissionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Attempts      efactura.Attempts         `gorm:"type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (SubmissionModel) TableName() string {
	return "efactura_submissions"
}

// ToDomain converts the persistence model to a domain Submission entity.
func (m *SubmissionModel) ToDomain() *efactura.Submission {
	return &efactura.Submission{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceID:         m.InvoiceID,
		CurrentStatus:     m.CurrentStatus,
		Attempts:          m.Attempts,
	}
}

// FromDomain populates the persistence model from a domain Submission entity.
func (m *SubmissionModel) FromDomain(s *efactura.Submission) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.InvoiceID = s.InvoiceID
	m.CurrentStatus = s.CurrentStatus
	m.Attempts = s.Attempts
}

// SubmissionModelFromDomain creates a new persistence model from a domain Submission.
func SubmissionModelFromDomain(s *efactura.Submission) *SubmissionModel {
	m := &SubmissionModel{}
	m.FromDomain(s)
	return m
}
