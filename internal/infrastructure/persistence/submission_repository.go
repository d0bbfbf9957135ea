package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/efactura"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/infrastructure/persistence/models"
)

// GormSubmissionRepository implements efactura.SubmissionRepository using GORM
type GormSubmissionRepository struct {
	db *gorm.DB
}

// NewGormSubmissionRepository creates a new GormSubmissionRepository
func NewGormSubmissionRepository(db *gorm.DB) *GormSubmissionRepository {
	return &GormSubmissionRepository{db: db}
}

// FindByID finds a submission by its ID
func (r *GormSubmissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*efactura.Submission, error) {
	var model models.SubmissionModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoiceID finds the submission for an invoice, or nil when the
// invoice has never been submitted
func (r *GormSubmissionRepository) FindByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*efactura.Submission, error) {
	var model models.SubmissionModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a submission
func (r *GormSubmissionRepository) Save(ctx context.Context, submission *efactura.Submission) error {
	model := models.SubmissionModelFromDomain(submission)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormSubmissionRepository implements efactura.SubmissionRepository
var _ efactura.SubmissionRepository = (*GormSubmissionRepository)(nil)
