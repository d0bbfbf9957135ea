package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/infrastructure/persistence/models"
)

// GormAllocationRepository implements billing.AllocationRepository using GORM.
// Allocation rows are only ever inserted and hard-deleted.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByID finds an allocation by its ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPayment finds all allocations of a payment, oldest first
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindByInvoice finds all allocations against an invoice, oldest first
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.Allocation, error) {
	var allocationModels []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(allocationModels), nil
}

// FindLatestByInvoice finds the most recent allocation for an invoice, or nil
// when the invoice is unsettled
func (r *GormAllocationRepository) FindLatestByInvoice(ctx context.Context, invoiceID uuid.UUID) (*billing.Allocation, error) {
	var model models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new allocation
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *billing.Allocation) error {
	model := models.AllocationModelFromDomain(allocation)
	return r.db.WithContext(ctx).Create(model).Error
}

// Delete hard-deletes an allocation
func (r *GormAllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AllocationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDomainAllocations(allocationModels []models.AllocationModel) []billing.Allocation {
	allocations := make([]billing.Allocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations
}

// Ensure GormAllocationRepository implements billing.AllocationRepository
var _ billing.AllocationRepository = (*GormAllocationRepository)(nil)
