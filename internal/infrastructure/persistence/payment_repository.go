package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/infrastructure/persistence/models"
)

// GormIncomingPaymentRepository implements billing.IncomingPaymentRepository using GORM
type GormIncomingPaymentRepository struct {
	db *gorm.DB
}

// NewGormIncomingPaymentRepository creates a new GormIncomingPaymentRepository
func NewGormIncomingPaymentRepository(db *gorm.DB) *GormIncomingPaymentRepository {
	return &GormIncomingPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormIncomingPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.IncomingPayment, error) {
	var model models.IncomingPaymentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds payments matching the filter with a total count
func (r *GormIncomingPaymentRepository) FindAll(ctx context.Context, filter billing.PaymentFilter) ([]billing.IncomingPayment, int64, error) {
	var count int64
	countQuery := r.applyPaymentFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&models.IncomingPaymentModel{}), filter)
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var paymentModels []models.IncomingPaymentModel
	query := r.applyPaymentFilter(
		r.db.WithContext(ctx).Model(&models.IncomingPaymentModel{}), filter)
	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]billing.IncomingPayment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, count, nil
}

// Save creates or updates a payment
func (r *GormIncomingPaymentRepository) Save(ctx context.Context, payment *billing.IncomingPayment) error {
	model := models.IncomingPaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking; see GormInvoiceRepository.SaveWithLock
func (r *GormIncomingPaymentRepository) SaveWithLock(ctx context.Context, payment *billing.IncomingPayment) error {
	model := models.IncomingPaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SumUnallocatedByClient sums unallocated amounts of non-cancelled payments
func (r *GormIncomingPaymentRepository) SumUnallocatedByClient(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.IncomingPaymentModel{}).
		Select("COALESCE(SUM(unallocated_amount), 0) as total").
		Where("client_id = ? AND status <> ?", clientID, billing.PaymentStatusCancelled).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyPaymentFilter applies filter options to the query
func (r *GormIncomingPaymentRepository) applyPaymentFilter(query *gorm.DB, filter billing.PaymentFilter) *gorm.DB {
	query = r.applyPaymentFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}

	orderBy := ValidateSortField(filter.OrderBy, PaymentSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyPaymentFilterWithoutPagination applies filter options without pagination
func (r *GormIncomingPaymentRepository) applyPaymentFilterWithoutPagination(query *gorm.DB, filter billing.PaymentFilter) *gorm.DB {
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Method != nil {
		query = query.Where("payment_method = ?", *filter.Method)
	}
	return query
}

// Ensure GormIncomingPaymentRepository implements billing.IncomingPaymentRepository
var _ billing.IncomingPaymentRepository = (*GormIncomingPaymentRepository)(nil)
