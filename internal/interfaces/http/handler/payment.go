package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/application/settlement"
	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/interfaces/http/dto"
)

// PaymentHandler handles incoming payment API endpoints
type PaymentHandler struct {
	BaseHandler
	payments      *settlement.PaymentService
	cancellations *settlement.CancellationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *settlement.PaymentService, cancellations *settlement.CancellationService) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		cancellations: cancellations,
	}
}

// ===================== Request/Response DTOs =====================

// RecordPaymentRequest represents a request to register an incoming payment
//
//	@Description	Record payment request
type RecordPaymentRequest struct {
	ClientID   string    `json:"client_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	ClientName string    `json:"client_name" binding:"required" example:"SC Client SRL"`
	Amount     float64   `json:"amount" binding:"required,gt=0" example:"500.00"`
	Method     string    `json:"method" binding:"required" example:"BANK_TRANSFER"`
	Reference  string    `json:"reference" example:"OP 1234"`
	Date       time.Time `json:"date" binding:"required"`
}

// CancelPaymentRequest represents a request to cancel a payment
//
//	@Description	Cancel payment request
type CancelPaymentRequest struct {
	Reason string `json:"reason" binding:"required" example:"Bank reversal"`
}

// PaymentResponse represents an incoming payment in API responses
//
//	@Description	Incoming payment response
type PaymentResponse struct {
	ID                string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	PaymentNumber     string     `json:"payment_number" example:"PAY-2026-00001"`
	ClientID          string     `json:"client_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	ClientName        string     `json:"client_name" example:"SC Client SRL"`
	TotalAmount       float64    `json:"total_amount" example:"500.00"`
	UnallocatedAmount float64    `json:"unallocated_amount" example:"150.00"`
	Method            string     `json:"method" example:"BANK_TRANSFER"`
	Reference         string     `json:"reference,omitempty" example:"OP 1234"`
	Status            string     `json:"status" example:"PARTIALLY_ALLOCATED"`
	PaymentDate       time.Time  `json:"payment_date"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Version           int        `json:"version" example:"1"`
}

// AllocationResponse represents a settlement ledger entry in API responses
//
//	@Description	Allocation response
type AllocationResponse struct {
	ID              string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	PaymentID       string    `json:"payment_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	InvoiceID       string    `json:"invoice_id" example:"550e8400-e29b-41d4-a716-446655440002"`
	AmountAllocated float64   `json:"amount_allocated" example:"150.00"`
	AllocationDate  time.Time `json:"allocation_date"`
	CreatedBy       *string   `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentListFilter represents filter parameters for the payment list
//
//	@Description	Payment list filter
type PaymentListFilter struct {
	ClientID string `form:"client_id" binding:"omitempty,uuid"`
	Status   string `form:"status"`
	Method   string `form:"method"`
	Page     int    `form:"page,omitempty" binding:"omitempty,min=1" example:"1"`
	PageSize int    `form:"page_size,omitempty" binding:"omitempty,min=1,max=100" json:"page_size" example:"20"`
}

// ===================== Handlers =====================

// ListPayments godoc
// @ID           listPayments
//
//	@Summary		List payments
//	@Description	Get a paginated list of incoming payments
//	@Tags			payments
//	@Produce		json
//	@Param			client_id	query		string	false	"Filter by client ID"
//	@Param			status		query		string	false	"Filter by status"	Enums(UNALLOCATED, PARTIALLY_ALLOCATED, FULLY_ALLOCATED, CANCELLED)
//	@Param			method		query		string	false	"Filter by method"	Enums(CASH, BANK_TRANSFER, CARD, CHECK, COMPENSATION)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	APIResponse[[]PaymentResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	var filter PaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	// Set defaults
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	serviceFilter := billing.PaymentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
		},
	}

	if filter.ClientID != "" {
		id, err := uuid.Parse(filter.ClientID)
		if err != nil {
			h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
			return
		}
		serviceFilter.ClientID = &id
	}
	if filter.Status != "" {
		status := billing.PaymentStatus(filter.Status)
		if !status.IsValid() {
			h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payment status")
			return
		}
		serviceFilter.Status = &status
	}
	if filter.Method != "" {
		method := billing.PaymentMethod(filter.Method)
		if !method.IsValid() {
			h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payment method")
			return
		}
		serviceFilter.Method = &method
	}

	payments, total, err := h.payments.ListPayments(c.Request.Context(), serviceFilter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	response := make([]PaymentResponse, len(payments))
	for i := range payments {
		response[i] = h.toPaymentResponse(&payments[i])
	}

	h.SuccessWithMeta(c, response, total, filter.Page, filter.PageSize)
}

// GetPayment godoc
// @ID           getPayment
//
//	@Summary		Get payment by ID
//	@Description	Get a single incoming payment by its ID
//	@Tags			payments
//	@Produce		json
//	@Param			id	path		string	true	"Payment ID"
//	@Success		200	{object}	APIResponse[PaymentResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, h.toPaymentResponse(payment))
}

// RecordPayment godoc
// @ID           recordPayment
//
//	@Summary		Record payment
//	@Description	Register a new incoming payment, fully unallocated
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecordPaymentRequest	true	"Payment registration request"
//	@Success		201		{object}	APIResponse[PaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	method := billing.PaymentMethod(req.Method)
	if !method.IsValid() {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payment method")
		return
	}

	serviceReq := settlement.RecordPaymentRequest{
		ClientID:   clientID,
		ClientName: req.ClientName,
		Amount:     toDecimal(req.Amount),
		Method:     method,
		Reference:  req.Reference,
		Date:       req.Date,
	}

	payment, err := h.payments.RecordPayment(c.Request.Context(), serviceReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.Response{
		Success: true,
		Data:    h.toPaymentResponse(payment),
	})
}

// ListPaymentAllocations godoc
// @ID           listPaymentAllocations
//
//	@Summary		List payment allocations
//	@Description	Get the settlement ledger entries of a payment
//	@Tags			payments
//	@Produce		json
//	@Param			id	path		string	true	"Payment ID"
//	@Success		200	{object}	APIResponse[[]AllocationResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id}/allocations [get]
func (h *PaymentHandler) ListPaymentAllocations(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	allocations, err := h.payments.ListAllocations(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	response := make([]AllocationResponse, len(allocations))
	for i := range allocations {
		response[i] = toAllocationResponse(&allocations[i])
	}

	h.Success(c, response)
}

// CancelPayment godoc
// @ID           cancelPayment
//
//	@Summary		Cancel payment
//	@Description	Cancel a payment, reversing all of its allocations
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Payment ID"
//	@Param			request	body		CancelPaymentRequest	true	"Cancel reason"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id}/cancel [post]
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil || userID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}

	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.cancellations.CancelPayment(c.Request.Context(), paymentID, req.Reason, userID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, nil)
}

// ===================== Helper Functions =====================

func (h *PaymentHandler) toPaymentResponse(p *billing.IncomingPayment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID.String(),
		PaymentNumber:     p.PaymentNumber,
		ClientID:          p.ClientID.String(),
		ClientName:        p.ClientName,
		TotalAmount:       p.TotalAmount.InexactFloat64(),
		UnallocatedAmount: p.UnallocatedAmount.InexactFloat64(),
		Method:            string(p.PaymentMethod),
		Reference:         p.Reference,
		Status:            string(p.Status),
		PaymentDate:       p.PaymentDate,
		CancelReason:      p.CancelReason,
		CancelledAt:       p.CancelledAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
}

func toAllocationResponse(a *billing.Allocation) AllocationResponse {
	var createdBy *string
	if a.CreatedBy != nil {
		s := a.CreatedBy.String()
		createdBy = &s
	}

	return AllocationResponse{
		ID:              a.ID.String(),
		PaymentID:       a.PaymentID.String(),
		InvoiceID:       a.InvoiceID.String(),
		AmountAllocated: a.AmountAllocated.InexactFloat64(),
		AllocationDate:  a.AllocationDate,
		CreatedBy:       createdBy,
		CreatedAt:       a.CreatedAt,
	}
}
