package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/application/settlement"
	"github.com/tradeco/backoffice/internal/interfaces/http/dto"
)

// AllocationHandler handles payment allocation API endpoints
type AllocationHandler struct {
	BaseHandler
	service *settlement.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(service *settlement.AllocationService) *AllocationHandler {
	return &AllocationHandler{
		service: service,
	}
}

// CreateAllocationRequest represents a request to apply a payment to an invoice
//
//	@Description	Create allocation request
type CreateAllocationRequest struct {
	PaymentID string     `json:"payment_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	InvoiceID string     `json:"invoice_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	Amount    float64    `json:"amount" binding:"required,gt=0" example:"150.00"`
	Date      *time.Time `json:"date,omitempty"`
}

// CreateAllocation godoc
// @ID           createAllocation
//
//	@Summary		Create allocation
//	@Description	Apply part of a payment to an open invoice
//	@Tags			allocations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateAllocationRequest	true	"Allocation request"
//	@Success		201		{object}	APIResponse[AllocationResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/allocations [post]
func (h *AllocationHandler) CreateAllocation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil || userID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user")
		return
	}

	var req CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID")
		return
	}
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	serviceReq := settlement.CreateAllocationRequest{
		PaymentID: paymentID,
		InvoiceID: invoiceID,
		Amount:    toDecimal(req.Amount),
		Date:      date,
		ActorID:   userID,
	}

	allocation, err := h.service.CreateAllocation(c.Request.Context(), serviceReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.Response{
		Success: true,
		Data:    toAllocationResponse(allocation),
	})
}

// DeleteAllocation godoc
// @ID           deleteAllocation
//
//	@Summary		Delete allocation
//	@Description	Reverse an allocation, restoring capacity on both sides
//	@Tags			allocations
//	@Produce		json
//	@Param			id	path		string	true	"Allocation ID"
//	@Success		204	"No Content"
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/allocations/{id} [delete]
func (h *AllocationHandler) DeleteAllocation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil || userID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user")
		return
	}

	allocationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid allocation ID")
		return
	}

	if err := h.service.DeleteAllocation(c.Request.Context(), allocationID, userID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
