package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/application/settlement"
	"github.com/tradeco/backoffice/internal/interfaces/http/dto"
)

// CompensationHandler handles credit-invoice compensation API endpoints
type CompensationHandler struct {
	BaseHandler
	service *settlement.CompensationService
}

// NewCompensationHandler creates a new CompensationHandler
func NewCompensationHandler(service *settlement.CompensationService) *CompensationHandler {
	return &CompensationHandler{
		service: service,
	}
}

// CompensateRequest represents a request to compensate a credit invoice
//
//	@Description	Compensate request
type CompensateRequest struct {
	CreditInvoiceID string     `json:"credit_invoice_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Date            *time.Time `json:"date,omitempty"`
}

// ConsumedInvoiceResponse reports one invoice settled by a compensation
//
//	@Description	Consumed invoice response
type ConsumedInvoiceResponse struct {
	InvoiceID  string  `json:"invoice_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	DocumentID string  `json:"document_id" example:"TC-42"`
	Amount     float64 `json:"amount" example:"150.00"`
}

// CompensationResponse reports the outcome of a compensation run
//
//	@Description	Compensation result response
type CompensationResponse struct {
	PaymentID          string                    `json:"payment_id" example:"550e8400-e29b-41d4-a716-446655440002"`
	PaymentNumber      string                    `json:"payment_number" example:"PAY-2026-00007"`
	SourceAllocationID string                    `json:"source_allocation_id" example:"550e8400-e29b-41d4-a716-446655440003"`
	Consumed           []ConsumedInvoiceResponse `json:"consumed"`
	LeftoverAmount     float64                   `json:"leftover_amount" example:"0.00"`
}

// Compensate godoc
// @ID           compensateCreditInvoice
//
//	@Summary		Compensate credit invoice
//	@Description	Settle a credit invoice against the client's open invoices, oldest first
//	@Tags			compensations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CompensateRequest	true	"Compensation request"
//	@Success		201		{object}	APIResponse[CompensationResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/compensations [post]
func (h *CompensationHandler) Compensate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil || userID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user")
		return
	}

	var req CompensateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	creditInvoiceID, err := uuid.Parse(req.CreditInvoiceID)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid credit invoice ID")
		return
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	result, err := h.service.Compensate(c.Request.Context(), settlement.CompensateRequest{
		CreditInvoiceID: creditInvoiceID,
		Date:            date,
		ActorID:         userID,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	consumed := make([]ConsumedInvoiceResponse, len(result.Consumed))
	for i, inv := range result.Consumed {
		consumed[i] = ConsumedInvoiceResponse{
			InvoiceID:  inv.InvoiceID.String(),
			DocumentID: inv.DocumentID,
			Amount:     inv.Amount.InexactFloat64(),
		}
	}

	c.JSON(http.StatusCreated, dto.Response{
		Success: true,
		Data: CompensationResponse{
			PaymentID:          result.PaymentID.String(),
			PaymentNumber:      result.PaymentNumber,
			SourceAllocationID: result.SourceAllocationID.String(),
			Consumed:           consumed,
			LeftoverAmount:     result.LeftoverAmount.InexactFloat64(),
		},
	})
}
