package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/application/invoicing"
	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
	"github.com/tradeco/backoffice/internal/interfaces/http/dto"
)

// InvoiceHandler handles customer invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	service *invoicing.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service *invoicing.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
	}
}

// ===================== Request/Response DTOs =====================

// InvoiceLineRequest represents one billed line in a create request
//
//	@Description	Invoice line request
type InvoiceLineRequest struct {
	Description     string  `json:"description" binding:"required" example:"Transport services"`
	Quantity        float64 `json:"quantity" binding:"required,gt=0" example:"2"`
	Unit            string  `json:"unit" example:"buc"`
	UnitPrice       float64 `json:"unit_price" binding:"required" example:"150.00"`
	VatRate         float64 `json:"vat_rate" example:"19"`
	TaxCategory     string  `json:"tax_category" example:"S"`
	ExemptionReason string  `json:"exemption_reason,omitempty"`
}

// InvoiceLineResponse represents one billed line in API responses
//
//	@Description	Invoice line response
type InvoiceLineResponse struct {
	Description     string  `json:"description" example:"Transport services"`
	Quantity        float64 `json:"quantity" example:"2"`
	Unit            string  `json:"unit" example:"buc"`
	UnitPrice       float64 `json:"unit_price" example:"150.00"`
	VatRate         float64 `json:"vat_rate" example:"19"`
	TaxCategory     string  `json:"tax_category" example:"S"`
	ExemptionReason string  `json:"exemption_reason,omitempty"`
	NetAmount       float64 `json:"net_amount" example:"300.00"`
}

// CreateInvoiceRequest represents a request to draft a new invoice
//
//	@Description	Create invoice request
type CreateInvoiceRequest struct {
	Series     string               `json:"series" binding:"required" example:"TC"`
	ClientID   string               `json:"client_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	ClientName string               `json:"client_name" binding:"required" example:"SC Client SRL"`
	Type       string               `json:"type" binding:"required" example:"STANDARD"`
	Currency   string               `json:"currency" example:"RON"`
	IssueDate  time.Time            `json:"issue_date" binding:"required"`
	DueDate    *time.Time           `json:"due_date,omitempty"`
	Lines      []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
	GrandTotal float64              `json:"grand_total" binding:"required" example:"357.00"`
}

// RejectInvoiceRequest represents a request to reject a draft invoice
//
//	@Description	Reject invoice request
type RejectInvoiceRequest struct {
	Reason string `json:"reason" binding:"required" example:"Wrong client"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
//
//	@Description	Cancel invoice request
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required" example:"Issued by mistake"`
}

// InvoiceResponse represents an invoice in API responses
//
//	@Description	Invoice response
type InvoiceResponse struct {
	ID               string                `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Series           string                `json:"series" example:"TC"`
	Number           int                   `json:"number" example:"42"`
	DocumentID       string                `json:"document_id" example:"TC-42"`
	ClientID         string                `json:"client_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	ClientName       string                `json:"client_name" example:"SC Client SRL"`
	Type             string                `json:"type" example:"STANDARD"`
	Currency         string                `json:"currency" example:"RON"`
	IssueDate        time.Time             `json:"issue_date"`
	DueDate          *time.Time            `json:"due_date,omitempty"`
	Lines            []InvoiceLineResponse `json:"lines"`
	GrandTotal       float64               `json:"grand_total" example:"357.00"`
	PaidAmount       float64               `json:"paid_amount" example:"0.00"`
	RemainingAmount  float64               `json:"remaining_amount" example:"357.00"`
	Status           string                `json:"status" example:"CREATED"`
	EFacturaStatus   string                `json:"efactura_status" example:"PENDING"`
	EFacturaUploadID string                `json:"efactura_upload_id,omitempty"`
	EFacturaError    string                `json:"efactura_error,omitempty"`
	RejectReason     string                `json:"reject_reason,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Version          int                   `json:"version" example:"1"`
}

// InvoiceListFilter represents filter parameters for the invoice list
//
//	@Description	Invoice list filter
type InvoiceListFilter struct {
	ClientID       string `form:"client_id" binding:"omitempty,uuid"`
	Status         string `form:"status"`
	Type           string `form:"type"`
	EFacturaStatus string `form:"efactura_status" json:"efactura_status"`
	FromDate       string `form:"from_date" json:"from_date"`
	ToDate         string `form:"to_date" json:"to_date"`
	Page           int    `form:"page,omitempty" binding:"omitempty,min=1" example:"1"`
	PageSize       int    `form:"page_size,omitempty" binding:"omitempty,min=1,max=100" json:"page_size" example:"20"`
}

// ===================== Handlers =====================

// ListInvoices godoc
// @ID           listInvoices
//
//	@Summary		List invoices
//	@Description	Get a paginated list of invoices
//	@Tags			invoices
//	@Produce		json
//	@Param			client_id		query		string	false	"Filter by client ID"
//	@Param			status			query		string	false	"Filter by status"	Enums(CREATED, APPROVED, REJECTED, PARTIAL_PAID, PAID, CANCELLED)
//	@Param			type			query		string	false	"Filter by type"	Enums(STANDARD, AVANS, STORNO, PROFORMA)
//	@Param			efactura_status	query		string	false	"Filter by e-Factura status"	Enums(PENDING, SENT, ACCEPTED, REJECTED_ANAF)
//	@Param			from_date		query		string	false	"Filter from issue date (YYYY-MM-DD)"
//	@Param			to_date			query		string	false	"Filter to issue date (YYYY-MM-DD)"
//	@Param			page			query		int		false	"Page number"	default(1)
//	@Param			page_size		query		int		false	"Page size"		default(20)
//	@Success		200				{object}	APIResponse[[]InvoiceResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		401				{object}	ErrorResponse
//	@Failure		500				{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var filter InvoiceListFilter
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

	serviceFilter := billing.InvoiceFilter{
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
		status := billing.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid invoice status")
			return
		}
		serviceFilter.Status = &status
	}
	if filter.Type != "" {
		invType := billing.InvoiceType(filter.Type)
		if !invType.IsValid() {
			h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid invoice type")
			return
		}
		serviceFilter.InvoiceType = &invType
	}
	if filter.EFacturaStatus != "" {
		efStatus := billing.EFacturaStatus(filter.EFacturaStatus)
		if !efStatus.IsValid() {
			h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid e-Factura status")
			return
		}
		serviceFilter.EFacturaStatus = &efStatus
	}

	// Parse dates
	if filter.FromDate != "" {
		t, err := time.Parse("2006-01-02", filter.FromDate)
		if err == nil {
			serviceFilter.FromDate = &t
		}
	}
	if filter.ToDate != "" {
		t, err := time.Parse("2006-01-02", filter.ToDate)
		if err == nil {
			// Set to end of day
			t = t.Add(24*time.Hour - time.Second)
			serviceFilter.ToDate = &t
		}
	}

	invoices, total, err := h.service.ListInvoices(c.Request.Context(), serviceFilter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	response := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		response[i] = h.toInvoiceResponse(&invoices[i])
	}

	h.SuccessWithMeta(c, response, total, filter.Page, filter.PageSize)
}

// GetInvoice godoc
// @ID           getInvoice
//
//	@Summary		Get invoice by ID
//	@Description	Get a single invoice by its ID
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	APIResponse[InvoiceResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	invoice, err := h.service.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, h.toInvoiceResponse(invoice))
}

// CreateInvoice godoc
// @ID           createInvoice
//
//	@Summary		Create invoice
//	@Description	Draft a new invoice in CREATED status without a fiscal number
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateInvoiceRequest	true	"Invoice creation request"
//	@Success		201		{object}	APIResponse[InvoiceResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	invType := billing.InvoiceType(req.Type)
	if !invType.IsValid() {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid invoice type")
		return
	}

	currency := valueobject.Currency(req.Currency)
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	lines := make(billing.InvoiceLines, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = billing.InvoiceLine{
			Description:     line.Description,
			Quantity:        decimal.NewFromFloat(line.Quantity),
			Unit:            line.Unit,
			UnitPrice:       decimal.NewFromFloat(line.UnitPrice),
			VatRate:         decimal.NewFromFloat(line.VatRate),
			TaxCategory:     line.TaxCategory,
			ExemptionReason: line.ExemptionReason,
		}
	}

	serviceReq := invoicing.CreateInvoiceRequest{
		Series:     req.Series,
		ClientID:   clientID,
		ClientName: req.ClientName,
		Type:       invType,
		Currency:   currency,
		IssueDate:  req.IssueDate,
		DueDate:    req.DueDate,
		Lines:      lines,
		GrandTotal: toDecimal(req.GrandTotal),
	}

	invoice, err := h.service.CreateInvoice(c.Request.Context(), serviceReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.Response{
		Success: true,
		Data:    h.toInvoiceResponse(invoice),
	})
}

// ApproveInvoice godoc
// @ID           approveInvoice
//
//	@Summary		Approve invoice
//	@Description	Approve a draft invoice, assigning its fiscal number
//	@Tags			invoices
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	APIResponse[InvoiceResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/approve [post]
func (h *InvoiceHandler) ApproveInvoice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil || userID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	invoice, err := h.service.ApproveInvoice(c.Request.Context(), invoiceID, userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, h.toInvoiceResponse(invoice))
}

// RejectInvoice godoc
// @ID           rejectInvoice
//
//	@Summary		Reject invoice
//	@Description	Reject a draft invoice with a reason
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"
//	@Param			request	body		RejectInvoiceRequest	true	"Rejection reason"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/reject [post]
func (h *InvoiceHandler) RejectInvoice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil || userID == uuid.Nil {
		h.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	var req RejectInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.service.RejectInvoice(c.Request.Context(), invoiceID, req.Reason, userID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, nil)
}

// CancelInvoice godoc
// @ID           cancelInvoice
//
//	@Summary		Cancel invoice
//	@Description	Cancel an invoice that has no active settlements
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Invoice ID"
//	@Param			request	body		CancelInvoiceRequest	true	"Cancel reason"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.service.CancelInvoice(c.Request.Context(), invoiceID, req.Reason); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, nil)
}

// ===================== Helper Functions =====================

func (h *InvoiceHandler) toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	lines := make([]InvoiceLineResponse, len(inv.Lines))
	for i, line := range inv.Lines {
		lines[i] = InvoiceLineResponse{
			Description:     line.Description,
			Quantity:        line.Quantity.InexactFloat64(),
			Unit:            line.Unit,
			UnitPrice:       line.UnitPrice.InexactFloat64(),
			VatRate:         line.VatRate.InexactFloat64(),
			TaxCategory:     line.TaxCategory,
			ExemptionReason: line.ExemptionReason,
			NetAmount:       line.NetAmount().InexactFloat64(),
		}
	}

	return InvoiceResponse{
		ID:               inv.ID.String(),
		Series:           inv.Series,
		Number:           inv.Number,
		DocumentID:       inv.DocumentID(),
		ClientID:         inv.ClientID.String(),
		ClientName:       inv.ClientName,
		Type:             string(inv.InvoiceType),
		Currency:         string(inv.Currency),
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		Lines:            lines,
		GrandTotal:       inv.GrandTotal.InexactFloat64(),
		PaidAmount:       inv.PaidAmount.InexactFloat64(),
		RemainingAmount:  inv.RemainingAmount.InexactFloat64(),
		Status:           string(inv.Status),
		EFacturaStatus:   string(inv.EFacturaStatus),
		EFacturaUploadID: inv.EFacturaUploadID,
		EFacturaError:    inv.EFacturaError,
		RejectReason:     inv.RejectReason,
		CancelReason:     inv.CancelReason,
		CancelledAt:      inv.CancelledAt,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
		Version:          inv.Version,
	}
}
