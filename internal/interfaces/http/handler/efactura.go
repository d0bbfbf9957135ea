package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/application/einvoice"
)

// EFacturaHandler handles e-Factura submission API endpoints
type EFacturaHandler struct {
	BaseHandler
	service *einvoice.SubmissionService
}

// NewEFacturaHandler creates a new EFacturaHandler
func NewEFacturaHandler(service *einvoice.SubmissionService) *EFacturaHandler {
	return &EFacturaHandler{
		service: service,
	}
}

// SubmitResultResponse reports the outcome of a submission
//
//	@Description	e-Factura submit result
type SubmitResultResponse struct {
	Status       string `json:"status" example:"SENT"`
	UploadID     string `json:"upload_id,omitempty" example:"5018346445"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// PollResultResponse reports the outcome of one verdict poll
//
//	@Description	e-Factura poll result
type PollResultResponse struct {
	Verdict        string `json:"verdict" example:"ok"`
	Status         string `json:"status" example:"ACCEPTED"`
	DownloadID     string `json:"download_id,omitempty" example:"3018346789"`
	ErrorMessage   string `json:"error_message,omitempty"`
	SignedArchived bool   `json:"signed_archived" example:"true"`
}

// BulkPollResultResponse aggregates a bulk poll run
//
//	@Description	e-Factura bulk poll result
type BulkPollResultResponse struct {
	Total           int `json:"total" example:"12"`
	Completed       int `json:"completed" example:"9"`
	StillProcessing int `json:"still_processing" example:"2"`
	Errored         int `json:"errored" example:"1"`
}

// SubmitInvoice godoc
// @ID           submitInvoiceEFactura
//
//	@Summary		Submit invoice to e-Factura
//	@Description	Upload the invoice document to the tax authority
//	@Tags			efactura
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	APIResponse[SubmitResultResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/efactura/submit [post]
func (h *EFacturaHandler) SubmitInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	result, err := h.service.Submit(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, SubmitResultResponse{
		Status:       string(result.Status),
		UploadID:     result.UploadID,
		ErrorMessage: result.ErrorMessage,
	})
}

// PollInvoice godoc
// @ID           pollInvoiceEFactura
//
//	@Summary		Poll e-Factura verdict
//	@Description	Check the tax authority verdict for a submitted invoice
//	@Tags			efactura
//	@Produce		json
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{object}	APIResponse[PollResultResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/efactura/poll [post]
func (h *EFacturaHandler) PollInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	result, err := h.service.Poll(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, PollResultResponse{
		Verdict:        string(result.Verdict),
		Status:         string(result.Status),
		DownloadID:     result.DownloadID,
		ErrorMessage:   result.ErrorMessage,
		SignedArchived: result.SignedArchived,
	})
}

// DownloadSigned godoc
// @ID           downloadSignedEFactura
//
//	@Summary		Download signed archive
//	@Description	Download the signed response archive for an accepted invoice
//	@Tags			efactura
//	@Produce		application/zip
//	@Param			id	path		string	true	"Invoice ID"
//	@Success		200	{file}		binary
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/invoices/{id}/efactura/download [get]
func (h *EFacturaHandler) DownloadSigned(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID")
		return
	}

	archive, err := h.service.DownloadSigned(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "efactura-"+invoiceID.String()+".zip"))
	c.Data(http.StatusOK, "application/zip", archive)
}

// PollAll godoc
// @ID           pollAllEFactura
//
//	@Summary		Poll all pending submissions
//	@Description	Poll the verdict of every invoice awaiting an e-Factura decision
//	@Tags			efactura
//	@Produce		json
//	@Success		200	{object}	APIResponse[BulkPollResultResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/efactura/poll [post]
func (h *EFacturaHandler) PollAll(c *gin.Context) {
	result, err := h.service.PollAll(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, BulkPollResultResponse{
		Total:           result.Total,
		Completed:       result.Completed,
		StillProcessing: result.StillProcessing,
		Errored:         result.Errored,
	})
}
