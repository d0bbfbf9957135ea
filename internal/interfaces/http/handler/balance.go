package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tradeco/backoffice/internal/application/balance"
)

// BalanceHandler handles client balance API endpoints
type BalanceHandler struct {
	BaseHandler
	service *balance.BalanceService
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(service *balance.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		service: service,
	}
}

// ClientBalanceResponse represents a client balance projection
//
//	@Description	Client balance response
type ClientBalanceResponse struct {
	ClientID    string  `json:"client_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Outstanding float64 `json:"outstanding" example:"1200.00"`
	OpenCredit  float64 `json:"open_credit" example:"-300.00"`
	Unallocated float64 `json:"unallocated" example:"150.00"`
	NetBalance  float64 `json:"net_balance" example:"750.00"`
}

// GetClientBalance godoc
// @ID           getClientBalance
//
//	@Summary		Get client balance
//	@Description	Get the outstanding, open credit and unallocated totals for a client
//	@Tags			balances
//	@Produce		json
//	@Param			id	path		string	true	"Client ID"
//	@Success		200	{object}	APIResponse[ClientBalanceResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/clients/{id}/balance [get]
func (h *BalanceHandler) GetClientBalance(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	result, err := h.service.ClientBalance(c.Request.Context(), clientID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ClientBalanceResponse{
		ClientID:    result.ClientID.String(),
		Outstanding: result.Outstanding.InexactFloat64(),
		OpenCredit:  result.OpenCredit.InexactFloat64(),
		Unallocated: result.Unallocated.InexactFloat64(),
		NetBalance:  result.NetBalance.InexactFloat64(),
	})
}
