package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradeco/backoffice/internal/infrastructure/settings"
)

// SettingsHandler handles company profile settings API endpoints
type SettingsHandler struct {
	BaseHandler
	store    settings.ProfileStore
	provider *settings.CachedIssuerProvider
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(store settings.ProfileStore, provider *settings.CachedIssuerProvider) *SettingsHandler {
	return &SettingsHandler{
		store:    store,
		provider: provider,
	}
}

// CompanyProfileResponse represents the issuer identity in API responses
//
//	@Description	Company profile response
type CompanyProfileResponse struct {
	Name    string `json:"name" example:"SC TradeCo SRL"`
	TaxID   string `json:"tax_id" example:"RO12345678"`
	RegCode string `json:"reg_code" example:"J40/1234/2020"`
	IBAN    string `json:"iban" example:"RO49AAAA1B31007593840000"`
}

// UpdateCompanyProfileRequest represents a request to update the issuer identity
//
//	@Description	Update company profile request
type UpdateCompanyProfileRequest struct {
	Name    string `json:"name" binding:"required" example:"SC TradeCo SRL"`
	TaxID   string `json:"tax_id" binding:"required" example:"RO12345678"`
	RegCode string `json:"reg_code" example:"J40/1234/2020"`
	IBAN    string `json:"iban" example:"RO49AAAA1B31007593840000"`
}

// GetCompanyProfile godoc
// @ID           getCompanyProfile
//
//	@Summary		Get company profile
//	@Description	Get the issuer identity stamped on outgoing fiscal documents
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	APIResponse[CompanyProfileResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/settings/company-profile [get]
func (h *SettingsHandler) GetCompanyProfile(c *gin.Context) {
	profile, err := h.store.Load(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, CompanyProfileResponse{
		Name:    profile.Name,
		TaxID:   profile.TaxID,
		RegCode: profile.RegCode,
		IBAN:    profile.IBAN,
	})
}

// UpdateCompanyProfile godoc
// @ID           updateCompanyProfile
//
//	@Summary		Update company profile
//	@Description	Replace the issuer identity and invalidate the cached copy
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpdateCompanyProfileRequest	true	"Company profile"
//	@Success		200		{object}	APIResponse[CompanyProfileResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/settings/company-profile [put]
func (h *SettingsHandler) UpdateCompanyProfile(c *gin.Context) {
	var req UpdateCompanyProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	profile := &settings.CompanyProfile{
		Name:    req.Name,
		TaxID:   req.TaxID,
		RegCode: req.RegCode,
		IBAN:    req.IBAN,
	}
	if err := profile.Validate(); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if err := h.provider.Save(c.Request.Context(), profile); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, CompanyProfileResponse{
		Name:    profile.Name,
		TaxID:   profile.TaxID,
		RegCode: profile.RegCode,
		IBAN:    profile.IBAN,
	})
}
