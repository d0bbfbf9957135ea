package handler

import "github.com/tradeco/backoffice/internal/interfaces/http/dto"

// Response wrappers referenced by the OpenAPI annotations. Handlers respond
// through dto; these exist so swag can render typed data fields.

// APIResponse is the standard envelope with a typed data field.
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// @Description Simple success response without data
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// @Description Count data
type CountData struct {
	Count int64 `json:"count"`
}
