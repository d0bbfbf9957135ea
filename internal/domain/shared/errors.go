package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by the ledger and e-invoice modules
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeOverAllocation  = "OVER_ALLOCATION"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrCodeConcurrency     = "CONCURRENCY_CONFLICT"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(ErrCodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(ErrCodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(ErrCodeConcurrency, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(ErrCodeInvalidState, "Operation not allowed in current state")
)

// NewValidationError creates a VALIDATION_ERROR with the given message
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewNotFoundError creates a NOT_FOUND with the given message
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(ErrCodeNotFound, message)
}

// NewInvalidStateError creates an INVALID_STATE with the given message
func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(ErrCodeInvalidState, message)
}

// NewOverAllocationError creates an OVER_ALLOCATION with the given message
func NewOverAllocationError(message string) *DomainError {
	return NewDomainError(ErrCodeOverAllocation, message)
}

// NewExternalServiceError creates an EXTERNAL_SERVICE_ERROR with the given message
func NewExternalServiceError(message string) *DomainError {
	return NewDomainError(ErrCodeExternalService, message)
}
