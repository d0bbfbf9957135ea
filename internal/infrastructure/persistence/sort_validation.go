package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"series":           true,
	"number":           true,
	"client_id":        true,
	"client_name":      true,
	"invoice_type":     true,
	"issue_date":       true,
	"due_date":         true,
	"grand_total":      true,
	"paid_amount":      true,
	"remaining_amount": true,
	"status":           true,
	"efactura_status":  true,
}

// PaymentSortFields contains allowed sort fields for incoming payments
var PaymentSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"payment_number":     true,
	"client_id":          true,
	"client_name":        true,
	"total_amount":       true,
	"unallocated_amount": true,
	"payment_method":     true,
	"status":             true,
	"payment_date":       true,
}
