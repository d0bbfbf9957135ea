package efactura

import (
	"fmt"
	"strings"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
)

// Document type codes used by the authority
const (
	TypeCodeStandard = "380" // commercial invoice
	TypeCodeCredit   = "381" // credit note
)

// DefaultPaymentMeansCode is the generic credit-transfer code used when the
// invoice has no settlement yet.
const DefaultPaymentMeansCode = "30"

// paymentMeansCodes maps internal payment methods to UN/ECE 4461 codes
var paymentMeansCodes = map[billing.PaymentMethod]string{
	billing.PaymentMethodCash:         "10",
	billing.PaymentMethodCheck:        "20",
	billing.PaymentMethodBankTransfer: "30",
	billing.PaymentMethodCard:         "48",
	billing.PaymentMethodCompensation: "97",
}

// PaymentMeansCode maps an internal payment method to its wire code.
// Unknown or empty methods fall back to the generic credit-transfer code.
func PaymentMeansCode(method billing.PaymentMethod) string {
	if code, ok := paymentMeansCodes[method]; ok {
		return code
	}
	return DefaultPaymentMeansCode
}

// unitCodes maps internal physical units to UN/ECE Recommendation 20 codes.
// Every line's unit must resolve; an unresolved unit fails validation before
// any network call.
var unitCodes = map[string]string{
	"buc":     "H87", // piece
	"kg":      "KGM",
	"g":       "GRM",
	"l":       "LTR",
	"m":       "MTR",
	"mp":      "MTK", // square metre
	"mc":      "MTQ", // cubic metre
	"km":      "KMT",
	"ora":     "HUR",
	"zi":      "DAY",
	"luna":    "MON",
	"set":     "SET",
	"pereche": "PR",
}

// ResolveUnitCode maps an internal unit to its wire code
func ResolveUnitCode(unit string) (string, error) {
	code, ok := unitCodes[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return "", shared.NewValidationError(fmt.Sprintf("Unit %q has no recognized unit code", unit))
	}
	return code, nil
}
