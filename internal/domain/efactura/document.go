package efactura

import (
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// Document is the wire representation of an invoice submitted to the
// authority. It carries the structural contract needed for validation:
// identifier, dates, type code, currency, supplier identity, lines, one tax
// subtotal per distinct rate, payment means and monetary totals.
type Document struct {
	XMLName          xml.Name      `xml:"Invoice"`
	ID               string        `xml:"ID"`
	IssueDate        string        `xml:"IssueDate"`
	DueDate          string        `xml:"DueDate,omitempty"`
	InvoiceTypeCode  string        `xml:"InvoiceTypeCode"`
	CurrencyCode     string        `xml:"DocumentCurrencyCode"`
	Supplier         Party         `xml:"AccountingSupplierParty>Party"`
	Customer         Party         `xml:"AccountingCustomerParty>Party"`
	PaymentMeans     PaymentMeans  `xml:"PaymentMeans"`
	TaxTotal         TaxTotal      `xml:"TaxTotal"`
	MonetaryTotal    MonetaryTotal `xml:"LegalMonetaryTotal"`
	Lines            []Line        `xml:"InvoiceLine"`
}

// Party identifies the supplier or customer on the wire document
type Party struct {
	Name    string `xml:"PartyName>Name"`
	TaxID   string `xml:"PartyTaxScheme>CompanyID,omitempty"`
	RegCode string `xml:"PartyLegalEntity>CompanyID,omitempty"`
}

// PaymentMeans carries the payment-means code and optional account
type PaymentMeans struct {
	Code string `xml:"PaymentMeansCode"`
	IBAN string `xml:"PayeeFinancialAccount>ID,omitempty"`
}

// Line is one billed item on the wire document. Quantity carries the sign
// for negative unit prices, per the authority's validation rule.
type Line struct {
	ID          int            `xml:"ID"`
	Quantity    QuantityField  `xml:"InvoicedQuantity"`
	NetAmount   string         `xml:"LineExtensionAmount"`
	Description string         `xml:"Item>Description"`
	TaxCategory TaxCategory    `xml:"Item>ClassifiedTaxCategory"`
	UnitPrice   string         `xml:"Price>PriceAmount"`
}

// QuantityField is a quantity with its resolved unit code attribute
type QuantityField struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

// TaxCategory identifies the VAT treatment of a line
type TaxCategory struct {
	ID      string `xml:"ID"`
	Percent string `xml:"Percent"`
}

// TaxTotal holds the total tax and one subtotal per distinct rate
type TaxTotal struct {
	TaxAmount string        `xml:"TaxAmount"`
	Subtotals []TaxSubtotal `xml:"TaxSubtotal"`
}

// TaxSubtotal is the tax breakdown for one (rate, category) pair
type TaxSubtotal struct {
	TaxableAmount   string `xml:"TaxableAmount"`
	TaxAmount       string `xml:"TaxAmount"`
	CategoryID      string `xml:"TaxCategory>ID"`
	Percent         string `xml:"TaxCategory>Percent"`
	ExemptionReason string `xml:"TaxCategory>TaxExemptionReason,omitempty"`
}

// MonetaryTotal holds the document totals
type MonetaryTotal struct {
	NetAmount     string `xml:"TaxExclusiveAmount"`
	GrossAmount   string `xml:"TaxInclusiveAmount"`
	PayableAmount string `xml:"PayableAmount"`
}

// Issuer is the company-profile snapshot stamped on every wire document
type Issuer struct {
	Name    string
	TaxID   string
	RegCode string
	IBAN    string
}

const dateLayout = "2006-01-02"

// BuildDocument builds a wire document from an invoice snapshot, the issuer
// profile and the settlement payment method. It validates every unit code
// before returning; nothing here touches the network or the ledger.
func BuildDocument(inv *billing.Invoice, issuer Issuer, method billing.PaymentMethod) (*Document, error) {
	if inv == nil {
		return nil, shared.NewValidationError("Invoice is required")
	}
	if len(inv.Lines) == 0 {
		return nil, shared.NewValidationError(fmt.Sprintf("Invoice %s has no lines to submit", inv.DocumentID()))
	}
	if inv.Number == 0 {
		return nil, shared.NewValidationError(fmt.Sprintf("Invoice %s has no assigned number", inv.Series))
	}

	typeCode := TypeCodeStandard
	if inv.IsCredit() {
		typeCode = TypeCodeCredit
	}

	doc := &Document{
		ID:              inv.DocumentID(),
		IssueDate:       inv.IssueDate.Format(dateLayout),
		InvoiceTypeCode: typeCode,
		CurrencyCode:    string(inv.Currency),
		Supplier: Party{
			Name:    issuer.Name,
			TaxID:   issuer.TaxID,
			RegCode: issuer.RegCode,
		},
		Customer: Party{Name: inv.ClientName},
		PaymentMeans: PaymentMeans{
			Code: PaymentMeansCode(method),
			IBAN: issuer.IBAN,
		},
	}
	if inv.DueDate != nil {
		doc.DueDate = inv.DueDate.Format(dateLayout)
	}

	type rateKey struct {
		category string
		percent  string
	}
	subtotals := make(map[rateKey]*TaxSubtotal)
	order := make([]rateKey, 0, 2)

	netTotal := decimal.Zero
	taxTotal := decimal.Zero

	for i, line := range inv.Lines {
		unitCode, err := ResolveUnitCode(line.Unit)
		if err != nil {
			return nil, err
		}

		quantity := line.Quantity
		unitPrice := valueobject.Round6(line.UnitPrice)
		// The authority rejects negative prices: the sign moves onto the
		// quantity instead.
		if unitPrice.IsNegative() {
			quantity = quantity.Neg()
			unitPrice = unitPrice.Abs()
		}

		net := line.NetAmount()
		vat := line.VatAmount()
		netTotal = netTotal.Add(net)
		taxTotal = taxTotal.Add(vat)

		percent := line.VatRate.StringFixed(2)
		doc.Lines = append(doc.Lines, Line{
			ID:          i + 1,
			Quantity:    QuantityField{UnitCode: unitCode, Value: quantity.String()},
			NetAmount:   net.StringFixed(2),
			Description: line.Description,
			TaxCategory: TaxCategory{ID: line.TaxCategory, Percent: percent},
			UnitPrice:   unitPrice.String(),
		})

		key := rateKey{category: line.TaxCategory, percent: percent}
		sub, ok := subtotals[key]
		if !ok {
			sub = &TaxSubtotal{CategoryID: line.TaxCategory, Percent: percent, ExemptionReason: line.ExemptionReason}
			subtotals[key] = sub
			order = append(order, key)
		}
		base := decimal.RequireFromString(zeroIfEmpty(sub.TaxableAmount)).Add(net)
		amount := decimal.RequireFromString(zeroIfEmpty(sub.TaxAmount)).Add(vat)
		sub.TaxableAmount = base.StringFixed(2)
		sub.TaxAmount = amount.StringFixed(2)
	}

	for _, key := range order {
		doc.TaxTotal.Subtotals = append(doc.TaxTotal.Subtotals, *subtotals[key])
	}

	netTotal = valueobject.Round2(netTotal)
	taxTotal = valueobject.Round2(taxTotal)
	gross := valueobject.Round2(netTotal.Add(taxTotal))

	doc.TaxTotal.TaxAmount = taxTotal.StringFixed(2)
	doc.MonetaryTotal = MonetaryTotal{
		NetAmount:     netTotal.StringFixed(2),
		GrossAmount:   gross.StringFixed(2),
		PayableAmount: gross.StringFixed(2),
	}

	return doc, nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// ToXML serializes the document with an XML header
func (d *Document) ToXML() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal wire document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
