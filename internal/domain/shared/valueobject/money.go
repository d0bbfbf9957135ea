package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	RON Currency = "RON" // Romanian Leu (default)
	EUR Currency = "EUR" // Euro
	USD Currency = "USD" // US Dollar
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = RON

// MoneyTolerance is the tolerance used for monetary equality checks.
// Monetary comparisons never use exact equality.
var MoneyTolerance = decimal.RequireFromString("0.01")

// settledThreshold treats sub-0.001 residues as fully settled
var settledThreshold = decimal.RequireFromString("0.001")

// Round2 rounds a monetary amount to 2 decimal places (standard rounding).
// Every monetary field is rounded this way before persistence or comparison.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round6 rounds an intermediate unit amount to 6 decimal places
func Round6(d decimal.Decimal) decimal.Decimal {
	return d.Round(6)
}

// ApproxEqual reports whether two monetary amounts are equal within MoneyTolerance
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyTolerance)
}

// ApproxZero reports whether a monetary amount is zero within MoneyTolerance
func ApproxZero(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MoneyTolerance)
}

// Settled reports whether a remaining amount is small enough to clamp to zero
func Settled(remaining decimal.Decimal) bool {
	return remaining.Abs().LessThanOrEqual(settledThreshold)
}

// Money is a value object representing monetary amounts.
// It is immutable - all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// NewMoneyRON creates Money in RON
func NewMoneyRON(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: RON}
}

// NewMoneyRONFromFloat creates Money in RON from float64
func NewMoneyRONFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: RON}
}

// ZeroRON returns a zero-value Money in RON
func ZeroRON() Money {
	return Money{amount: decimal.Zero, currency: RON}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts.
// Returns error if currencies don't match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: m.currency,
	}, nil
}

// Subtract returns a new Money with the difference.
// Returns error if currencies don't match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Sub(other.amount),
		currency: m.currency,
	}, nil
}

// Neg returns a new Money with the negated amount
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns a new Money with the absolute amount
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Rounded returns a new Money rounded to 2 decimal places
func (m Money) Rounded() Money {
	return Money{amount: Round2(m.amount), currency: m.currency}
}

// ApproxEquals reports whether both amounts are equal within MoneyTolerance.
// Currencies must match.
func (m Money) ApproxEquals(other Money) bool {
	return m.currency == other.currency && ApproxEqual(m.amount, other.amount)
}

// String returns a formatted representation, e.g. "150.00 RON"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}
