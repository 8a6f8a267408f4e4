// Package money provides fixed-point monetary values with currency-aware
// arithmetic. All amounts are decimals; binary floating point never touches
// a monetary quantity.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch is returned when arithmetic or comparison is attempted
// across two different currencies without an explicit conversion.
var ErrCurrencyMismatch = fmt.Errorf("currency mismatch")

// decimalPlaces maps currency codes to their minor-unit precision. Currencies
// not listed use two places.
var decimalPlaces = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// DecimalPlaces returns the number of minor-unit digits for a currency code.
func DecimalPlaces(currency string) int32 {
	if places, ok := decimalPlaces[strings.ToUpper(currency)]; ok {
		return places
	}
	return 2
}

// Money is an immutable fixed-point amount in a single currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates a Money from a decimal amount and a 3-letter currency code.
// The amount is rounded half-to-even to the currency's precision.
func New(amount decimal.Decimal, currency string) Money {
	code := strings.ToUpper(strings.TrimSpace(currency))
	return Money{
		amount:   amount.RoundBank(DecimalPlaces(code)),
		currency: code,
	}
}

// Parse creates a Money from a decimal string, the only accepted wire format
// for monetary amounts.
func Parse(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid decimal amount %q: %w", amount, err)
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, fmt.Errorf("invalid currency code %q", currency)
	}
	return New(d, code), nil
}

// MustParse is Parse that panics on invalid input. For tests and constants.
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-valued Money in the given currency.
func Zero(currency string) Money {
	return New(decimal.Zero, currency)
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the 3-letter currency code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// IsNegative reports whether the amount is less than zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Add returns m + other. Fails if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.amount.Add(other.amount), m.currency), nil
}

// Sub returns m - other. Fails if the currencies differ.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.amount.Sub(other.amount), m.currency), nil
}

// Compare returns -1, 0 or 1 comparing m against other.
// Fails if the currencies differ.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// Convert returns a new Money in the target currency, rounding half-to-even
// to the target currency's precision.
func (m Money) Convert(rate decimal.Decimal, targetCurrency string) Money {
	return New(m.amount.Mul(rate), targetCurrency)
}

// String renders the amount at the currency's precision, e.g. "12.30 EUR".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(DecimalPlaces(m.currency)), m.currency)
}

// AmountString returns the bare decimal-string amount at the currency's
// precision, the wire representation of the value.
func (m Money) AmountString() string {
	return m.amount.StringFixed(DecimalPlaces(m.currency))
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.AmountString(),
		Currency: m.currency,
	})
}

// UnmarshalJSON decodes a decimal-string amount. Numeric JSON amounts are
// rejected to keep floats off the wire.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("money must be encoded as decimal strings: %w", err)
	}
	parsed, err := Parse(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
