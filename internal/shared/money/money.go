package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount bound to a currency code.
// Commission arithmetic must never mix currencies silently.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

var ErrCurrencyMismatch = errors.New("currency codes do not match")

func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func FromFloat(amount float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: currency}
}

func FromString(amount string, currency string) (Money, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("parse money amount %q: %w", amount, err)
	}
	return Money{Amount: value, Currency: currency}, nil
}

func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

func (m Money) Add(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if !m.SameCurrency(other) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// MulPercent scales by percentage/100 and rounds to 2 decimal places.
// Percentages are stored with 2-decimal precision (0..100).
func (m Money) MulPercent(percentage decimal.Decimal) Money {
	return Money{
		Amount:   m.Amount.Mul(percentage).Div(decimal.NewFromInt(100)).Round(2),
		Currency: m.Currency,
	}
}

// MulRatio scales by an arbitrary ratio (e.g. a pool share) and rounds to 2 places.
func (m Money) MulRatio(ratio decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(ratio).Round(2), Currency: m.Currency}
}

func (m Money) Round2() Money {
	return Money{Amount: m.Amount.Round(2), Currency: m.Currency}
}

func (m Money) Cmp(other Money) (int, error) {
	if !m.SameCurrency(other) {
		return 0, ErrCurrencyMismatch
	}
	return m.Amount.Cmp(other.Amount), nil
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
