// Package core provides money parsing and handling utilities.
//
// Money is held as an integer number of hundredths so that sums and
// balances stay exact. Decimal parsing and rendering go through
// shopspring/decimal; currency codes are checked against the ISO 4217
// table shipped with go-money.
package core

import (
	"bytes"
	"errors"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by Money.
const MoneyScale = 2

// MaxAmount is the largest amount accepted for a single posting.
var MaxAmount = Money{Cents: 1_000_000_000_000 * 100}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has more than 2 decimal places")
	ErrInvalidCurrency = errors.New("unknown currency code")
)

// Money is a signed fixed-point amount in hundredths of the currency unit.
type Money struct {
	Cents int64
}

// NewMoneyFromDecimal converts d to Money without rounding.
// Values with more than two fractional digits are rejected.
func NewMoneyFromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(MoneyScale)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Money{}, ErrTooManyDecimals
	}
	if scaled.GreaterThan(decimal.NewFromInt(1<<62)) || scaled.LessThan(decimal.NewFromInt(-(1 << 62))) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: scaled.IntPart()}, nil
}

// ParseMoney parses a decimal string such as "12.34" or "-5".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoneyFromDecimal(d)
}

// MustMoney is ParseMoney for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -MoneyScale)
}

// String renders m with exactly two decimals, e.g. "3800.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(MoneyScale)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }
func (m Money) IsPositive() bool  { return m.Cents > 0 }

// MarshalJSON renders money as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	v, err := NewMoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ValidateCurrency reports whether code is a known ISO 4217 currency.
func ValidateCurrency(code string) error {
	if len(code) != 3 || code != strings.ToUpper(code) || gomoney.GetCurrency(code) == nil {
		return ErrInvalidCurrency
	}
	return nil
}
