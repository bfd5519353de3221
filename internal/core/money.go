// Package core provides the budget domain: entries, recurring rules,
// category catalogs, settings and the pure functions that validate them.
//
// This file contains the Money type. Amounts are decimals and are written to
// JSON as plain numbers, the format of documents produced by the browser app.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for display when none is configured.
const DefaultCurrency = money.USD

// Money is an amount in major currency units.
type Money struct {
	value decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{value: d}
}

func MoneyFromInt(v int64) Money {
	return Money{value: decimal.NewFromInt(v)}
}

// ParseMoney parses a user-typed amount.
//
// It accepts an optional leading "$", thousands separators ("1,234.50") and a
// decimal comma ("12,34"). Negative values are rejected.
//
// Examples:
//
//	ParseMoney("12.34")     -> 12.34, nil
//	ParseMoney("$1,234.50") -> 1234.50, nil
//	ParseMoney("12,34")     -> 12.34, nil
//	ParseMoney("-5")        -> 0, ErrNegativeAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{value: d}, nil
}

// CoerceAmount converts a decoded JSON value to a non-negative amount.
// Missing, non-numeric and non-finite values are invalid.
func CoerceAmount(v any) (Money, error) {
	var d decimal.Decimal
	switch n := v.(type) {
	case Money:
		d = n.value
	case decimal.Decimal:
		d = n
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return Money{}, ErrInvalidAmount
		}
		d = parsed
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Money{}, ErrInvalidAmount
		}
		d = decimal.NewFromFloat(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return Money{}, ErrInvalidAmount
		}
		d = parsed
	default:
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{value: d}, nil
}

func (m Money) Decimal() decimal.Decimal        { return m.value }
func (m Money) Add(n Money) Money               { return Money{value: m.value.Add(n.value)} }
func (m Money) Sub(n Money) Money               { return Money{value: m.value.Sub(n.value)} }
func (m Money) Cmp(n Money) int                 { return m.value.Cmp(n.value) }
func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) }
func (m Money) IsZero() bool                    { return m.value.IsZero() }
func (m Money) IsNegative() bool                { return m.value.IsNegative() }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) Float64() float64                { return m.value.InexactFloat64() }
func (m Money) String() string                  { return m.value.String() }
func (m Money) StringFixed(places int32) string { return m.value.StringFixed(places) }

// Format renders the amount with the currency's symbol, grouping and fraction digits.
func (m Money) Format(currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	// money.New never returns a nil currency, unknown codes get defaults
	cur := money.New(0, currency).Currency()
	minor := m.value.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.value.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		b = []byte(s)
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return ErrInvalidAmount
	}
	m.value = d
	return nil
}
