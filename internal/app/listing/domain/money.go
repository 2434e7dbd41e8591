package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Money represents a price using exact rational arithmetic.
// Prices are persisted as numerator/denominator pairs and shown as floats.
type Money struct {
	rat *big.Rat
}

// NewMoney creates a Money from numerator and denominator.
// Example: NewMoney(350, 100) represents £3.50
func NewMoney(numerator, denominator int64) (*Money, error) {
	if denominator == 0 {
		return nil, fmt.Errorf("denominator cannot be zero")
	}
	if denominator < 0 {
		return nil, fmt.Errorf("denominator must be positive")
	}
	return &Money{rat: big.NewRat(numerator, denominator)}, nil
}

// ParseMoney parses a decimal string such as "3.50" or "£3.50".
func ParseMoney(s string) (*Money, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "£")
	rat, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &Money{rat: rat}, nil
}

// MoneyFromField reads a price field of a record, accepting numbers and decimal strings.
func MoneyFromField(r Record, field string) (*Money, error) {
	switch v := r[field].(type) {
	case *Money:
		if v == nil {
			return nil, fmt.Errorf("field %q is empty", field)
		}
		return v.Copy(), nil
	case string:
		return ParseMoney(v)
	case nil:
		return nil, fmt.Errorf("field %q is missing", field)
	}
	f, ok := r.Float(field)
	if !ok {
		return nil, fmt.Errorf("field %q is not a price", field)
	}
	return ParseMoney(strconv.FormatFloat(f, 'f', -1, 64))
}

// Numerator returns the numerator of the normalized rational.
func (m *Money) Numerator() int64 {
	return m.rat.Num().Int64()
}

// Denominator returns the denominator of the normalized rational.
func (m *Money) Denominator() int64 {
	return m.rat.Denom().Int64()
}

// FitsInt64 reports whether numerator and denominator can be stored as INT64 columns.
func (m *Money) FitsInt64() bool {
	return m.rat.Num().IsInt64() && m.rat.Denom().IsInt64()
}

// IsNegative returns true if the value is below zero.
func (m *Money) IsNegative() bool {
	return m.rat.Sign() < 0
}

// Equals returns true if both values are the same amount.
func (m *Money) Equals(other *Money) bool {
	return m.rat.Cmp(other.rat) == 0
}

// Float64 returns an approximate float64 (for display, not arithmetic).
func (m *Money) Float64() float64 {
	f, _ := m.rat.Float64()
	return f
}

// String renders the value with two decimals.
func (m *Money) String() string {
	return m.rat.FloatString(2)
}

// Copy creates a deep copy.
func (m *Money) Copy() *Money {
	return &Money{rat: new(big.Rat).Set(m.rat)}
}
