package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPrecision is the number of fractional digits every amount is
// truncated to at the input boundary.
const AmountPrecision = 4

var ErrNegativeAmount = errors.New("amount cannot be negative")

// maxAmount is the 96-bit fixed-point ceiling (2^96 - 1 at scale 0).
// Balances are clamped here so additions have an explicit overflow point
// instead of growing without bound.
var maxAmount = decimal.RequireFromString("79228162514264337593543950335")

// Amount is a fixed-point monetary value with 4 fractional digits.
// Input amounts are non-negative by construction; derived values such as
// an available balance may legitimately go negative.
type Amount struct {
	dec decimal.Decimal
}

// ParseAmount parses a decimal string into an Amount. Negative values are
// rejected and extra fractional digits are truncated toward zero, never
// rounded, so 1.99999 becomes 1.9999.
func ParseAmount(s string) (Amount, error) {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if dec.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{dec: dec.Truncate(AmountPrecision)}, nil
}

// MustAmount is a test and fixture helper; it panics on invalid input.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// MaxAmount returns the largest representable amount.
func MaxAmount() Amount {
	return Amount{dec: maxAmount}
}

// ZeroAmount returns the zero amount.
func ZeroAmount() Amount {
	return Amount{}
}

// CheckedAdd returns a+b, reporting false when the result would exceed the
// fixed-point ceiling.
func (a Amount) CheckedAdd(b Amount) (Amount, bool) {
	sum := a.dec.Add(b.dec)
	if sum.Abs().GreaterThan(maxAmount) {
		return Amount{}, false
	}
	return Amount{dec: sum}, true
}

// CheckedSub returns a-b. Negative results are allowed; only magnitude
// overflow reports false.
func (a Amount) CheckedSub(b Amount) (Amount, bool) {
	diff := a.dec.Sub(b.dec)
	if diff.Abs().GreaterThan(maxAmount) {
		return Amount{}, false
	}
	return Amount{dec: diff}, true
}

func (a Amount) IsZero() bool            { return a.dec.IsZero() }
func (a Amount) IsNegative() bool        { return a.dec.IsNegative() }
func (a Amount) Equal(b Amount) bool     { return a.dec.Equal(b.dec) }
func (a Amount) LessThan(b Amount) bool  { return a.dec.LessThan(b.dec) }
func (a Amount) Neg() Amount             { return Amount{dec: a.dec.Neg()} }

// String renders the amount with insignificant trailing zeros stripped,
// so 1.5000 prints as 1.5 and 3.0000 prints as 3.
func (a Amount) String() string {
	s := a.dec.String()
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// MarshalText round-trips the normalized rendering.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses without the non-negative input constraint, since
// serialized amounts may be derived (negative) values.
func (a *Amount) UnmarshalText(text []byte) error {
	dec, err := decimal.NewFromString(string(text))
	if err != nil {
		return err
	}
	a.dec = dec
	return nil
}
