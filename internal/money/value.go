package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ErrRateMismatch indicates an attempt to combine values with different VAT rates.
var ErrRateMismatch = errors.New("money: vat rate mismatch")

// Value is an immutable net/VAT amount at a single VAT rate.
// Netto and VAT are kept rounded to two decimal places, half up,
// and the VAT is always derived from the rounded net so repeated
// combination never compounds rounding error.
type Value struct {
	netto decimal.Decimal
	rate  decimal.Decimal
	vat   decimal.Decimal
}

// New builds a Value from a net amount and a VAT rate in percent.
func New(netto, vatRate decimal.Decimal) Value {
	n := netto.Round(2)
	return Value{
		netto: n,
		rate:  vatRate,
		vat:   vatFor(n, vatRate),
	}
}

// Zero returns the zero Value at the given VAT rate.
func Zero(vatRate decimal.Decimal) Value {
	return Value{netto: decimal.Zero, rate: vatRate, vat: decimal.Zero}
}

func vatFor(netto, rate decimal.Decimal) decimal.Decimal {
	return netto.Mul(rate).Div(hundred).Round(2)
}

// Netto returns the tax-exclusive amount.
func (v Value) Netto() decimal.Decimal { return v.netto }

// VAT returns the tax amount.
func (v Value) VAT() decimal.Decimal { return v.vat }

// VATRate returns the rate in percent.
func (v Value) VATRate() decimal.Decimal { return v.rate }

// Gross returns the tax-inclusive amount.
func (v Value) Gross() decimal.Decimal { return v.netto.Add(v.vat) }

// IsZero reports whether the net amount is zero.
func (v Value) IsZero() bool { return v.netto.IsZero() }

// Add combines two values of the same VAT rate. The VAT of the result
// is recomputed from the combined net amount.
func (v Value) Add(other Value) (Value, error) {
	if !v.rate.Equal(other.rate) {
		return Value{}, fmt.Errorf("%w: %s vs %s", ErrRateMismatch, v.rate, other.rate)
	}
	n := v.netto.Add(other.netto)
	return Value{netto: n, rate: v.rate, vat: vatFor(n, v.rate)}, nil
}

func (v Value) String() string {
	return fmt.Sprintf("%s + %s VAT (%s%%)", v.netto.StringFixed(2), v.vat.StringFixed(2), v.rate)
}
