package money

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LineItem is a single priced position on a cart, order or document.
// Quantity and AmountPerUnit are decimals because produce is sold by
// weight as well as by piece.
type LineItem struct {
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	AmountPerUnit decimal.Decimal
	VATRate       decimal.Decimal
	PayeeID       int64
}

// ExactNet returns the unrounded net value of the line.
func (l LineItem) ExactNet() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity).Mul(l.AmountPerUnit)
}

// Sum totals line items the way an invoice does: bucket by VAT rate,
// sum the exact (unrounded) nets per bucket, round once per bucket and
// derive the bucket VAT from the rounded bucket net. Summing the
// already-rounded per-line VAT instead would compound rounding error.
// Buckets are returned ordered by ascending rate.
func Sum(lines []LineItem) []Value {
	buckets := make(map[string]decimal.Decimal)
	rates := make(map[string]decimal.Decimal)
	for _, l := range lines {
		key := l.VATRate.String()
		buckets[key] = buckets[key].Add(l.ExactNet())
		rates[key] = l.VATRate
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return rates[keys[i]].LessThan(rates[keys[j]]) })

	values := make([]Value, 0, len(keys))
	for _, k := range keys {
		values = append(values, New(buckets[k], rates[k]))
	}
	return values
}

// Gross returns the gross total of the given lines, grouped by VAT rate.
func Gross(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, v := range Sum(lines) {
		total = total.Add(v.Gross())
	}
	return total
}

// GrossByPayee partitions lines by payee and computes each payee's
// grouped-by-VAT gross. This is the amount actually transferred to a
// payee when the owning document is paid.
func GrossByPayee(lines []LineItem) map[int64]decimal.Decimal {
	byPayee := make(map[int64][]LineItem)
	for _, l := range lines {
		byPayee[l.PayeeID] = append(byPayee[l.PayeeID], l)
	}
	out := make(map[int64]decimal.Decimal, len(byPayee))
	for payee, group := range byPayee {
		out[payee] = Gross(group)
	}
	return out
}

// PriceGross is the gross price of a whole order: the sum of the
// per-payee grosses. Rounding happens per payee per VAT rate, never
// once across the whole order.
func PriceGross(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, gross := range GrossByPayee(lines) {
		total = total.Add(gross)
	}
	return total
}
