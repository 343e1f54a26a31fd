package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func line(price, rate string, payee int64) LineItem {
	return LineItem{
		UnitPrice:     d(price),
		Quantity:      decimal.NewFromInt(1),
		AmountPerUnit: decimal.NewFromInt(1),
		VATRate:       d(rate),
		PayeeID:       payee,
	}
}

func TestNewRoundsHalfUp(t *testing.T) {
	v := New(d("10.005"), d("19"))
	require.True(t, v.Netto().Equal(d("10.01")), "netto %s", v.Netto())
	require.True(t, v.VAT().Equal(d("1.90")), "vat %s", v.VAT())
	require.True(t, v.Gross().Equal(d("11.91")), "gross %s", v.Gross())
}

func TestAddRecomputesVAT(t *testing.T) {
	a := New(d("41"), d("7"))
	b := New(d("7.90"), d("7"))
	sum, err := a.Add(b)
	require.NoError(t, err)
	require.True(t, sum.Netto().Equal(d("48.90")))
	// 48.90 * 0.07 = 3.423, rounded once from the combined net.
	require.True(t, sum.VAT().Equal(d("3.42")), "vat %s", sum.VAT())
}

func TestAddRejectsMixedRates(t *testing.T) {
	_, err := New(d("1"), d("7")).Add(New(d("1"), d("19")))
	require.ErrorIs(t, err, ErrRateMismatch)
}

func TestSumGroupsByRateBeforeRounding(t *testing.T) {
	lines := []LineItem{
		line("41", "7", 1),
		line("7.9", "7", 1),
		line("4.89", "19", 1),
		line("4.89", "19", 1),
	}
	gross := Gross(lines)
	require.True(t, gross.Mul(d("100")).Equal(d("6396")), "gross %s", gross)
}

func TestSumSecondHandComputedVector(t *testing.T) {
	lines := []LineItem{
		line("7.80", "7", 1),
		line("0.97", "7", 1),
	}
	gross := Gross(lines)
	require.True(t, gross.Mul(d("100")).Equal(d("938")), "gross %s", gross)
}

func TestSumUsesExactNets(t *testing.T) {
	// Two lines whose individually rounded nets would lose the half cent.
	lines := []LineItem{
		{UnitPrice: d("0.335"), Quantity: decimal.NewFromInt(1), AmountPerUnit: decimal.NewFromInt(1), VATRate: d("19"), PayeeID: 1},
		{UnitPrice: d("0.335"), Quantity: decimal.NewFromInt(1), AmountPerUnit: decimal.NewFromInt(1), VATRate: d("19"), PayeeID: 1},
	}
	values := Sum(lines)
	require.Len(t, values, 1)
	require.True(t, values[0].Netto().Equal(d("0.67")), "netto %s", values[0].Netto())
}

func TestGrossByPayeePartitions(t *testing.T) {
	lines := []LineItem{
		line("10", "7", 1),
		line("20", "7", 2),
		line("5", "19", 2),
	}
	byPayee := GrossByPayee(lines)
	require.Len(t, byPayee, 2)
	require.True(t, byPayee[1].Equal(d("10.70")), "payee 1 %s", byPayee[1])
	// 20 + 1.40 + 5 + 0.95
	require.True(t, byPayee[2].Equal(d("27.35")), "payee 2 %s", byPayee[2])

	total := PriceGross(lines)
	require.True(t, total.Equal(d("38.05")), "total %s", total)
}

func TestLineValueUsesQuantityAndAmount(t *testing.T) {
	l := LineItem{
		UnitPrice:     d("2.50"),
		Quantity:      decimal.NewFromInt(3),
		AmountPerUnit: d("0.5"),
		VATRate:       d("7"),
	}
	require.True(t, l.ExactNet().Equal(d("3.75")))
}
