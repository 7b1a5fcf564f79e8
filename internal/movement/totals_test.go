package movement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineValueAppliesDiscount(t *testing.T) {
	cases := []struct {
		qty      int64
		price    string
		discount string
		want     string
	}{
		{10, "100", "0", "1000"},
		{3, "19.99", "0", "59.97"},
		{4, "150", "10", "540"},
		{7, "12.5", "12.5", "76.5625"},
		{1, "80", "100", "0"},
	}
	for _, tc := range cases {
		got := LineValue(tc.qty, dec(tc.price), dec(tc.discount))
		require.True(t, got.Equal(dec(tc.want)), "%d x %s - %s%% = %s", tc.qty, tc.price, tc.discount, got)
	}
}

func TestImportTotalSumsLines(t *testing.T) {
	doc := Import{Lines: []ImportLine{
		{Quantity: 10, UnitPrice: dec("100"), DiscountPercent: dec("0")},
		{Quantity: 2, UnitPrice: dec("33.33"), DiscountPercent: dec("50")},
	}}
	require.True(t, doc.TotalValue().Equal(dec("1033.33")), doc.TotalValue().String())
	require.True(t, Import{}.TotalValue().IsZero())
}

func TestCheckDifferences(t *testing.T) {
	doc := Check{Lines: []CheckLine{
		{SystemQuantity: 50, ActualQuantity: 47, UnitPrice: dec("20")},
		{SystemQuantity: 5, ActualQuantity: 9, UnitPrice: dec("2.5")},
		{SystemQuantity: 1, ActualQuantity: 1, UnitPrice: dec("999")},
	}}
	require.Equal(t, int64(-3), doc.Lines[0].DifferenceQuantity())
	require.True(t, doc.Lines[0].TotalValue().Equal(dec("-60")))
	require.Equal(t, int64(4), doc.Lines[1].DifferenceQuantity())
	require.True(t, doc.Lines[2].TotalValue().IsZero())
	require.True(t, doc.TotalDifferenceValue().Equal(dec("-50")))
}
