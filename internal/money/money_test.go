package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidAmounts(t *testing.T) {
	tests := []struct {
		input string
		want  Amount
	}{
		{"1000", 100000},
		{"1000.00", 100000},
		{"10.5", 1050},
		{"0.01", 1},
		{"9500.95", 950095},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		require.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestParse_RejectsInvalidAmounts(t *testing.T) {
	for _, input := range []string{"", "abc", "10.005", "-5", "-0.01"} {
		_, err := Parse(input)
		require.ErrorIs(t, err, ErrInvalidAmount, "input %q", input)
	}
}

func TestString_RendersFixedTwoDecimals(t *testing.T) {
	require.Equal(t, "9500.00", Amount(950000).String())
	require.Equal(t, "0.01", Amount(1).String())
	require.Equal(t, "1050.50", Amount(105050).String())
}

func TestPercent(t *testing.T) {
	amount := Amount(1000000) // 10000.00

	require.Equal(t, Amount(30000), amount.Percent(decimal.NewFromInt(3)))
	require.Equal(t, Amount(20000), amount.Percent(decimal.NewFromInt(2)))
	require.Equal(t, Amount(10000), amount.Percent(decimal.NewFromInt(1)))
}

func TestPercent_RoundsHalfAwayFromZero(t *testing.T) {
	// 1% of 0.50 is 0.005, which rounds up to one minor unit.
	require.Equal(t, Amount(1), Amount(50).Percent(decimal.NewFromInt(1)))
}

func TestFromDecimal_Rounding(t *testing.T) {
	d := decimal.RequireFromString("12.345")
	require.Equal(t, Amount(1235), FromDecimal(d))

	d = decimal.RequireFromString("12.344")
	require.Equal(t, Amount(1234), FromDecimal(d))
}

func TestParseCurrency(t *testing.T) {
	inr, err := ParseCurrency("INR")
	require.NoError(t, err)
	require.Equal(t, CurrencyINR, inr)

	usdt, err := ParseCurrency("USDT")
	require.NoError(t, err)
	require.Equal(t, CurrencyUSDT, usdt)

	_, err = ParseCurrency("EUR")
	require.Error(t, err)
}

func TestClampZero(t *testing.T) {
	require.Equal(t, Amount(0), Amount(-50).ClampZero())
	require.Equal(t, Amount(50), Amount(50).ClampZero())
}
