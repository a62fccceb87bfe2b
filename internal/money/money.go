// Package money holds monetary values as int64 minor units (two decimal
// places for both supported currencies). Arithmetic that involves rates or
// percentages goes through shopspring/decimal and is rounded back to minor
// units; amounts cross the API boundary as fixed-point decimal strings,
// never floats.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	// CurrencyINR is the platform's local currency.
	CurrencyINR = Currency("INR")

	// CurrencyUSDT is the stable-token currency.
	CurrencyUSDT = Currency("USDT")
)

// minorUnitScale is the number of decimal places stored for every currency.
const minorUnitScale = 2

var ErrInvalidAmount = errors.New("amount must be a positive decimal with at most 2 decimal places")

func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSDT
}

// Amount is a monetary value in minor units (paise, token cents).
type Amount int64

// Parse converts a decimal string from the API boundary into minor units.
// More than two decimal places is rejected rather than silently rounded.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	if d.Exponent() < -minorUnitScale {
		return 0, ErrInvalidAmount
	}

	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}

	return FromDecimal(d), nil
}

// FromDecimal rounds half away from zero to minor units.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Round(minorUnitScale).Shift(minorUnitScale).IntPart())
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorUnitScale)
}

// String renders the amount as a fixed two-decimal string, e.g. "9500.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorUnitScale)
}

// Percent computes pct% of the amount, rounded to minor units.
func (a Amount) Percent(pct decimal.Decimal) Amount {
	return FromDecimal(a.Decimal().Mul(pct).Div(decimal.NewFromInt(100)))
}

func (a Amount) IsPositive() bool {
	return a > 0
}

// ClampZero floors the amount at zero. Used for derived balances that must
// never be exposed as negative.
func (a Amount) ClampZero() Amount {
	if a < 0 {
		return 0
	}
	return a
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency validates a currency code from the API boundary.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}
