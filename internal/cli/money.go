package cli

import (
	"github.com/Rhymond/go-money"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/shopspring/decimal"
)

// FormatKRW renders whole won, e.g. ₩13,000.
func FormatKRW(amount int64) string {
	return money.New(amount, money.KRW).Display()
}

// FormatAmount renders a foreign amount in its own currency's minor units,
// truncating anything finer (3.337 USD shows as $3.33).
func FormatAmount(amount decimal.Decimal, code currency.Code) string {
	cur := money.GetCurrency(string(code))
	if cur == nil {
		return amount.String() + " " + string(code)
	}
	minor := amount.Shift(int32(cur.Fraction)).Truncate(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// FormatRate renders a quoted rate with its quoting unit, e.g. "100 JPY = ₩905.5".
func FormatRate(rate decimal.Decimal, code currency.Code) string {
	info, err := currency.Lookup(code)
	if err != nil {
		return rate.String()
	}
	units := info.QuoteUnits
	if units < 1 {
		units = 1
	}
	return decimal.NewFromInt(units).String() + " " + string(code) + " = ₩" + rate.StringFixed(2)
}
