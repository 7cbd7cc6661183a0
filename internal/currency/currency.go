// Package currency describes the currencies tripwallet can convert and the
// quoting convention each one uses on the rate listing page.
package currency

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is returned for codes outside the currency table.
var ErrUnknownCurrency = errors.New("unknown currency")

// Code is an ISO 4217 currency code.
type Code string

// Supported currency codes.
const (
	KRW Code = "KRW"
	USD Code = "USD"
	EUR Code = "EUR"
	JPY Code = "JPY"
)

// Info holds the quoting convention for a single currency.
type Info struct {
	Code   Code
	Token  string // lowercase key used on the listing page
	Symbol string
	// QuoteUnits is how many units of the currency one listed rate buys.
	// The listing quotes JPY per 100 yen.
	QuoteUnits int64
	// Home marks the local currency, converted 1:1 without a rate lookup.
	Home bool
}

var order = []Code{USD, EUR, JPY, KRW}

var table = map[Code]Info{
	USD: {Code: USD, Token: "usd", Symbol: "$", QuoteUnits: 1},
	EUR: {Code: EUR, Token: "eur", Symbol: "€", QuoteUnits: 1},
	JPY: {Code: JPY, Token: "jpy", Symbol: "¥", QuoteUnits: 100},
	KRW: {Code: KRW, Token: "krw", Symbol: "₩", QuoteUnits: 1, Home: true},
}

// Supported returns all known codes in display order.
func Supported() []Code {
	out := make([]Code, len(order))
	copy(out, order)
	return out
}

// Lookup returns the table entry for code.
func Lookup(code Code) (Info, error) {
	info, ok := table[code]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, string(code))
	}
	return info, nil
}

// Parse extracts a currency code from user or legacy ledger input. It accepts
// "usd", "USD" and decorated labels such as "🇺🇸 USD".
func Parse(s string) (Code, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, f := range fields {
		code := Code(strings.ToUpper(f))
		if _, ok := table[code]; ok {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
}

// String implements fmt.Stringer.
func (c Code) String() string {
	return string(c)
}

// Token returns the lowercase listing key, or "" for unknown codes.
func (c Code) Token() string {
	return table[c].Token
}

// IsHome reports whether c is the local currency.
func (c Code) IsHome() bool {
	return table[c].Home
}

// Convert turns a foreign amount into whole won. The result is truncated
// toward negative infinity, never rounded. For the home currency the rate is
// ignored.
func Convert(amount, rate decimal.Decimal, code Code) (int64, error) {
	info, err := Lookup(code)
	if err != nil {
		return 0, err
	}
	if info.Home {
		return amount.Floor().IntPart(), nil
	}

	local := amount.Mul(rate)
	if info.QuoteUnits > 1 {
		local = local.Div(decimal.NewFromInt(info.QuoteUnits))
	}
	return local.Floor().IntPart(), nil
}
