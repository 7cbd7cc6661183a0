package model

import (
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/shopspring/decimal"
)

// RateQuote is a fetched exchange rate. It is never persisted in a ledger.
type RateQuote struct {
	FetchedAt time.Time
	Rate      decimal.Decimal
	Currency  currency.Code
	Source    string
}

// Expired reports whether the quote is older than ttl at now.
func (q RateQuote) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.FetchedAt) >= ttl
}
