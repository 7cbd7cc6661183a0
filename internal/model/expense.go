package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/shopspring/decimal"
)

// DateFormat is the calendar date layout used in ledgers.
const DateFormat = "2006-01-02"

// ExpenseRecord is a single ledger row.
type ExpenseRecord struct {
	Date          time.Time
	ForeignAmount decimal.Decimal
	Rate          decimal.Decimal // rate at the time the expense was recorded
	ID            string
	Payer         string // empty when the ledger has no member set
	Description   string
	Currency      currency.Code
	LocalAmount   int64
}

// GenerateHash derives a stable identifier from the row contents and its
// position. It is used for legacy rows that were written without an ID.
func (r *ExpenseRecord) GenerateHash(position int) string {
	data := fmt.Sprintf("%d:%s:%s:%s:%s:%s:%s:%d",
		position,
		r.Date.Format(DateFormat),
		r.Payer,
		r.Description,
		r.Currency,
		r.ForeignAmount.String(),
		r.Rate.String(),
		r.LocalAmount)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("legacy-%x", hash[:8])
}

// DateString returns the record date in ledger format.
func (r ExpenseRecord) DateString() string {
	return r.Date.Format(DateFormat)
}
