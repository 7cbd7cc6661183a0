// Package testutil provides shared fixtures and contract tests for the
// tripwallet packages.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Record returns a deterministic USD expense numbered n.
func Record(n int) model.ExpenseRecord {
	amount := decimal.NewFromInt(int64(n + 1))
	rate := decimal.RequireFromString("1385.5")
	local, _ := currency.Convert(amount, rate, currency.USD)

	return model.ExpenseRecord{
		ID:            fmt.Sprintf("rec-%03d", n),
		Date:          time.Date(2025, 3, n%28+1, 0, 0, 0, 0, time.UTC),
		Payer:         "minji",
		Description:   fmt.Sprintf("item %d", n),
		Currency:      currency.USD,
		ForeignAmount: amount,
		Rate:          rate,
		LocalAmount:   local,
	}
}

// AssertRecordEqual compares records field by field; decimals and times
// do not compare reliably with assert.Equal.
func AssertRecordEqual(t *testing.T, want, got model.ExpenseRecord) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID, "id")
	assert.True(t, want.Date.Equal(got.Date), "date: want %s got %s", want.Date, got.Date)
	assert.Equal(t, want.Payer, got.Payer, "payer")
	assert.Equal(t, want.Description, got.Description, "description")
	assert.Equal(t, want.Currency, got.Currency, "currency")
	assert.True(t, want.ForeignAmount.Equal(got.ForeignAmount), "foreign amount: want %s got %s", want.ForeignAmount, got.ForeignAmount)
	assert.True(t, want.Rate.Equal(got.Rate), "rate: want %s got %s", want.Rate, got.Rate)
	assert.Equal(t, want.LocalAmount, got.LocalAmount, "local amount")
}

// AssertRecordsEqual compares two ledgers in order.
func AssertRecordsEqual(t *testing.T, want, got []model.ExpenseRecord) {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return
	}
	for i := range want {
		AssertRecordEqual(t, want[i], got[i])
	}
}
