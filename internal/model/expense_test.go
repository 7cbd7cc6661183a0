package model

import (
	"testing"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExpenseRecord_GenerateHash(t *testing.T) {
	base := ExpenseRecord{
		Date:          time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Description:   "coffee",
		Currency:      currency.USD,
		ForeignAmount: decimal.NewFromInt(10),
		Rate:          decimal.NewFromInt(1300),
		LocalAmount:   13000,
	}

	tests := []struct {
		name     string
		mutate   func(r *ExpenseRecord)
		position int
		wantSame bool
	}{
		{name: "identical rows at same position", mutate: func(*ExpenseRecord) {}, position: 0, wantSame: true},
		{name: "same row at another position", mutate: func(*ExpenseRecord) {}, position: 1, wantSame: false},
		{name: "different description", mutate: func(r *ExpenseRecord) { r.Description = "tea" }, position: 0, wantSame: false},
		{name: "different payer", mutate: func(r *ExpenseRecord) { r.Payer = "minji" }, position: 0, wantSame: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)

			h1 := base.GenerateHash(0)
			h2 := other.GenerateHash(tt.position)
			assert.Equal(t, tt.wantSame, h1 == h2)
			assert.Equal(t, h1, base.GenerateHash(0), "hash must be stable")
			assert.Contains(t, h1, "legacy-")
		})
	}
}

func TestRateQuote_Expired(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	q := RateQuote{FetchedAt: now.Add(-9 * time.Minute)}

	assert.False(t, q.Expired(now, 10*time.Minute))
	assert.True(t, q.Expired(now.Add(time.Minute), 10*time.Minute))
}
