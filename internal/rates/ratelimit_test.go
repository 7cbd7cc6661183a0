package rates

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Burst(t *testing.T) {
	l := NewLimiter(2)
	defer l.Close()

	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
}

func TestLimitedFetcher_CanceledWhileWaiting(t *testing.T) {
	l := NewLimiter(1)
	defer l.Close()
	require.True(t, l.TryAcquire())

	next := &countingFetcher{rate: decimal.NewFromInt(1300)}
	fetcher := NewLimitedFetcher(next, l)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, currency.USD)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, next.calls)
}

func TestLimitedFetcher_PassesThrough(t *testing.T) {
	l := NewLimiter(5)
	defer l.Close()

	next := &countingFetcher{rate: decimal.NewFromInt(1300)}
	quote, err := NewLimitedFetcher(next, l).Fetch(context.Background(), currency.USD)
	require.NoError(t, err)
	assert.Equal(t, currency.USD, quote.Currency)
	assert.Equal(t, 1, next.calls)
}
