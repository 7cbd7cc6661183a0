package rates

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	err   error
	rate  decimal.Decimal
	calls int
}

func (f *countingFetcher) Fetch(_ context.Context, code currency.Code) (model.RateQuote, error) {
	f.calls++
	if f.err != nil {
		return model.RateQuote{}, f.err
	}
	return model.RateQuote{Currency: code, Rate: f.rate, FetchedAt: time.Now(), Source: "test"}, nil
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache(10 * time.Minute)
	defer cache.Close()

	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set(model.RateQuote{Currency: currency.USD, Rate: decimal.NewFromInt(1300), FetchedAt: now})

	got, ok := cache.Get(currency.USD)
	require.True(t, ok)
	assert.True(t, got.Rate.Equal(decimal.NewFromInt(1300)))

	_, ok = cache.Get(currency.EUR)
	assert.False(t, ok)

	now = now.Add(10 * time.Minute)
	_, ok = cache.Get(currency.USD)
	assert.False(t, ok, "quote must expire after the TTL")

	cache.evictExpired()
	assert.Equal(t, 0, cache.Size())
}

func TestCachedFetcher(t *testing.T) {
	next := &countingFetcher{rate: decimal.NewFromInt(1300)}
	cache := NewMemoryCache(time.Minute)
	defer cache.Close()

	fetcher := NewCachedFetcher(next, cache, common.Discard())

	for i := 0; i < 3; i++ {
		quote, err := fetcher.Fetch(context.Background(), currency.USD)
		require.NoError(t, err)
		assert.True(t, quote.Rate.Equal(decimal.NewFromInt(1300)))
	}
	assert.Equal(t, 1, next.calls)

	_, err := fetcher.Fetch(context.Background(), currency.EUR)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcher_DoesNotCacheFailures(t *testing.T) {
	next := &countingFetcher{err: errors.Join(ErrFetchFailed, errors.New("boom"))}
	cache := NewMemoryCache(time.Minute)
	defer cache.Close()

	fetcher := NewCachedFetcher(next, cache, common.Discard())

	_, err := fetcher.Fetch(context.Background(), currency.USD)
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, err = fetcher.Fetch(context.Background(), currency.USD)
	assert.ErrorIs(t, err, ErrFetchFailed)

	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, cache.Size())
}

func TestBoltCache_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "rates.db")
	fetched := time.Now().Add(-time.Minute)

	cache, err := NewBoltCache(path, 10*time.Minute, common.Discard())
	require.NoError(t, err)
	cache.Set(model.RateQuote{Currency: currency.JPY, Rate: decimal.RequireFromString("912.37"), FetchedAt: fetched, Source: "naver"})
	require.NoError(t, cache.Close())

	reopened, err := NewBoltCache(path, 10*time.Minute, common.Discard())
	require.NoError(t, err)
	defer reopened.Close()

	quote, ok := reopened.Get(currency.JPY)
	require.True(t, ok)
	assert.Equal(t, "912.37", quote.Rate.String())
	assert.Equal(t, "naver", quote.Source)
	assert.True(t, quote.FetchedAt.Equal(fetched))

	_, ok = reopened.Get(currency.USD)
	assert.False(t, ok)

	reopened.now = func() time.Time { return fetched.Add(11 * time.Minute) }
	_, ok = reopened.Get(currency.JPY)
	assert.False(t, ok)
}

func TestStaticFetcher(t *testing.T) {
	fetcher := NewStaticFetcher(map[currency.Code]decimal.Decimal{
		currency.USD: decimal.NewFromInt(1300),
		currency.EUR: decimal.Zero,
	})

	quote, err := fetcher.Fetch(context.Background(), currency.USD)
	require.NoError(t, err)
	assert.Equal(t, "static", quote.Source)

	quote, err = fetcher.Fetch(context.Background(), currency.KRW)
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.NewFromInt(1)))

	_, err = fetcher.Fetch(context.Background(), currency.EUR)
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, err = fetcher.Fetch(context.Background(), currency.JPY)
	assert.ErrorIs(t, err, ErrFetchFailed)
	_, err = fetcher.Fetch(context.Background(), currency.Code("XYZ"))
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, currency.ErrUnknownCurrency)
}
