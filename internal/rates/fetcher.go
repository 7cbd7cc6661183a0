package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/shopspring/decimal"
)

// ErrFetchFailed covers every way a rate lookup can fail: transport errors,
// bad status codes, missing or malformed markup, unknown currencies.
var ErrFetchFailed = errors.New("exchange rate fetch failed")

// Fetcher returns the current rate for a currency. A nil error always comes
// with a strictly positive rate.
type Fetcher interface {
	Fetch(ctx context.Context, code currency.Code) (model.RateQuote, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, code currency.Code) (model.RateQuote, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, code currency.Code) (model.RateQuote, error) {
	return f(ctx, code)
}

// ParseRate parses a listed rate such as "1,385.50".
func ParseRate(text string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty rate text", ErrFetchFailed)
	}

	rate, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse %q: %w", ErrFetchFailed, text, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", ErrFetchFailed, rate)
	}
	return rate, nil
}

func homeQuote(code currency.Code, now time.Time) model.RateQuote {
	return model.RateQuote{
		Currency:  code,
		Rate:      decimal.NewFromInt(1),
		FetchedAt: now,
		Source:    "home",
	}
}

// StaticFetcher serves fixed rates, typically from configuration.
type StaticFetcher struct {
	rates map[currency.Code]decimal.Decimal
	now   func() time.Time
}

// NewStaticFetcher creates a fetcher for the given rates.
func NewStaticFetcher(rates map[currency.Code]decimal.Decimal) *StaticFetcher {
	copied := make(map[currency.Code]decimal.Decimal, len(rates))
	for code, rate := range rates {
		copied[code] = rate
	}
	return &StaticFetcher{rates: copied, now: time.Now}
}

// Fetch implements Fetcher.
func (s *StaticFetcher) Fetch(_ context.Context, code currency.Code) (model.RateQuote, error) {
	info, err := currency.Lookup(code)
	if err != nil {
		return model.RateQuote{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if info.Home {
		return homeQuote(code, s.now()), nil
	}

	rate, ok := s.rates[code]
	if !ok || !rate.IsPositive() {
		return model.RateQuote{}, fmt.Errorf("%w: no static rate for %s", ErrFetchFailed, code)
	}

	return model.RateQuote{
		Currency:  code,
		Rate:      rate,
		FetchedAt: s.now(),
		Source:    "static",
	}, nil
}
