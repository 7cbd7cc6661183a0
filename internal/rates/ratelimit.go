package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
)

// Limiter is a token bucket refilled one token at a time.
type Limiter struct {
	stopCh   chan struct{}
	tokens   int
	capacity int
	interval time.Duration
	mu       sync.Mutex
	once     sync.Once
}

// NewLimiter allows requestsPerMinute requests, bursting up to the same number.
func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}

	l := &Limiter{
		stopCh:   make(chan struct{}),
		tokens:   requestsPerMinute,
		capacity: requestsPerMinute,
		interval: time.Minute / time.Duration(requestsPerMinute),
	}

	go l.refill()

	return l
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.TryAcquire() {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
			if l.TryAcquire() {
				return nil
			}
		}
	}
}

// TryAcquire takes a token without blocking.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

func (l *Limiter) refill() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.mu.Lock()
			if l.tokens < l.capacity {
				l.tokens++
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the refill goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stopCh) })
}

// LimitedFetcher waits on a Limiter before every fetch.
type LimitedFetcher struct {
	next    Fetcher
	limiter *Limiter
}

// NewLimitedFetcher wraps next with limiter.
func NewLimitedFetcher(next Fetcher, limiter *Limiter) *LimitedFetcher {
	return &LimitedFetcher{next: next, limiter: limiter}
}

// Fetch implements Fetcher.
func (f *LimitedFetcher) Fetch(ctx context.Context, code currency.Code) (model.RateQuote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return model.RateQuote{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return f.next.Fetch(ctx, code)
}
