package rates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
)

// DefaultTTL is how long a fetched quote is served from cache.
const DefaultTTL = 10 * time.Minute

// Cache stores quotes per currency. Get only returns unexpired quotes.
type Cache interface {
	Get(code currency.Code) (model.RateQuote, bool)
	Set(quote model.RateQuote)
}

// MemoryCache is a thread-safe in-process quote cache.
type MemoryCache struct {
	entries map[currency.Code]model.RateQuote
	now     func() time.Time
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// NewMemoryCache creates a cache with the given TTL and starts a janitor
// goroutine that drops expired quotes. Call Close to stop it.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache := &MemoryCache{
		entries: make(map[currency.Code]model.RateQuote),
		now:     time.Now,
		stopCh:  make(chan struct{}),
		ttl:     ttl,
	}

	go cache.cleanup()

	return cache
}

// Get implements Cache.
func (c *MemoryCache) Get(code currency.Code) (model.RateQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quote, ok := c.entries[code]
	if !ok || quote.Expired(c.now(), c.ttl) {
		return model.RateQuote{}, false
	}
	return quote, true
}

// Set implements Cache.
func (c *MemoryCache) Set(quote model.RateQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote.Currency] = quote
}

// Size returns the number of stored quotes, expired or not.
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for code, quote := range c.entries {
		if quote.Expired(now, c.ttl) {
			delete(c.entries, code)
		}
	}
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}

// CachedFetcher serves quotes from a Cache and falls through to the wrapped
// Fetcher on a miss. Failed fetches are never cached.
type CachedFetcher struct {
	next   Fetcher
	cache  Cache
	logger *slog.Logger
}

// NewCachedFetcher wraps next with cache.
func NewCachedFetcher(next Fetcher, cache Cache, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{next: next, cache: cache, logger: logger}
}

// Fetch implements Fetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, code currency.Code) (model.RateQuote, error) {
	if quote, ok := c.cache.Get(code); ok {
		c.logger.Debug("rate cache hit", "currency", code, "fetched_at", quote.FetchedAt)
		return quote, nil
	}

	quote, err := c.next.Fetch(ctx, code)
	if err != nil {
		return model.RateQuote{}, err
	}

	c.cache.Set(quote)
	return quote, nil
}
