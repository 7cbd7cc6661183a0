package rates

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

const bucketQuotes = "quotes"

// BoltCache persists quotes to a bbolt file so separate CLI invocations
// share them.
type BoltCache struct {
	db     *bolt.DB
	logger *slog.Logger
	now    func() time.Time
	ttl    time.Duration
}

type storedQuote struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Rate      decimal.Decimal `json:"rate"`
	Currency  currency.Code   `json:"currency"`
	Source    string          `json:"source"`
}

// NewBoltCache opens (or creates) the cache file at path.
func NewBoltCache(path string, ttl time.Duration, logger *slog.Logger) (*BoltCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open rate cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketQuotes))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketQuotes, err)
	}

	return &BoltCache{db: db, logger: logger, now: time.Now, ttl: ttl}, nil
}

// Get implements Cache. Read errors count as a miss.
func (c *BoltCache) Get(code currency.Code) (model.RateQuote, bool) {
	var stored storedQuote
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketQuotes)).Get([]byte(code))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Warn("rate cache read failed", "currency", code, "error", err)
		return model.RateQuote{}, false
	}
	if !found {
		return model.RateQuote{}, false
	}

	quote := model.RateQuote{
		FetchedAt: stored.FetchedAt,
		Rate:      stored.Rate,
		Currency:  stored.Currency,
		Source:    stored.Source,
	}
	if quote.Expired(c.now(), c.ttl) {
		return model.RateQuote{}, false
	}
	return quote, true
}

// Set implements Cache. Write errors are logged, not returned.
func (c *BoltCache) Set(quote model.RateQuote) {
	data, err := json.Marshal(storedQuote{
		FetchedAt: quote.FetchedAt,
		Rate:      quote.Rate,
		Currency:  quote.Currency,
		Source:    quote.Source,
	})
	if err != nil {
		c.logger.Warn("rate cache encode failed", "currency", quote.Currency, "error", err)
		return
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketQuotes)).Put([]byte(quote.Currency), data)
	})
	if err != nil {
		c.logger.Warn("rate cache write failed", "currency", quote.Currency, "error", err)
	}
}

// Close closes the underlying database.
func (c *BoltCache) Close() error {
	return c.db.Close()
}
