package rates

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
)

// DefaultNaverURL is the market index page listing won exchange rates.
const DefaultNaverURL = "https://finance.naver.com/marketindex/"

const userAgent = "Mozilla/5.0 (compatible; tripwallet/1.0)"

// NaverFetcher scrapes the Naver finance market index page.
type NaverFetcher struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
	url    string
}

// NewNaverFetcher creates a scraper. A nil client gets a 10 second timeout.
func NewNaverFetcher(client *http.Client, url string, logger *slog.Logger) *NaverFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if url == "" {
		url = DefaultNaverURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NaverFetcher{
		client: client,
		logger: logger,
		now:    time.Now,
		url:    url,
	}
}

// Selector returns the CSS selector of the rate node for a listing token.
func Selector(token string) string {
	return fmt.Sprintf("#exchangeList a.head.%s > div > span.value", token)
}

// Fetch implements Fetcher. The home currency never touches the network.
func (f *NaverFetcher) Fetch(ctx context.Context, code currency.Code) (model.RateQuote, error) {
	info, err := currency.Lookup(code)
	if err != nil {
		return model.RateQuote{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if info.Home {
		return homeQuote(code, f.now()), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return model.RateQuote{}, fmt.Errorf("%w: build request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return model.RateQuote{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	f.logger.Debug("fetched rate page", "url", f.url, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return model.RateQuote{}, fmt.Errorf("%w: GET %s: %s", ErrFetchFailed, f.url, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.RateQuote{}, fmt.Errorf("%w: parse page: %w", ErrFetchFailed, err)
	}

	node := doc.Find(Selector(info.Token)).First()
	if node.Length() == 0 {
		return model.RateQuote{}, fmt.Errorf("%w: no rate node for %s", ErrFetchFailed, code)
	}

	rate, err := ParseRate(node.Text())
	if err != nil {
		return model.RateQuote{}, err
	}

	return model.RateQuote{
		Currency:  code,
		Rate:      rate,
		FetchedAt: f.now(),
		Source:    "naver",
	}, nil
}
