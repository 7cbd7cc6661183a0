// Package rates fetches exchange rates against the won. It provides a scraper
// for the Naver finance market index page, a fixed-rate fetcher for offline
// use, and wrappers for TTL caching (in memory or on disk) and outbound rate
// limiting.
package rates
