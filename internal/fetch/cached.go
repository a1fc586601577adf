// Package fetch - cached.go provides URL fetching with database-backed caching.
package fetch

import (
	"context"
	"time"

	"github.com/jonathan/scaffold-agent/internal/db"
)

// CachedFetcher wraps URL fetching with database-backed caching. With a nil
// database it degrades to plain fetching.
type CachedFetcher struct {
	db        *db.DB
	options   *Options
	cacheTTL  time.Duration
	skipCache bool // For testing or forcing fresh fetches
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL:  db.DefaultPageCacheTTL, // 7 days
		SkipCache: false,
		Options:   DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher.
func NewCachedFetcher(database *db.DB, config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = db.DefaultPageCacheTTL
	}
	return &CachedFetcher{
		db:        database,
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool // Whether this result came from cache
}

// Fetch retrieves a URL, using cache if available and fresh. Cached content
// within the TTL is returned as-is; otherwise the page is fetched, parsed
// with selectors matched to its source, and written back to the cache.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	if !f.skipCache && f.db != nil {
		cached, err := f.db.GetFreshPage(ctx, urlStr, f.cacheTTL)
		if err == nil && cached != nil {
			return &CachedResult{
				Result: &Result{
					URL:        cached.URL,
					HTML:       derefString(cached.RawHTML),
					Text:       derefString(cached.ParsedText),
					StatusCode: derefInt(cached.HTTPStatus),
				},
				FromCache: true,
			}, nil
		}
		// Cache errors degrade to a fresh fetch.
	}

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		return nil, err
	}

	selectors := SourceContentSelectors(DetectSource(urlStr))
	text, _ := ExtractMainText(result.HTML, selectors)
	result.Text = text

	if f.db != nil {
		// The fetch succeeded; a cache write failure is not worth surfacing.
		_, _ = f.db.SavePage(ctx, urlStr, result.HTML, result.Text, result.StatusCode)
	}

	return &CachedResult{
		Result:    result,
		FromCache: false,
	}, nil
}

// FetchMultiple fetches multiple URLs with caching. Returns results in the
// same order as input URLs. Failed fetches are nil in the result slice.
func (f *CachedFetcher) FetchMultiple(ctx context.Context, urls []string) ([]*CachedResult, []error) {
	results := make([]*CachedResult, len(urls))
	errors := make([]error, len(urls))

	for i, url := range urls {
		result, err := f.Fetch(ctx, url)
		if err != nil {
			errors[i] = err
		} else {
			results[i] = result
		}
	}

	return results, errors
}

// Helper functions

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
