package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DefaultPageCacheTTL is how long a cached reference page stays fresh.
const DefaultPageCacheTTL = 7 * 24 * time.Hour

// SavePage upserts a fetched reference page.
func (db *DB) SavePage(ctx context.Context, url, rawHTML, parsedText string, httpStatus int) (*CachedPage, error) {
	var page CachedPage
	err := db.pool.QueryRow(ctx,
		`INSERT INTO reference_pages (url, raw_html, parsed_text, http_status, fetched_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (url) DO UPDATE SET raw_html = $2, parsed_text = $3, http_status = $4, fetched_at = NOW()
		 RETURNING id, url, raw_html, parsed_text, http_status, fetched_at`,
		url, nullIfEmpty(rawHTML), nullIfEmpty(parsedText), httpStatus,
	).Scan(&page.ID, &page.URL, &page.RawHTML, &page.ParsedText, &page.HTTPStatus, &page.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save page: %w", err)
	}
	return &page, nil
}

// GetFreshPage returns the cached page for url if it was fetched within ttl,
// or nil when the cache misses.
func (db *DB) GetFreshPage(ctx context.Context, url string, ttl time.Duration) (*CachedPage, error) {
	cutoff := time.Now().Add(-ttl)

	var page CachedPage
	err := db.pool.QueryRow(ctx,
		`SELECT id, url, raw_html, parsed_text, http_status, fetched_at
		 FROM reference_pages WHERE url = $1 AND fetched_at > $2`,
		url, cutoff,
	).Scan(&page.ID, &page.URL, &page.RawHTML, &page.ParsedText, &page.HTTPStatus, &page.FetchedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check page cache: %w", err)
	}
	return &page, nil
}
