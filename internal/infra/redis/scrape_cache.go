package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/infra/metrics"
)

var _ adapter.Scraper = (*scrapeCacheDecorator)(nil)

// scrapeCacheDecorator remembers successful scrapes; failures are never cached
// so a flaky site gets another chance on the next row.
type scrapeCacheDecorator struct {
	inner adapter.Scraper
	cache RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewScrapeCacheDecorator(inner adapter.Scraper, cache RedisClient, ttl time.Duration, logger *zerolog.Logger) adapter.Scraper {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &scrapeCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "ScrapeCache").Logger(),
	}
}

func scrapeKey(url string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(url))))
	return "scrape:" + hex.EncodeToString(sum[:])
}

func (d *scrapeCacheDecorator) Scrape(ctx context.Context, url string) (string, error) {
	key := scrapeKey(url)
	val, err := d.cache.Get(ctx, key)
	if err == nil && val != "" {
		metrics.IncCacheRequest("scrape", "hit")
		return val, nil
	}
	if err != nil && !errors.Is(err, Nil) {
		d.log.Warn().Err(err).Msg("scrape cache read failed")
	}

	metrics.IncCacheRequest("scrape", "miss")
	text, err := d.inner.Scrape(ctx, url)
	if err != nil {
		return "", err
	}
	if err := d.cache.Set(ctx, key, text, d.ttl); err != nil {
		d.log.Warn().Err(err).Msg("scrape cache write failed")
	}
	return text, nil
}
