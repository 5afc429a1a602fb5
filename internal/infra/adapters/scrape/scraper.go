// Package scrape turns a company or activity URL into readable page text
// for prompt personalization.
package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/infra/metrics"
)

var _ adapter.Scraper = (*Scraper)(nil)

// Fetcher loads one page, optionally through a proxy.
type Fetcher interface {
	Fetch(ctx context.Context, target, proxyURL string) (Page, error)
}

type Options struct {
	Concurrency     int
	Timeout         time.Duration
	MaxChars        int
	ProxyURL        string
	RotationMinutes int
	ProxyMaxRetries int
	RetryDelay      time.Duration
	PerHostRPS      float64
}

// Scraper runs scrapes through a bounded queue, separate from the generation workers.
// The browser pass is retried with a fresh proxy session per attempt; when it
// still fails the page is fetched once more over plain HTTP.
type Scraper struct {
	browser Fetcher
	http    Fetcher
	sem     *semaphore.Weighted
	limiter *HostLimiter
	opts    Options
	log     zerolog.Logger
}

// NewScraper accepts a nil browser, in which case only the HTTP fetcher is used.
func NewScraper(opts Options, browser, http Fetcher, logger *zerolog.Logger) *Scraper {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 6000
	}
	if opts.RotationMinutes <= 0 {
		opts.RotationMinutes = 5
	}
	if opts.ProxyMaxRetries < 0 {
		opts.ProxyMaxRetries = 0
	}
	return &Scraper{
		browser: browser,
		http:    http,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter: NewHostLimiter(opts.PerHostRPS, 1),
		opts:    opts,
		log:     logger.With().Str("component", "Scraper").Logger(),
	}
}

func (s *Scraper) Scrape(ctx context.Context, raw string) (string, error) {
	target, err := EnsureHTTPURL(raw)
	if err != nil {
		return "", &domain.ScrapeError{URL: raw, Reason: "invalid url", Err: err}
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", &domain.ScrapeError{URL: target, Reason: "cancelled", Err: err}
	}
	defer s.sem.Release(1)

	if err := s.limiter.WaitURL(ctx, target); err != nil {
		return "", &domain.ScrapeError{URL: target, Reason: "cancelled", Err: err}
	}

	start := time.Now()
	text, method, err := s.run(ctx, target)
	result := "ok"
	switch {
	case err != nil:
		result = "failed"
	case LooksUnreachable(text):
		result = "unreachable"
		text, err = "", &domain.ScrapeError{URL: target, Reason: "unreachable or parked page"}
	}
	metrics.ObserveScrape(method, result, time.Since(start).Milliseconds())
	if err != nil {
		s.log.Debug().Err(err).Str("url", target).Str("method", method).Msg("scrape failed")
		return "", err
	}
	return text, nil
}

func (s *Scraper) run(ctx context.Context, target string) (string, string, error) {
	if s.browser != nil {
		text, err := s.viaBrowser(ctx, target)
		if err == nil {
			return text, "browser", nil
		}
		if ctx.Err() != nil {
			return "", "browser", err
		}
		s.log.Warn().Err(err).Str("url", target).Msg("browser scrape failed; trying plain http")
	}
	text, err := s.once(ctx, s.http, target, s.proxyFor("url_http", target, 0))
	return text, "http", err
}

func (s *Scraper) viaBrowser(ctx context.Context, target string) (string, error) {
	attempts := uint(1)
	if s.opts.ProxyURL != "" {
		attempts += uint(s.opts.ProxyMaxRetries)
	}
	attempt := 0
	return retry.DoWithData(
		func() (string, error) {
			proxy := s.proxyFor("url", target, attempt)
			attempt++
			return s.once(ctx, s.browser, target, proxy)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (s *Scraper) proxyFor(prefix, target string, attempt int) string {
	if s.opts.ProxyURL == "" {
		return ""
	}
	return ProxyURLForSession(s.opts.ProxyURL, BuildSessionID(prefix, target, s.opts.RotationMinutes, attempt))
}

// once fetches a page under its own timeout and rejects thin results.
func (s *Scraper) once(ctx context.Context, f Fetcher, target, proxy string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	p, err := f.Fetch(actx, target, proxy)
	if err != nil {
		reason := "fetch failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		return "", &domain.ScrapeError{URL: target, Reason: reason, Err: err}
	}
	text := format(p, s.opts.MaxChars)
	if thin(text) {
		return "", &domain.ScrapeError{URL: target, Reason: "thin content"}
	}
	return text, nil
}
