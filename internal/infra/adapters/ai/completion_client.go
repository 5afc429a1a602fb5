package ai

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/infra/metrics"
)

var _ adapter.CompletionClient = (*CompletionClient)(nil)

const SystemPrompt = "You are an expert B2B cold email copywriter."

type CompletionOptions struct {
	Model       string
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Timeout applies to each attempt on its own.
	Timeout time.Duration
}

// CompletionClient sends one prompt per call and retries transient provider failures
// with exponential backoff.
type CompletionClient struct {
	ai   adapter.AIServiceAdapter
	opts CompletionOptions
	log  zerolog.Logger
}

func NewCompletionClient(ai adapter.AIServiceAdapter, opts CompletionOptions, logger *zerolog.Logger) *CompletionClient {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 4
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 8 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &CompletionClient{
		ai:   ai,
		opts: opts,
		log:  logger.With().Str("component", "CompletionClient").Logger(),
	}
}

func (c *CompletionClient) Generate(ctx context.Context, prompt, requestID string) (string, error) {
	msgs := []adapter.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: prompt},
	}
	attempts := 0

	text, err := retry.DoWithData(
		func() (string, error) {
			attempts++
			return c.attempt(ctx, requestID, msgs)
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.MaxAttempts),
		retry.Delay(c.opts.BaseDelay),
		retry.MaxDelay(c.opts.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && transient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			metrics.IncAIRetry(retryReason(err))
			c.log.Warn().Err(err).
				Str("request_id", requestID).
				Uint("attempt", n+1).
				Msg("completion attempt failed; retrying")
		}),
	)
	if err != nil {
		metrics.IncCompletion("failed")
		ce := &domain.CompletionError{RequestID: requestID, Attempts: attempts, Err: err}
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			ce.StatusCode = pe.StatusCode
		}
		return "", ce
	}
	metrics.IncCompletion("ok")
	return text, nil
}

func (c *CompletionClient) attempt(ctx context.Context, requestID string, msgs []adapter.Message) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	text, usage, err := c.ai.ChatWithUsage(actx, c.opts.Model, requestID, msgs)
	metrics.ObserveChatUsage(c.ai.Name(), c.opts.Model, usage.PromptTokens, usage.CompletionTokens,
		time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		// a per-attempt deadline is a timeout, not a caller cancellation
		if actx.Err() != nil && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyCompletion
	}
	return text, nil
}

// transient reports whether a failed attempt is worth another try:
// rate limits, server errors, timeouts and empty answers.
func transient(err error) bool {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrEmptyCompletion) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func retryReason(err error) string {
	var pe *domain.ProviderError
	switch {
	case errors.As(err, &pe) && pe.StatusCode == 429:
		return "rate_limited"
	case errors.As(err, &pe):
		return "server_error"
	case errors.Is(err, domain.ErrEmptyCompletion):
		return "empty"
	default:
		return "timeout"
	}
}
