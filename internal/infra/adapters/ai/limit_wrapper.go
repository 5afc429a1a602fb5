package ai

import (
	"context"

	"golang.org/x/sync/semaphore"

	"coldmail-copywriter/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

// limitedAI caps in-flight provider calls across all workers and repair calls.
type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   *semaphore.Weighted
}

func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}

func (l *limitedAI) ChatWithUsage(ctx context.Context, model, requestID string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", adapter.Usage{}, err
	}
	defer l.sem.Release(1)
	return l.inner.ChatWithUsage(ctx, model, requestID, messages)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, model, messages)
}
