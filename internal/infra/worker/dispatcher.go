package worker

import (
	"context"

	"coldmail-copywriter/internal/domain/ports/adapter"
)

// RowProcessor is anything that can run a single row to completion.
type RowProcessor interface {
	Process(ctx context.Context, prospectID string) error
}

var _ adapter.RowDispatcher = (*PoolDispatcher)(nil)

// PoolDispatcher runs rows on the in-process pool. Dispatch blocks while the
// queue is full, so rows are never dropped.
type PoolDispatcher struct {
	pool *Pool
	proc RowProcessor
}

func NewPoolDispatcher(pool *Pool, proc RowProcessor) *PoolDispatcher {
	return &PoolDispatcher{pool: pool, proc: proc}
}

func (d *PoolDispatcher) Dispatch(ctx context.Context, prospectID string) error {
	return d.pool.SubmitWait(ctx, func(ctx context.Context) error {
		return d.proc.Process(ctx, prospectID)
	})
}
