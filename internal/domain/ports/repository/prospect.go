package repository

import (
	"context"
	"time"

	"coldmail-copywriter/internal/domain/model"
)

type ProspectRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Prospect, error)
	// InsertBatch writes all rows of a job; callers run it inside a transaction.
	InsertBatch(ctx context.Context, tx Tx, rows []*model.Prospect) (int, error)
	// MarkRunning moves a queued row to running. MarkCompleted and MarkFailed
	// only finish running rows. Each returns ErrNotFound when no row moved.
	MarkRunning(ctx context.Context, tx Tx, id string) error
	MarkCompleted(ctx context.Context, tx Tx, id string, res model.ProspectResult) error
	MarkFailed(ctx context.Context, tx Tx, id, reason string) error
	// ListQueuedIDs returns queued rows of a job ordered by row index.
	ListQueuedIDs(ctx context.Context, tx Tx, jobID string) ([]string, error)
	ListByJob(ctx context.Context, tx Tx, jobID string, offset, limit int) ([]*model.Prospect, error)
	// RequeueStale moves rows stuck in 'running' since before cutoff back to 'queued'
	// and returns the affected job IDs.
	RequeueStale(ctx context.Context, tx Tx, cutoff time.Time) ([]string, error)
	DeleteByJob(ctx context.Context, tx Tx, jobID string) error
}
