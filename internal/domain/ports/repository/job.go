package repository

import (
	"context"

	"coldmail-copywriter/internal/domain/model"
)

type JobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	// FindReusable returns the newest non-failed job started from fileID.
	FindReusable(ctx context.Context, tx Tx, fileID string) (*model.Job, error)
	List(ctx context.Context, tx Tx, limit int) ([]*model.Job, error)
	// ListActive returns queued and running jobs.
	ListActive(ctx context.Context, tx Tx) ([]*model.Job, error)
	SetTotalRows(ctx context.Context, tx Tx, id string, total int) error
	SetStatus(ctx context.Context, tx Tx, id string, status model.JobStatus) error
	IncrementProcessed(ctx context.Context, tx Tx, id string) error
	IncrementErrors(ctx context.Context, tx Tx, id string) error
	// CompleteIfDone flips the job to completed once every row is processed.
	// It reports whether this call made the transition.
	CompleteIfDone(ctx context.Context, tx Tx, id string) (bool, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
