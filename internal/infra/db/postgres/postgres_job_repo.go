package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `
id, file_id, settings, status, total_rows, processed_rows, error_count,
created_at, started_at, finished_at`

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	var settings interface{}
	if job.Settings != nil {
		b, err := json.Marshal(job.Settings)
		if err != nil {
			return fmt.Errorf("marshal job settings: %w", err)
		}
		settings = b
	}

	const q = `
INSERT INTO jobs (id, file_id, settings, status, total_rows, processed_rows, error_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.FileID, settings, string(job.Status), job.TotalRows, job.ProcessedRows, job.ErrorCount, job.CreatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindReusable(ctx context.Context, tx repository.Tx, fileID string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + `
FROM jobs WHERE file_id=$1 AND status <> 'failed'
ORDER BY created_at DESC LIMIT 1`
	row, err := pickRow(ctx, r.pool, tx, q, fileID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) List(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, tx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *jobRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	return r.list(ctx, tx, `SELECT `+jobColumns+` FROM jobs WHERE status IN ('queued', 'running') ORDER BY created_at ASC`)
}

func (r *jobRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Job, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) SetTotalRows(ctx context.Context, tx repository.Tx, id string, total int) error {
	return expectOne(execSQL(ctx, r.pool, tx, `UPDATE jobs SET total_rows=$2 WHERE id=$1`, id, total))
}

// SetStatus stamps started_at the first time a job runs and finished_at on terminal states.
func (r *jobRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.JobStatus) error {
	const q = `
UPDATE jobs SET
  status=$2,
  started_at=CASE WHEN $2='running' THEN COALESCE(started_at, now()) ELSE started_at END,
  finished_at=CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE finished_at END
WHERE id=$1;`
	return expectOne(execSQL(ctx, r.pool, tx, q, id, string(status)))
}

func (r *jobRepo) IncrementProcessed(ctx context.Context, tx repository.Tx, id string) error {
	return expectOne(execSQL(ctx, r.pool, tx, `UPDATE jobs SET processed_rows=processed_rows+1 WHERE id=$1`, id))
}

func (r *jobRepo) IncrementErrors(ctx context.Context, tx repository.Tx, id string) error {
	return expectOne(execSQL(ctx, r.pool, tx, `UPDATE jobs SET error_count=error_count+1 WHERE id=$1`, id))
}

func (r *jobRepo) CompleteIfDone(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `
UPDATE jobs SET status='completed', finished_at=now()
WHERE id=$1 AND total_rows > 0 AND processed_rows >= total_rows AND status <> 'completed';`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return expectOne(execSQL(ctx, r.pool, tx, `DELETE FROM jobs WHERE id=$1`, id))
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j        model.Job
		settings []byte
		status   string
	)
	if err := row.Scan(&j.ID, &j.FileID, &settings, &status, &j.TotalRows, &j.ProcessedRows, &j.ErrorCount,
		&j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Status = model.JobStatus(status)
	if len(settings) > 0 && string(settings) != "null" {
		var s model.JobSettings
		if err := json.Unmarshal(settings, &s); err != nil {
			return nil, fmt.Errorf("%w: settings: %v", domain.ErrReadDatabaseRow, err)
		}
		j.Settings = &s
	}
	return &j, nil
}
