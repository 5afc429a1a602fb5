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

var _ repository.ProspectRepository = (*prospectRepo)(nil)

type prospectRepo struct {
	pool *pgxpool.Pool
}

func NewProspectRepo(pool *pgxpool.Pool) *prospectRepo {
	return &prospectRepo{pool: pool}
}

const prospectColumns = `
id, job_id, file_id, row_index, status, COALESCE(error, ''),
first_name, last_name, email, company, website, activity_context, original_row,
scraped_content, subject, email_body, follow_ups, created_at, updated_at`

var prospectCopyColumns = []string{
	"id", "job_id", "file_id", "row_index", "status",
	"first_name", "last_name", "email", "company", "website", "activity_context",
	"original_row", "created_at", "updated_at",
}

func (r *prospectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Prospect, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+prospectColumns+` FROM prospects WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	return scanProspect(row)
}

// InsertBatch streams every row with COPY; it is all-or-nothing inside tx.
func (r *prospectRepo) InsertBatch(ctx context.Context, tx repository.Tx, rows []*model.Prospect) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	src := make([][]interface{}, 0, len(rows))
	for _, p := range rows {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Status == "" {
			p.Status = model.ProspectStatusQueued
		}
		p.CreatedAt, p.UpdatedAt = now, now
		orig := p.OriginalRow
		if orig == nil {
			orig = map[string]string{}
		}
		origJSON, err := json.Marshal(orig)
		if err != nil {
			return 0, fmt.Errorf("marshal original row %d: %w", p.RowIndex, err)
		}
		src = append(src, []interface{}{
			p.ID, p.JobID, p.FileID, p.RowIndex, string(p.Status),
			p.FirstName, p.LastName, p.Email, p.Company, p.Website, p.ActivityContext,
			origJSON, p.CreatedAt, p.UpdatedAt,
		})
	}

	n, err := ex.CopyFrom(ctx, pgx.Identifier{"prospects"}, prospectCopyColumns, pgx.CopyFromRows(src))
	if err != nil {
		return 0, fmt.Errorf("copy prospects: %w", err)
	}
	return int(n), nil
}

// MarkRunning claims a queued row. A row in any other state yields ErrNotFound.
func (r *prospectRepo) MarkRunning(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE prospects SET status='running', error=NULL, updated_at=now()
WHERE id=$1 AND status='queued';`
	return expectOne(execSQL(ctx, r.pool, tx, q, id))
}

func (r *prospectRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id string, res model.ProspectResult) error {
	followUps := res.Sequence.FollowUps
	if followUps == nil {
		followUps = []model.Email{}
	}
	fuJSON, err := json.Marshal(followUps)
	if err != nil {
		return fmt.Errorf("marshal follow-ups: %w", err)
	}
	const q = `
UPDATE prospects SET
  status='completed', error=NULL,
  scraped_content=$2, subject=$3, email_body=$4, follow_ups=$5,
  updated_at=now()
WHERE id=$1 AND status='running';`
	return expectOne(execSQL(ctx, r.pool, tx, q,
		id, res.ScrapedContent, res.Sequence.Initial.Subject, res.Sequence.Initial.Body, fuJSON))
}

func (r *prospectRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) error {
	const q = `UPDATE prospects SET status='failed', error=$2, updated_at=now() WHERE id=$1 AND status='running';`
	return expectOne(execSQL(ctx, r.pool, tx, q, id, reason))
}

func (r *prospectRepo) ListQueuedIDs(ctx context.Context, tx repository.Tx, jobID string) ([]string, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT id FROM prospects WHERE job_id=$1 AND status='queued' ORDER BY row_index ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByJob pages rows in row order; limit <= 0 returns everything from offset.
func (r *prospectRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID string, offset, limit int) ([]*model.Prospect, error) {
	if offset < 0 {
		offset = 0
	}
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT `+prospectColumns+` FROM prospects WHERE job_id=$1 ORDER BY row_index ASC OFFSET $2 LIMIT $3`,
		jobID, offset, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *prospectRepo) RequeueStale(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]string, error) {
	const q = `
UPDATE prospects SET status='queued', updated_at=now()
WHERE status='running' AND updated_at < $1
RETURNING job_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	var jobIDs []string
	for rows.Next() {
		var jobID string
		if err := rows.Scan(&jobID); err != nil {
			return nil, err
		}
		if !seen[jobID] {
			seen[jobID] = true
			jobIDs = append(jobIDs, jobID)
		}
	}
	return jobIDs, rows.Err()
}

func (r *prospectRepo) DeleteByJob(ctx context.Context, tx repository.Tx, jobID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM prospects WHERE job_id=$1`, jobID)
	return err
}

func scanProspect(row pgx.Row) (*model.Prospect, error) {
	var (
		p       model.Prospect
		status  string
		origRaw []byte
		fuRaw   []byte
	)
	if err := row.Scan(
		&p.ID, &p.JobID, &p.FileID, &p.RowIndex, &status, &p.Error,
		&p.FirstName, &p.LastName, &p.Email, &p.Company, &p.Website, &p.ActivityContext, &origRaw,
		&p.ScrapedContent, &p.Subject, &p.EmailBody, &fuRaw, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	p.Status = model.ProspectStatus(status)
	if len(origRaw) > 0 {
		if err := json.Unmarshal(origRaw, &p.OriginalRow); err != nil {
			return nil, fmt.Errorf("%w: original_row: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if len(fuRaw) > 0 {
		if err := json.Unmarshal(fuRaw, &p.FollowUps); err != nil {
			return nil, fmt.Errorf("%w: follow_ups: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &p, nil
}

// expectOne turns an UPDATE that touched nothing into ErrNotFound.
func expectOne(tag interface{ RowsAffected() int64 }, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
