package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/repository"
)

var _ repository.FileRepository = (*fileRepo)(nil)

type fileRepo struct {
	pool *pgxpool.Pool
}

func NewFileRepo(pool *pgxpool.Pool) *fileRepo {
	return &fileRepo{pool: pool}
}

func (r *fileRepo) Save(ctx context.Context, tx repository.Tx, f *model.UploadedFile) error {
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	headers := f.Headers
	if headers == nil {
		headers = []string{}
	}
	hb, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	cb, err := json.Marshal(f.Columns)
	if err != nil {
		return fmt.Errorf("marshal column map: %w", err)
	}

	const q = `
INSERT INTO uploaded_files (id, original_name, stored_path, headers, column_map, total_rows, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  original_name = EXCLUDED.original_name,
  stored_path = EXCLUDED.stored_path,
  headers = EXCLUDED.headers,
  column_map = EXCLUDED.column_map,
  total_rows = EXCLUDED.total_rows;`
	_, err = execSQL(ctx, r.pool, tx, q, f.ID, f.OriginalName, f.StoredPath, hb, cb, f.TotalRows, f.CreatedAt)
	return err
}

func (r *fileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UploadedFile, error) {
	const q = `
SELECT id, original_name, stored_path, headers, column_map, total_rows, created_at
FROM uploaded_files WHERE id=$1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var (
		f      model.UploadedFile
		hb, cb []byte
	)
	if err := row.Scan(&f.ID, &f.OriginalName, &f.StoredPath, &hb, &cb, &f.TotalRows, &f.CreatedAt); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(hb, &f.Headers); err != nil {
		return nil, fmt.Errorf("%w: headers: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(cb, &f.Columns); err != nil {
		return nil, fmt.Errorf("%w: column_map: %v", domain.ErrReadDatabaseRow, err)
	}
	return &f, nil
}

func (r *fileRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return expectOne(execSQL(ctx, r.pool, tx, `DELETE FROM uploaded_files WHERE id=$1`, id))
}
