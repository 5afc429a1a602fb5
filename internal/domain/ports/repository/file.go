package repository

import (
	"context"

	"coldmail-copywriter/internal/domain/model"
)

type FileRepository interface {
	Save(ctx context.Context, tx Tx, f *model.UploadedFile) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.UploadedFile, error)
	// Delete removes the file record; its jobs and rows go with it.
	Delete(ctx context.Context, tx Tx, id string) error
}
