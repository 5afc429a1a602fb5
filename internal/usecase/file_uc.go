// File: internal/usecase/file_uc.go
package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/repository"
	"coldmail-copywriter/internal/infra/logging"
)

// Compile-time check
var _ FileUseCase = (*fileUC)(nil)

const previewRows = 20

type FileUseCase interface {
	// Upload stores a prospect list and returns its record with a preview.
	Upload(ctx context.Context, name string, r io.Reader) (*UploadResult, error)
	Get(ctx context.Context, id string) (*model.UploadedFile, error)
	// SampleCSV is a two-row template showing the expected columns.
	SampleCSV() ([]byte, error)
}

type UploadResult struct {
	File    *model.UploadedFile `json:"file"`
	Preview []map[string]string `json:"preview"`
}

// RowValidationError lists rows that lack required values.
type RowValidationError struct {
	Issues []model.RowIssue
}

func (e *RowValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "row validation failed"
	}
	first := e.Issues[0]
	var details []string
	if len(first.MissingRequired) > 0 {
		details = append(details, "missing required values: "+strings.Join(first.MissingRequired, ", "))
	}
	if first.MissingContext {
		details = append(details, "must include either Website / Activity URL OR Activity Context")
	}
	return fmt.Sprintf("row validation failed at row %d: %s", first.RowIndex, strings.Join(details, "; "))
}

func (e *RowValidationError) Unwrap() error { return domain.ErrInvalidArgument }

type fileUC struct {
	files    repository.FileRepository
	dir      string
	maxBytes int64
	log      *zerolog.Logger
}

func NewFileUseCase(files repository.FileRepository, dir string, maxBytes int64, logger *zerolog.Logger) *fileUC {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	compLog := logger.With().Str("component", "FileUC").Logger()
	return &fileUC{files: files, dir: dir, maxBytes: maxBytes, log: &compLog}
}

func (u *fileUC) Upload(ctx context.Context, name string, r io.Reader) (res *UploadResult, err error) {
	defer logging.TraceDuration(u.log, "FileUC.Upload")()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
	case ".xlsx", ".xls":
		return nil, fmt.Errorf("%w: export the sheet as .csv before uploading", domain.ErrUnsupportedFile)
	default:
		return nil, fmt.Errorf("%w: only .csv uploads are supported", domain.ErrUnsupportedFile)
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	id := ulid.Make().String()
	stored := filepath.Join(u.dir, id+".csv")
	defer func() {
		if err != nil {
			_ = os.Remove(stored)
		}
	}()

	if err := u.store(stored, r); err != nil {
		return nil, err
	}

	table, err := readCSVFile(stored)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: file has no data rows", domain.ErrInvalidArgument)
	}
	cols := DeriveColumnMap(table.Headers)
	if missing := MissingColumns(cols); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s. Required: First Name, Last Name, Company, and at least one of Website / Activity URL or Activity Context",
			domain.ErrMissingColumns, strings.Join(missing, ", "))
	}
	if issues := ValidateRows(table.Rows, cols); len(issues) > 0 {
		return nil, &RowValidationError{Issues: issues}
	}

	f := &model.UploadedFile{
		ID:           id,
		OriginalName: safeFileName(name),
		StoredPath:   stored,
		Headers:      table.Headers,
		Columns:      cols,
		TotalRows:    len(table.Rows),
	}
	if err := u.files.Save(ctx, repository.NoTX, f); err != nil {
		return nil, err
	}

	preview := table.Rows
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	u.log.Info().Str("file_id", f.ID).Int("rows", f.TotalRows).Msg("file uploaded")
	return &UploadResult{File: f, Preview: preview}, nil
}

func (u *fileUC) store(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(r, u.maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if n > u.maxBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidArgument, u.maxBytes)
	}
	return nil
}

func (u *fileUC) Get(ctx context.Context, id string) (*model.UploadedFile, error) {
	return u.files.FindByID(ctx, repository.NoTX, id)
}

func (u *fileUC) SampleCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"First Name", "Last Name", "Company", "Website / Activity URL", "Activity Context"},
		{"Sarah", "Khan", "Acme Corp", "https://example.com/blog/product-launch", ""},
		{"Omar", "Ali", "Beta Systems", "", "Posted about hiring SDRs and expanding outbound. New RevOps role open."},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func safeFileName(name string) string {
	s := unsafeNameRe.ReplaceAllString(filepath.Base(name), "_")
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

