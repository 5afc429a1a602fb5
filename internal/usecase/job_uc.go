// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/domain/ports/repository"
	"coldmail-copywriter/internal/infra/logging"
	"coldmail-copywriter/internal/infra/metrics"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

const (
	defaultRowsLimit = 50
	maxRowsLimit     = 200
	// job status is re-read every statusCheckEvery dispatched rows
	statusCheckEvery = 25
)

type JobUseCase interface {
	// Start creates a job for an uploaded file, or returns the live one already started from it.
	Start(ctx context.Context, fileID string, settings model.JobSettings) (*StartResult, error)
	// Enqueue marks the job running and dispatches its queued rows in the background.
	Enqueue(ctx context.Context, jobID string) error
	Pause(ctx context.Context, jobID string) (*model.Job, error)
	Resume(ctx context.Context, jobID string) (*model.Job, error)
	// Delete removes the job, its file and every row started from that file.
	Delete(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	List(ctx context.Context, limit int) ([]*model.Job, error)
	Rows(ctx context.Context, jobID string, offset, limit int) ([]*model.Prospect, error)
	// ResumeActive re-enqueues queued and running jobs after a restart.
	ResumeActive(ctx context.Context) (int, error)
	// RecoverStale requeues rows stuck in running and re-enqueues their jobs.
	RecoverStale(ctx context.Context, staleAfter time.Duration) (int, error)
	// Close stops background dispatch and waits for it.
	Close()
}

type StartResult struct {
	Job    *model.Job `json:"job"`
	Reused bool       `json:"reused"`
}

type jobUC struct {
	files      repository.FileRepository
	jobs       repository.JobRepository
	prospects  repository.ProspectRepository
	tm         repository.TransactionManager
	dispatcher adapter.RowDispatcher
	log        *zerolog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	// inflight holds jobs with a running dispatch pass; true asks that pass to rescan
	inflight map[string]bool
}

func NewJobUseCase(
	files repository.FileRepository,
	jobs repository.JobRepository,
	prospects repository.ProspectRepository,
	tm repository.TransactionManager,
	dispatcher adapter.RowDispatcher,
	logger *zerolog.Logger,
) *jobUC {
	compLog := logger.With().Str("component", "JobUC").Logger()
	base, cancel := context.WithCancel(context.Background())
	return &jobUC{
		files:      files,
		jobs:       jobs,
		prospects:  prospects,
		tm:         tm,
		dispatcher: dispatcher,
		log:        &compLog,
		base:       base,
		cancel:     cancel,
		inflight:   map[string]bool{},
	}
}

func (u *jobUC) Start(ctx context.Context, fileID string, settings model.JobSettings) (*StartResult, error) {
	defer logging.TraceDuration(u.log, "JobUC.Start")()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	file, err := u.files.FindByID(ctx, repository.NoTX, fileID)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", fileID, err)
	}

	existing, err := u.jobs.FindReusable(ctx, repository.NoTX, fileID)
	switch {
	case err == nil:
		return &StartResult{Job: existing, Reused: true}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	table, err := readCSVFile(file.StoredPath)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: file has no data rows", domain.ErrInvalidArgument)
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		Settings:  &settings,
		Status:    model.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	if err := u.jobs.Create(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, u.log)

	rows := prospectsFromTable(job, file.Columns, table)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		n, err := u.prospects.InsertBatch(ctx, tx, rows)
		if err != nil {
			return err
		}
		job.TotalRows = n
		return u.jobs.SetTotalRows(ctx, tx, job.ID, n)
	})
	if err != nil {
		log.Error().Err(err).Msg("row ingest failed")
		if serr := u.jobs.SetStatus(ctx, repository.NoTX, job.ID, model.JobStatusFailed); serr != nil {
			log.Error().Err(serr).Msg("could not mark job failed")
		}
		metrics.IncJob(string(model.JobStatusFailed))
		return nil, fmt.Errorf("ingest rows: %w", err)
	}
	metrics.IncJob(string(model.JobStatusQueued))
	log.Info().Str("file_id", file.ID).Int("rows", job.TotalRows).Msg("job created")

	if err := u.Enqueue(ctx, job.ID); err != nil {
		return nil, err
	}
	fresh, err := u.jobs.FindByID(ctx, repository.NoTX, job.ID)
	if err != nil {
		return nil, err
	}
	return &StartResult{Job: fresh}, nil
}

func prospectsFromTable(job *model.Job, cols model.ColumnMap, t *csvTable) []*model.Prospect {
	out := make([]*model.Prospect, 0, len(t.Rows))
	for i, row := range t.Rows {
		out = append(out, &model.Prospect{
			ID:              uuid.NewString(),
			JobID:           job.ID,
			FileID:          job.FileID,
			RowIndex:        i,
			Status:          model.ProspectStatusQueued,
			FirstName:       strings.TrimSpace(cell(row, cols.FirstName)),
			LastName:        strings.TrimSpace(cell(row, cols.LastName)),
			Email:           strings.TrimSpace(cell(row, cols.Email)),
			Company:         strings.TrimSpace(cell(row, cols.Company)),
			Website:         normalizeWebsite(cell(row, cols.Website)),
			ActivityContext: strings.TrimSpace(cell(row, cols.ActivityContext)),
			OriginalRow:     row,
		})
	}
	return out
}

func (u *jobUC) Enqueue(ctx context.Context, jobID string) error {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	if !job.Active() {
		return nil
	}
	if job.Status != model.JobStatusRunning {
		metrics.IncJob(string(model.JobStatusRunning))
	}
	if err := u.jobs.SetStatus(ctx, repository.NoTX, jobID, model.JobStatusRunning); err != nil {
		return err
	}

	u.mu.Lock()
	if _, running := u.inflight[jobID]; running {
		// the running pass may have listed rows before they were queued
		u.inflight[jobID] = true
		u.mu.Unlock()
		return nil
	}
	u.inflight[jobID] = false
	u.wg.Add(1)
	u.mu.Unlock()

	go func() {
		defer u.wg.Done()
		ctx := logging.WithJobID(u.base, jobID)
		for {
			u.dispatchQueued(ctx, jobID)

			u.mu.Lock()
			if u.inflight[jobID] && ctx.Err() == nil {
				u.inflight[jobID] = false
				u.mu.Unlock()
				continue
			}
			delete(u.inflight, jobID)
			u.mu.Unlock()
			return
		}
	}()
	return nil
}

// dispatchQueued hands queued rows to the dispatcher in row order and stops
// early once the job is no longer active.
func (u *jobUC) dispatchQueued(ctx context.Context, jobID string) {
	log := logging.With(ctx, u.log)
	if job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID); err != nil || !job.Active() {
		return
	}
	ids, err := u.prospects.ListQueuedIDs(ctx, repository.NoTX, jobID)
	if err != nil {
		log.Error().Err(err).Msg("list queued rows")
		return
	}
	sent := 0
	for i, id := range ids {
		if i > 0 && i%statusCheckEvery == 0 {
			job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
			if err != nil || !job.Active() {
				log.Info().Int("dispatched", sent).Msg("dispatch stopped; job no longer active")
				return
			}
		}
		if err := u.dispatcher.Dispatch(ctx, id); err != nil {
			log.Error().Err(err).Str("prospect_id", id).Msg("dispatch failed")
			return
		}
		sent++
	}
	log.Debug().Int("dispatched", sent).Msg("queued rows dispatched")
}

func (u *jobUC) Pause(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	if job.Active() || job.Status == model.JobStatusPaused {
		if err := u.jobs.SetStatus(ctx, repository.NoTX, jobID, model.JobStatusPaused); err != nil {
			return nil, err
		}
		if job.Status != model.JobStatusPaused {
			metrics.IncJob(string(model.JobStatusPaused))
		}
	}
	return u.jobs.FindByID(ctx, repository.NoTX, jobID)
}

func (u *jobUC) Resume(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusFailed {
		return job, nil
	}
	if job.Status == model.JobStatusPaused {
		if err := u.jobs.SetStatus(ctx, repository.NoTX, jobID, model.JobStatusRunning); err != nil {
			return nil, err
		}
	}
	if err := u.Enqueue(ctx, jobID); err != nil {
		return nil, err
	}
	return u.jobs.FindByID(ctx, repository.NoTX, jobID)
}

func (u *jobUC) Delete(ctx context.Context, jobID string) error {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	file, err := u.files.FindByID(ctx, repository.NoTX, job.FileID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.prospects.DeleteByJob(ctx, tx, jobID); err != nil {
			return err
		}
		if err := u.jobs.Delete(ctx, tx, jobID); err != nil {
			return err
		}
		if file != nil {
			return u.files.Delete(ctx, tx, file.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if file != nil && file.StoredPath != "" {
		if err := os.Remove(file.StoredPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.log.Warn().Err(err).Str("path", file.StoredPath).Msg("could not remove stored upload")
		}
	}
	u.log.Info().Str("job_id", jobID).Msg("job deleted")
	return nil
}

func (u *jobUC) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return u.jobs.FindByID(ctx, repository.NoTX, jobID)
}

func (u *jobUC) List(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = defaultRowsLimit
	}
	return u.jobs.List(ctx, repository.NoTX, limit)
}

func (u *jobUC) Rows(ctx context.Context, jobID string, offset, limit int) ([]*model.Prospect, error) {
	if _, err := u.jobs.FindByID(ctx, repository.NoTX, jobID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultRowsLimit
	case limit > maxRowsLimit:
		limit = maxRowsLimit
	}
	if offset < 0 {
		offset = 0
	}
	return u.prospects.ListByJob(ctx, repository.NoTX, jobID, offset, limit)
}

func (u *jobUC) ResumeActive(ctx context.Context) (int, error) {
	jobs, err := u.jobs.ListActive(ctx, repository.NoTX)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range jobs {
		if err := u.Enqueue(ctx, j.ID); err != nil {
			u.log.Error().Err(err).Str("job_id", j.ID).Msg("resume job failed")
			continue
		}
		n++
	}
	return n, nil
}

func (u *jobUC) RecoverStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	jobIDs, err := u.prospects.RequeueStale(ctx, repository.NoTX, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range jobIDs {
		if err := u.Enqueue(ctx, id); err != nil {
			u.log.Error().Err(err).Str("job_id", id).Msg("re-enqueue after stale recovery failed")
			continue
		}
		n++
	}
	return n, nil
}

func (u *jobUC) Close() {
	u.cancel()
	u.wg.Wait()
}
