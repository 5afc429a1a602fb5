//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/repository"
)

// memDB is one in-memory state shared by every repository fake.
type memDB struct {
	mu        sync.Mutex
	files     map[string]*model.UploadedFile
	jobs      map[string]*model.Job
	prospects map[string]*model.Prospect
	insertErr error
	txCalls   int
}

func newMemDB() *memDB {
	return &memDB{
		files:     map[string]*model.UploadedFile{},
		jobs:      map[string]*model.Job{},
		prospects: map[string]*model.Prospect{},
	}
}

func (db *memDB) jobRows(jobID string) []*model.Prospect {
	var out []*model.Prospect
	for _, p := range db.prospects {
		if p.JobID == jobID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

type memTM struct{ db *memDB }

func (m memTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.db.mu.Lock()
	m.db.txCalls++
	m.db.mu.Unlock()
	return fn(ctx, nil)
}

type memFiles struct{ db *memDB }

func (m memFiles) Save(_ context.Context, _ repository.Tx, f *model.UploadedFile) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	cp := *f
	m.db.files[f.ID] = &cp
	return nil
}

func (m memFiles) FindByID(_ context.Context, _ repository.Tx, id string) (*model.UploadedFile, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	f, ok := m.db.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m memFiles) Delete(_ context.Context, _ repository.Tx, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.files[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.db.files, id)
	return nil
}

type memJobs struct{ db *memDB }

func (m memJobs) Create(_ context.Context, _ repository.Tx, j *model.Job) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	cp := *j
	m.db.jobs[j.ID] = &cp
	return nil
}

func (m memJobs) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	j, ok := m.db.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m memJobs) FindReusable(_ context.Context, _ repository.Tx, fileID string) (*model.Job, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var best *model.Job
	for _, j := range m.db.jobs {
		if j.FileID != fileID || j.Status == model.JobStatusFailed {
			continue
		}
		if best == nil || j.CreatedAt.After(best.CreatedAt) {
			best = j
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m memJobs) List(_ context.Context, _ repository.Tx, limit int) ([]*model.Job, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]*model.Job, 0, len(m.db.jobs))
	for _, j := range m.db.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memJobs) ListActive(_ context.Context, _ repository.Tx) ([]*model.Job, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*model.Job
	for _, j := range m.db.jobs {
		if j.Active() {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m memJobs) SetTotalRows(_ context.Context, _ repository.Tx, id string, total int) error {
	return m.update(id, func(j *model.Job) { j.TotalRows = total })
}

func (m memJobs) SetStatus(_ context.Context, _ repository.Tx, id string, st model.JobStatus) error {
	return m.update(id, func(j *model.Job) {
		j.Status = st
		now := time.Now()
		if st == model.JobStatusRunning && j.StartedAt == nil {
			j.StartedAt = &now
		}
	})
}

func (m memJobs) IncrementProcessed(_ context.Context, _ repository.Tx, id string) error {
	return m.update(id, func(j *model.Job) { j.ProcessedRows++ })
}

func (m memJobs) IncrementErrors(_ context.Context, _ repository.Tx, id string) error {
	return m.update(id, func(j *model.Job) { j.ErrorCount++ })
}

func (m memJobs) CompleteIfDone(_ context.Context, _ repository.Tx, id string) (bool, error) {
	done := false
	err := m.update(id, func(j *model.Job) {
		if j.Done() && j.Status != model.JobStatusCompleted {
			j.Status = model.JobStatusCompleted
			done = true
		}
	})
	return done, err
}

func (m memJobs) Delete(_ context.Context, _ repository.Tx, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.db.jobs, id)
	return nil
}

func (m memJobs) update(id string, fn func(*model.Job)) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	j, ok := m.db.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(j)
	return nil
}

type memProspects struct{ db *memDB }

func (m memProspects) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Prospect, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.prospects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m memProspects) InsertBatch(_ context.Context, _ repository.Tx, rows []*model.Prospect) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.insertErr != nil {
		return 0, m.db.insertErr
	}
	for _, p := range rows {
		cp := *p
		m.db.prospects[p.ID] = &cp
	}
	return len(rows), nil
}

func (m memProspects) MarkRunning(_ context.Context, _ repository.Tx, id string) error {
	return m.update(id, model.ProspectStatusQueued, func(p *model.Prospect) { p.Status = model.ProspectStatusRunning })
}

func (m memProspects) MarkCompleted(_ context.Context, _ repository.Tx, id string, res model.ProspectResult) error {
	return m.update(id, model.ProspectStatusRunning, func(p *model.Prospect) {
		p.Status = model.ProspectStatusCompleted
		p.ScrapedContent = res.ScrapedContent
		p.Subject, p.EmailBody = res.Sequence.Initial.Subject, res.Sequence.Initial.Body
		p.FollowUps = res.Sequence.FollowUps
	})
}

func (m memProspects) MarkFailed(_ context.Context, _ repository.Tx, id, reason string) error {
	return m.update(id, model.ProspectStatusRunning, func(p *model.Prospect) {
		p.Status, p.Error = model.ProspectStatusFailed, reason
	})
}

func (m memProspects) ListQueuedIDs(_ context.Context, _ repository.Tx, jobID string) ([]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var ids []string
	for _, p := range m.db.jobRows(jobID) {
		if p.Status == model.ProspectStatusQueued {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m memProspects) ListByJob(_ context.Context, _ repository.Tx, jobID string, offset, limit int) ([]*model.Prospect, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	rows := m.db.jobRows(jobID)
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]*model.Prospect, 0, len(rows))
	for _, p := range rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m memProspects) RequeueStale(_ context.Context, _ repository.Tx, cutoff time.Time) ([]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	seen := map[string]bool{}
	var jobIDs []string
	for _, p := range m.db.prospects {
		if p.Status != model.ProspectStatusRunning || !p.UpdatedAt.Before(cutoff) {
			continue
		}
		p.Status = model.ProspectStatusQueued
		if !seen[p.JobID] {
			seen[p.JobID] = true
			jobIDs = append(jobIDs, p.JobID)
		}
	}
	sort.Strings(jobIDs)
	return jobIDs, nil
}

func (m memProspects) DeleteByJob(_ context.Context, _ repository.Tx, jobID string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for id, p := range m.db.prospects {
		if p.JobID == jobID {
			delete(m.db.prospects, id)
		}
	}
	return nil
}

// update applies fn to a row currently in status from.
func (m memProspects) update(id string, from model.ProspectStatus, fn func(*model.Prospect)) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.prospects[id]
	if !ok || p.Status != from {
		return domain.ErrNotFound
	}
	fn(p)
	return nil
}

// recordingDispatcher remembers every dispatched prospect ID.
type recordingDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ids...)
}

type fakeScraper struct {
	text string
	err  error
	urls []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

type fakeCompletion struct {
	text    string
	err     error
	prompts []string
	reqIDs  []string
}

func (f *fakeCompletion) Generate(_ context.Context, prompt, requestID string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.reqIDs = append(f.reqIDs, requestID)
	return f.text, f.err
}
