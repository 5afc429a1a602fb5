//go:build !integration

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/repository"
)

// memStore backs both repository fakes so a transaction sees one state.
type memStore struct {
	mu        sync.Mutex
	prospects map[string]*model.Prospect
	jobs      map[string]*model.Job
	failTx    error
}

func newMemStore() *memStore {
	return &memStore{prospects: map[string]*model.Prospect{}, jobs: map[string]*model.Job{}}
}

func (s *memStore) prospect(id string) model.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.prospects[id]
}

func (s *memStore) job(id string) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type memTM struct{ s *memStore }

func (m memTM) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.s.failTx != nil {
		return m.s.failTx
	}
	return fn(ctx, nil)
}

type memProspects struct{ s *memStore }

func (m memProspects) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Prospect, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.prospects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m memProspects) InsertBatch(_ context.Context, _ repository.Tx, rows []*model.Prospect) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range rows {
		m.s.prospects[p.ID] = p
	}
	return len(rows), nil
}

func (m memProspects) MarkRunning(_ context.Context, _ repository.Tx, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.prospects[id]
	if !ok || p.Status != model.ProspectStatusQueued {
		return domain.ErrNotFound
	}
	p.Status, p.Error = model.ProspectStatusRunning, ""
	return nil
}

func (m memProspects) MarkCompleted(_ context.Context, _ repository.Tx, id string, res model.ProspectResult) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.prospects[id]
	if !ok || p.Status != model.ProspectStatusRunning {
		return domain.ErrNotFound
	}
	p.Status = model.ProspectStatusCompleted
	p.ScrapedContent = res.ScrapedContent
	p.Subject, p.EmailBody = res.Sequence.Initial.Subject, res.Sequence.Initial.Body
	p.FollowUps = res.Sequence.FollowUps
	return nil
}

func (m memProspects) MarkFailed(_ context.Context, _ repository.Tx, id, reason string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.prospects[id]
	if !ok || p.Status != model.ProspectStatusRunning {
		return domain.ErrNotFound
	}
	p.Status, p.Error = model.ProspectStatusFailed, reason
	return nil
}

func (m memProspects) ListQueuedIDs(context.Context, repository.Tx, string) ([]string, error) {
	return nil, nil
}
func (m memProspects) ListByJob(context.Context, repository.Tx, string, int, int) ([]*model.Prospect, error) {
	return nil, nil
}
func (m memProspects) RequeueStale(context.Context, repository.Tx, time.Time) ([]string, error) {
	return nil, nil
}
func (m memProspects) DeleteByJob(context.Context, repository.Tx, string) error { return nil }

type memJobs struct{ s *memStore }

func (m memJobs) Create(_ context.Context, _ repository.Tx, j *model.Job) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.jobs[j.ID] = j
	return nil
}

func (m memJobs) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Job, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	j, ok := m.s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m memJobs) FindReusable(context.Context, repository.Tx, string) (*model.Job, error) {
	return nil, domain.ErrNotFound
}
func (m memJobs) List(context.Context, repository.Tx, int) ([]*model.Job, error) { return nil, nil }
func (m memJobs) ListActive(context.Context, repository.Tx) ([]*model.Job, error) {
	return nil, nil
}
func (m memJobs) SetTotalRows(context.Context, repository.Tx, string, int) error { return nil }

func (m memJobs) SetStatus(_ context.Context, _ repository.Tx, id string, st model.JobStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.jobs[id].Status = st
	return nil
}

func (m memJobs) IncrementProcessed(_ context.Context, _ repository.Tx, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.jobs[id].ProcessedRows++
	return nil
}

func (m memJobs) IncrementErrors(_ context.Context, _ repository.Tx, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.jobs[id].ErrorCount++
	return nil
}

func (m memJobs) CompleteIfDone(_ context.Context, _ repository.Tx, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	j := m.s.jobs[id]
	if j.Done() && j.Status != model.JobStatusCompleted {
		j.Status = model.JobStatusCompleted
		return true, nil
	}
	return false, nil
}

func (m memJobs) Delete(context.Context, repository.Tx, string) error { return nil }

type fakeScraper struct {
	text  string
	err   error
	calls int
}

func (f *fakeScraper) Scrape(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeGenerator struct {
	seq  model.Sequence
	err  error
	reqs []copywriter.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req copywriter.Request) (model.Sequence, copywriter.Report, error) {
	f.reqs = append(f.reqs, req)
	return f.seq, copywriter.Report{ParseStrategy: "typed"}, f.err
}

type fakeLocker struct {
	err      error
	unlocked []string
}

func (f *fakeLocker) TryLock(context.Context, string, time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

func (f *fakeLocker) Unlock(_ context.Context, key, _ string) error {
	f.unlocked = append(f.unlocked, key)
	return nil
}
