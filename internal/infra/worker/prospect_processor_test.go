//go:build !integration

package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
)

type processorFixture struct {
	store   *memStore
	scraper *fakeScraper
	gen     *fakeGenerator
	locker  *fakeLocker
	proc    *ProspectProcessor
}

func newFixture(t *testing.T, rows int, settings *model.JobSettings) *processorFixture {
	t.Helper()
	st := newMemStore()
	st.jobs["job1"] = &model.Job{ID: "job1", FileID: "f1", Settings: settings, Status: model.JobStatusRunning, TotalRows: rows}
	for i := 1; i <= rows; i++ {
		id := "p" + string(rune('0'+i))
		st.prospects[id] = &model.Prospect{
			ID: id, JobID: "job1", FileID: "f1", RowIndex: i, Status: model.ProspectStatusQueued,
			FirstName: "Ada", Company: "Analytical", Website: "https://example.com",
		}
	}
	f := &processorFixture{
		store:   st,
		scraper: &fakeScraper{text: "Title: Analytical Engines"},
		gen: &fakeGenerator{seq: model.Sequence{
			Initial:   model.Email{Position: model.InitialPosition(), Subject: "Engines", Body: "Hi Ada,\n\nA.\n\nB."},
			FollowUps: []model.Email{{Position: model.FollowUpPosition(1), Subject: "Re", Body: "Ping"}},
		}},
		locker: &fakeLocker{},
	}
	l := zerolog.Nop()
	f.proc = NewProspectProcessor(memProspects{st}, memJobs{st}, memTM{st}, f.scraper, f.gen, f.locker,
		ProcessorOptions{LogActivityContext: true, ActivityContextMaxChars: 20}, &l)
	return f
}

func defaultSettings() *model.JobSettings {
	return &model.JobSettings{ValueProp: "vp", CallToAction: "cta", Tone: "Friendly", Length: "Short", FollowUpCount: 1}
}

func TestProcess_CompletesRowAndJob(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	require.NoError(t, f.proc.Process(context.Background(), "p1"))

	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusCompleted, p.Status)
	assert.Equal(t, "Engines", p.Subject)
	assert.Equal(t, "Title: Analytical Engines", p.ScrapedContent)
	require.Len(t, p.FollowUps, 1)

	j := f.store.job("job1")
	assert.Equal(t, 1, j.ProcessedRows)
	assert.Equal(t, 0, j.ErrorCount)
	assert.Equal(t, model.JobStatusCompleted, j.Status)

	require.Len(t, f.gen.reqs, 1)
	req := f.gen.reqs[0]
	assert.Equal(t, "job_job1_row_1", req.RequestID)
	assert.Equal(t, "Title: Analytical Engines", req.ActivitySummary)
	assert.Contains(t, req.Prompt, "Title: Analytical Engines")
	assert.Equal(t, []string{"lock:prospect:p1"}, f.locker.unlocked)
}

func TestProcess_JoinsManualContextBeforeScrapedText(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.store.prospects["p1"].ActivityContext = "Spoke at PyCon"
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	assert.Equal(t, "Spoke at PyCon\n\nTitle: Analytical Engines", f.gen.reqs[0].ActivitySummary)
}

func TestProcess_JobStaysRunningUntilLastRow(t *testing.T) {
	f := newFixture(t, 2, defaultSettings())
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	assert.Equal(t, model.JobStatusRunning, f.store.job("job1").Status)
	require.NoError(t, f.proc.Process(context.Background(), "p2"))
	assert.Equal(t, model.JobStatusCompleted, f.store.job("job1").Status)
}

func TestProcess_DegradedWhenWebsiteUnreadableAndNoContext(t *testing.T) {
	f := newFixture(t, 1, &model.JobSettings{ValueProp: "vp", CallToAction: "cta", Tone: "t", Length: "Short", FollowUpCount: 3})
	f.scraper.text, f.scraper.err = "", &domain.ScrapeError{URL: "https://example.com", Reason: "thin content"}

	require.NoError(t, f.proc.Process(context.Background(), "p1"))

	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusCompleted, p.Status)
	assert.Equal(t, model.ContextUnavailableSubject, p.Subject)
	assert.Equal(t, model.ContextUnavailableBody, p.EmailBody)
	require.Len(t, p.FollowUps, 3)
	assert.Equal(t, model.ContextUnavailableBody, p.FollowUps[2].Body)
	assert.Empty(t, f.gen.reqs, "no completion for degraded rows")
	assert.Equal(t, 0, f.store.job("job1").ErrorCount)
}

func TestProcess_MissingContextFailsRow(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.store.prospects["p1"].Website = ""

	require.NoError(t, f.proc.Process(context.Background(), "p1"))

	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusFailed, p.Status)
	assert.Equal(t, domain.ErrMissingActivityContext.Error(), p.Error)
	assert.Equal(t, 0, f.scraper.calls)

	j := f.store.job("job1")
	assert.Equal(t, 1, j.ProcessedRows)
	assert.Equal(t, 1, j.ErrorCount)
	assert.Equal(t, model.JobStatusCompleted, j.Status, "a failed last row still completes the job")
}

func TestProcess_MissingSettingsFailsRow(t *testing.T) {
	f := newFixture(t, 1, nil)
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusFailed, p.Status)
	assert.Equal(t, domain.ErrMissingJobSettings.Error(), p.Error)
}

func TestProcess_CompletionErrorStoredVerbatim(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.gen.err = &domain.CompletionError{RequestID: "job_job1_row_1", Attempts: 4, StatusCode: 503, Err: errors.New("overloaded")}

	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusFailed, p.Status)
	assert.Equal(t, f.gen.err.Error(), p.Error)
}

func TestProcess_SkipsWhenJobNotActive(t *testing.T) {
	for _, st := range []model.JobStatus{model.JobStatusPaused, model.JobStatusCompleted, model.JobStatusFailed} {
		f := newFixture(t, 1, defaultSettings())
		f.store.jobs["job1"].Status = st
		require.NoError(t, f.proc.Process(context.Background(), "p1"))
		assert.Equal(t, model.ProspectStatusQueued, f.store.prospect("p1").Status, st)
		assert.Empty(t, f.gen.reqs)
	}
}

func TestProcess_SkipsTerminalAndMissingRows(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.store.prospects["p1"].Status = model.ProspectStatusCompleted

	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	require.NoError(t, f.proc.Process(context.Background(), "nope"))
	assert.Empty(t, f.gen.reqs)
	assert.Equal(t, 0, f.store.job("job1").ProcessedRows)
}

func TestProcess_SkipsLockedRow(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.locker.err = domain.ErrLocked
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	assert.Equal(t, model.ProspectStatusQueued, f.store.prospect("p1").Status)
}

func TestProcess_LockBackendDownStillProcesses(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.locker.err = errors.New("redis: connection refused")
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	assert.Equal(t, model.ProspectStatusCompleted, f.store.prospect("p1").Status)
	assert.Empty(t, f.locker.unlocked)
}

func TestProcess_CancelledContextLeavesRowRunning(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	ctx, cancel := context.WithCancel(context.Background())
	f.gen.err = context.Canceled
	cancel()

	err := f.proc.Process(ctx, "p1")
	require.Error(t, err)
	assert.Equal(t, model.ProspectStatusRunning, f.store.prospect("p1").Status)
	assert.Equal(t, 0, f.store.job("job1").ProcessedRows)
}

func TestProcess_StorageErrorIsReturned(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.store.failTx = errors.New("db down")
	err := f.proc.Process(context.Background(), "p1")
	require.EqualError(t, err, "db down")
}

// heldGenerator blocks every Generate call until release is closed.
type heldGenerator struct {
	seq     model.Sequence
	entered chan struct{}
	release chan struct{}
}

func (g *heldGenerator) Generate(ctx context.Context, _ copywriter.Request) (model.Sequence, copywriter.Report, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return model.Sequence{}, copywriter.Report{}, ctx.Err()
	}
	return g.seq, copywriter.Report{}, nil
}

func TestProcess_DuplicateDeliveryCountsRowOnce(t *testing.T) {
	f := newFixture(t, 2, defaultSettings())
	gen := &heldGenerator{seq: f.gen.seq, entered: make(chan struct{}, 2), release: make(chan struct{})}
	l := zerolog.Nop()
	// no locker: the row state alone must keep the copies apart
	f.proc = NewProspectProcessor(memProspects{f.store}, memJobs{f.store}, memTM{f.store}, f.scraper, gen, nil,
		ProcessorOptions{}, &l)
	f.scraper.text = ""
	f.store.prospects["p1"].ActivityContext = "Shipped a new engine"
	f.store.prospects["p2"].ActivityContext = "Hiring engineers"

	first := make(chan error, 1)
	go func() { first <- f.proc.Process(context.Background(), "p1") }()
	<-gen.entered

	// redelivery while the first copy is generating
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	close(gen.release)
	require.NoError(t, <-first)

	j := f.store.job("job1")
	assert.Equal(t, 1, j.ProcessedRows)
	assert.Equal(t, model.JobStatusRunning, j.Status, "p2 is still queued")
	assert.Equal(t, model.ProspectStatusQueued, f.store.prospect("p2").Status)

	require.NoError(t, f.proc.Process(context.Background(), "p2"))
	j = f.store.job("job1")
	assert.Equal(t, 2, j.ProcessedRows)
	assert.Equal(t, model.JobStatusCompleted, j.Status)
}

func TestProcess_RowFinishedElsewhereDiscardsOutcome(t *testing.T) {
	f := newFixture(t, 2, defaultSettings())
	gen := &heldGenerator{seq: f.gen.seq, entered: make(chan struct{}, 1), release: make(chan struct{})}
	l := zerolog.Nop()
	f.proc = NewProspectProcessor(memProspects{f.store}, memJobs{f.store}, memTM{f.store}, f.scraper, gen, nil,
		ProcessorOptions{}, &l)

	done := make(chan error, 1)
	go func() { done <- f.proc.Process(context.Background(), "p1") }()
	<-gen.entered

	// another consumer took the requeued row over and finished it
	f.store.mu.Lock()
	f.store.prospects["p1"].Status = model.ProspectStatusCompleted
	f.store.jobs["job1"].ProcessedRows = 1
	f.store.mu.Unlock()

	close(gen.release)
	require.NoError(t, <-done)

	j := f.store.job("job1")
	assert.Equal(t, 1, j.ProcessedRows)
	assert.Equal(t, model.JobStatusRunning, j.Status)
}

func TestProcess_SkipsRowAlreadyRunning(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.store.prospects["p1"].Status = model.ProspectStatusRunning
	require.NoError(t, f.proc.Process(context.Background(), "p1"))
	assert.Empty(t, f.gen.reqs)
	assert.Equal(t, 0, f.store.job("job1").ProcessedRows)
}

func TestProcess_BlankScrapeWithoutErrorFailsRow(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	f.scraper.text, f.scraper.err = "  \n\t ", nil

	require.NoError(t, f.proc.Process(context.Background(), "p1"))

	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusFailed, p.Status)
	assert.Equal(t, domain.ErrMissingActivityContext.Error(), p.Error)
	assert.Equal(t, 1, f.store.job("job1").ErrorCount)
}

func TestProcess_NoScraperWiredFailsRow(t *testing.T) {
	f := newFixture(t, 1, defaultSettings())
	l := zerolog.Nop()
	f.proc = NewProspectProcessor(memProspects{f.store}, memJobs{f.store}, memTM{f.store}, nil, f.gen, f.locker,
		ProcessorOptions{}, &l)

	require.NoError(t, f.proc.Process(context.Background(), "p1"))

	p := f.store.prospect("p1")
	assert.Equal(t, model.ProspectStatusFailed, p.Status)
	assert.Equal(t, domain.ErrMissingActivityContext.Error(), p.Error)
	assert.Empty(t, f.gen.reqs)
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "a\n\nb", joinNonEmpty("\n\n", " a ", "", "b"))
	assert.Equal(t, "", joinNonEmpty("\n\n", " ", ""))
}
