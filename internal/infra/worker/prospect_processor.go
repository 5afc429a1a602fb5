package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/model"
	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/domain/ports/repository"
	"coldmail-copywriter/internal/infra/logging"
	"coldmail-copywriter/internal/infra/metrics"
	red "coldmail-copywriter/internal/infra/redis"
)

// SequenceGenerator produces the email sequence for one rendered prompt.
type SequenceGenerator interface {
	Generate(ctx context.Context, req copywriter.Request) (model.Sequence, copywriter.Report, error)
}

// Locker keeps two consumers off the same row.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type ProcessorOptions struct {
	LockTTL time.Duration

	LogActivityContext      bool
	ActivityContextMaxChars int
	LogPrompt               bool
	PromptMaxChars          int
}

// ProspectProcessor advances one row from queued to completed or failed.
type ProspectProcessor struct {
	prospects repository.ProspectRepository
	jobs      repository.JobRepository
	tm        repository.TransactionManager
	scraper   adapter.Scraper
	gen       SequenceGenerator
	locker    Locker
	opts      ProcessorOptions
	log       zerolog.Logger
}

func NewProspectProcessor(
	prospects repository.ProspectRepository,
	jobs repository.JobRepository,
	tm repository.TransactionManager,
	scraper adapter.Scraper,
	gen SequenceGenerator,
	locker Locker,
	opts ProcessorOptions,
	logger *zerolog.Logger,
) *ProspectProcessor {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &ProspectProcessor{
		prospects: prospects,
		jobs:      jobs,
		tm:        tm,
		scraper:   scraper,
		gen:       gen,
		locker:    locker,
		opts:      opts,
		log:       logger.With().Str("component", "ProspectProcessor").Logger(),
	}
}

// outcome of a row that did not fail
type generated struct {
	seq      model.Sequence
	scraped  string
	degraded bool
}

// Process runs the row state machine. Rows that are gone, terminal, locked
// elsewhere or whose job is not active are skipped without error. Row-level
// failures are persisted on the row; only storage errors are returned.
func (p *ProspectProcessor) Process(ctx context.Context, prospectID string) error {
	ctx = logging.WithProspectID(ctx, prospectID)
	log := logging.With(ctx, &p.log)

	if p.locker != nil {
		key := red.ProspectLockKey(prospectID)
		token, err := p.locker.TryLock(ctx, key, p.opts.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLocked):
			log.Debug().Msg("row is held by another worker; skipping")
			return nil
		case err != nil:
			log.Warn().Err(err).Msg("row lock unavailable; processing without it")
		default:
			defer func() {
				if err := p.locker.Unlock(context.Background(), key, token); err != nil {
					log.Warn().Err(err).Msg("failed to release row lock")
				}
			}()
		}
	}

	row, err := p.prospects.FindByID(ctx, nil, prospectID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if row.Terminal() {
		return nil
	}

	job, err := p.jobs.FindByID(ctx, nil, row.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ctx = logging.WithJobID(ctx, job.ID)
	log = logging.With(ctx, &p.log)
	if !job.Active() {
		log.Debug().Str("job_status", string(job.Status)).Msg("job not active; row left queued")
		return nil
	}

	if err := p.prospects.MarkRunning(ctx, nil, row.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Msg("row already claimed; skipping")
			return nil
		}
		return err
	}

	start := time.Now()
	out, genErr := p.generate(ctx, log, row, job)
	if genErr != nil {
		// shutdown: leave the row running so stale recovery requeues it
		if ctx.Err() != nil {
			return genErr
		}
		log.Error().Err(genErr).Int("row", row.RowIndex).Msg("row failed")
		if err := p.fail(ctx, row, genErr); err != nil {
			return superseded(log, err)
		}
		metrics.IncProspect("failed")
	} else {
		if err := p.complete(ctx, row, out); err != nil {
			return superseded(log, err)
		}
		status := "completed"
		if out.degraded {
			status = "degraded"
		}
		metrics.IncProspect(status)
		log.Info().Int("row", row.RowIndex).Str("status", status).
			Dur("duration", time.Since(start)).Msg("row completed")
	}

	return p.finishJob(ctx, log, job.ID)
}

func (p *ProspectProcessor) generate(ctx context.Context, log *zerolog.Logger, row *model.Prospect, job *model.Job) (generated, error) {
	if job.Settings == nil {
		return generated{}, domain.ErrMissingJobSettings
	}
	settings := *job.Settings

	website := strings.TrimSpace(row.Website)
	var scraped string
	scrapeFailed := false
	if website != "" && p.scraper != nil {
		text, err := p.scraper.Scrape(ctx, website)
		if err != nil {
			if ctx.Err() != nil {
				return generated{}, ctx.Err()
			}
			scrapeFailed = true
			log.Warn().Err(err).Str("website", website).Msg("no web content")
		} else {
			scraped = strings.TrimSpace(text)
		}
	}

	summary := joinNonEmpty("\n\n", row.ActivityContext, scraped)
	if summary == "" {
		// placeholder copy only when a reachable website was tried and failed
		if scrapeFailed {
			log.Warn().Str("website", website).Msg("website unreadable and no activity context; storing placeholder copy")
			return generated{seq: model.DegradedSequence(settings.FollowUpCount), degraded: true}, nil
		}
		return generated{}, domain.ErrMissingActivityContext
	}
	if p.opts.LogActivityContext {
		log.Info().Str("activity_context", logging.Truncate(summary, p.opts.ActivityContextMaxChars)).
			Msg("activity context")
	}

	prompt := copywriter.BulkPrompt(settings, copywriter.Recipient{
		FirstName: row.FirstName,
		Company:   row.Company,
	}, summary)
	if p.opts.LogPrompt {
		log.Debug().Str("prompt", logging.Truncate(prompt, p.opts.PromptMaxChars)).Msg("bulk prompt")
	}

	requestID := row.RequestID()
	seq, rep, err := p.gen.Generate(logging.WithRequestID(ctx, requestID), copywriter.Request{
		RequestID:       requestID,
		Prompt:          prompt,
		Settings:        settings,
		FirstName:       row.FirstName,
		Company:         row.Company,
		ActivitySummary: summary,
	})
	if err != nil {
		return generated{}, err
	}
	metrics.AddCopyRepairs("subjects", rep.SubjectsFilled)
	metrics.AddCopyRepairs("missing_followups", rep.FollowUpsGenerated)
	metrics.AddCopyRepairs("incomplete_followup", rep.FollowUpsRepaired)
	metrics.AddCopyRepairs("error", rep.RepairErrors)
	log.Debug().Str("parse", rep.ParseStrategy).
		Int("followups_generated", rep.FollowUpsGenerated).
		Int("followups_repaired", rep.FollowUpsRepaired).
		Msg("sequence generated")

	return generated{seq: seq, scraped: scraped}, nil
}

func (p *ProspectProcessor) complete(ctx context.Context, row *model.Prospect, out generated) error {
	return p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := p.prospects.MarkCompleted(ctx, tx, row.ID, model.ProspectResult{
			ScrapedContent: out.scraped,
			Sequence:       out.seq,
		}); err != nil {
			return err
		}
		return p.jobs.IncrementProcessed(ctx, tx, row.JobID)
	})
}

func (p *ProspectProcessor) fail(ctx context.Context, row *model.Prospect, cause error) error {
	return p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := p.prospects.MarkFailed(ctx, tx, row.ID, cause.Error()); err != nil {
			return err
		}
		if err := p.jobs.IncrementProcessed(ctx, tx, row.JobID); err != nil {
			return err
		}
		return p.jobs.IncrementErrors(ctx, tx, row.JobID)
	})
}

// superseded swallows ErrNotFound from a finishing update: the row left
// running under us and another consumer owns its outcome and counters.
func superseded(log *zerolog.Logger, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("row no longer running; outcome discarded")
		return nil
	}
	return err
}

func (p *ProspectProcessor) finishJob(ctx context.Context, log *zerolog.Logger, jobID string) error {
	done, err := p.jobs.CompleteIfDone(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if done {
		metrics.IncJob(string(model.JobStatusCompleted))
		log.Info().Msg("job completed")
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
