package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/infra/metrics"
)

// StaleRecoverer resets rows stuck in running and re-enqueues their jobs.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, staleAfter time.Duration) (int, error)
}

// StaleWorker periodically recovers rows left running by a crashed or stopped worker.
type StaleWorker struct {
	interval   time.Duration
	staleAfter time.Duration
	jobs       StaleRecoverer
	log        *zerolog.Logger
}

func NewStaleWorker(interval, staleAfter time.Duration, jobs StaleRecoverer, logger *zerolog.Logger) *StaleWorker {
	compLog := logger.With().Str("component", "StaleWorker").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &StaleWorker{
		interval:   interval,
		staleAfter: staleAfter,
		jobs:       jobs,
		log:        &compLog,
	}
}

func (w *StaleWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting stale worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale worker")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

func (w *StaleWorker) runCheck(ctx context.Context) {
	n, err := w.jobs.RecoverStale(ctx, w.staleAfter)
	if err != nil {
		w.log.Error().Err(err).Msg("stale worker error")
	}
	if n > 0 {
		metrics.AddStaleRequeued(n)
		w.log.Info().Int("jobs", n).Msg("stale rows requeued")
	}
}
