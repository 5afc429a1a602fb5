package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"coldmail-copywriter/internal/infra/api"
	"coldmail-copywriter/internal/infra/metrics"
	"coldmail-copywriter/internal/infra/queue"
	"coldmail-copywriter/internal/infra/sched"
)

var (
	servePort    int
	serveConsume bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the row workers",
	Long: `Start the HTTP API together with the background row workers.

On start every job left queued or running is resumed. A stale-row sweeper
puts rows stuck in running back on the queue. With queue.driver=rabbitmq the
process also consumes rows from the queue unless --consume=false.

Examples:
  coldmail serve                      # listen on http.port from the config
  coldmail serve --port 8080
  coldmail serve --consume=false      # API only, rows run on "coldmail worker"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), true, serveConsume)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process rows from RabbitMQ without serving HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), false, true)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default: http.port)")
	serveCmd.Flags().BoolVar(&serveConsume, "consume", true, "consume rows from rabbitmq when queue.driver=rabbitmq")
	rootCmd.AddCommand(serveCmd, workerCmd)
}

// run blocks until ctx ends or one of the components fails.
func run(ctx context.Context, withHTTP, consume bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if !withHTTP && cfg.Queue.Driver != "rabbitmq" {
		return errors.New("worker needs queue.driver=rabbitmq")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.close()

	a.workers.Start(ctx)
	defer a.workers.Stop()
	defer a.jobs.Close()

	var deliveries <-chan amqp.Delivery
	if consume && a.rabbit != nil {
		host, _ := os.Hostname()
		deliveries, err = a.rabbit.Consume("coldmail-" + host)
		if err != nil {
			return fmt.Errorf("consume %s: %w", a.rabbit.Queue, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if withHTTP {
		if n, err := a.jobs.ResumeActive(gctx); err != nil {
			logger.Error().Err(err).Msg("resume active jobs")
		} else if n > 0 {
			logger.Info().Int("jobs", n).Msg("resumed active jobs")
		}

		port := cfg.HTTP.Port
		if servePort > 0 {
			port = servePort
		}
		srv := api.NewServer(
			a.files, a.jobs, a.export, a.single,
			api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, cfg.Auth.Disabled),
			a.limiter,
			api.Options{
				CORSOrigin:     cfg.HTTP.CORSOrigin,
				RequestTimeout: cfg.HTTP.RequestTimeout,
				MaxUploadBytes: cfg.Upload.MaxBytes,
				SingleLimit:    cfg.Single.RateLimit,
				SingleWindow:   cfg.Single.RateWindow,
			},
			logger,
		)
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", httpSrv.Addr).Msg("http server listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
	}

	stale := sched.NewStaleWorker(cfg.Worker.StaleInterval, cfg.Worker.StaleAfter, a.jobs, logger)
	g.Go(func() error { return ignoreCanceled(stale.Run(gctx)) })
	g.Go(func() error {
		observePool(gctx, a.db)
		return nil
	})

	if deliveries != nil {
		consumer := queue.NewConsumer(a.workers, a.processor, logger)
		g.Go(func() error { return ignoreCanceled(consumer.Run(gctx, deliveries)) })
	}

	err = g.Wait()
	logger.Info().Msg("shutdown complete")
	return err
}

func observePool(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.ObservePool(pool.Stat())
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
