package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/config"
	"coldmail-copywriter/internal/copywriter"
	"coldmail-copywriter/internal/domain/ports/adapter"
	"coldmail-copywriter/internal/infra/adapters/ai"
	"coldmail-copywriter/internal/infra/adapters/scrape"
	"coldmail-copywriter/internal/infra/db/postgres"
	"coldmail-copywriter/internal/infra/logging"
	"coldmail-copywriter/internal/infra/queue"
	red "coldmail-copywriter/internal/infra/redis"
	"coldmail-copywriter/internal/infra/worker"
	"coldmail-copywriter/internal/usecase"
)

// app holds every long-lived dependency a command may need.
type app struct {
	cfg *config.Config
	log *zerolog.Logger

	db      *pgxpool.Pool
	redis   *red.Client
	browser *scrape.BrowserFetcher
	rabbit  *queue.RabbitMQ

	workers   *worker.Pool
	processor *worker.ProspectProcessor
	limiter   *red.RateLimiter

	files  usecase.FileUseCase
	jobs   usecase.JobUseCase
	export usecase.ExportUseCase
	single usecase.SingleUseCase
}

func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile, devMode)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}

// newApp connects to every backing service and builds the use cases.
// Workers are not started; commands that process rows call workers.Start.
func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	// ---- Postgres ----
	pool, err := postgres.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		return fail(fmt.Errorf("postgres: %w", err))
	}
	a.db = pool
	tm := postgres.NewTxManager(pool)
	fileRepo := postgres.NewFileRepo(pool)
	jobRepo := postgres.NewJobRepo(pool)
	prospectRepo := postgres.NewProspectRepo(pool)
	logger.Info().Msg("postgres connected")

	// ---- Redis ----
	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fail(fmt.Errorf("redis: %w", err))
	}
	a.redis = rc
	a.limiter = red.NewRateLimiter(rc)

	// ---- AI ----
	provider, model, err := newAIProvider(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	client := ai.NewCompletionClient(ai.NewLimitedAI(provider, cfg.AI.ConcurrentLimit), ai.CompletionOptions{
		Model:       model,
		MaxAttempts: cfg.AI.MaxAttempts,
		BaseDelay:   cfg.AI.BaseDelay,
		MaxDelay:    cfg.AI.MaxDelay,
		Timeout:     cfg.AI.Timeout,
	}, logger)
	logger.Info().Str("provider", cfg.AI.Provider).Str("model", model).Msg("AI adapter ready")

	// ---- Scraper ----
	var browser scrape.Fetcher
	if cfg.Scrape.Browser {
		a.browser = scrape.NewBrowserFetcher(cfg.Scrape.BrowserBin, logger)
		browser = a.browser
	}
	scraper := red.NewScrapeCacheDecorator(scrape.NewScraper(scrape.Options{
		Concurrency:     cfg.Scrape.Concurrency,
		Timeout:         cfg.Scrape.Timeout,
		MaxChars:        cfg.Scrape.MaxChars,
		ProxyURL:        cfg.Scrape.ProxyURL,
		RotationMinutes: cfg.Scrape.ProxyRotationMinutes,
		ProxyMaxRetries: cfg.Scrape.ProxyMaxRetries,
		RetryDelay:      time.Second,
		PerHostRPS:      cfg.Scrape.PerHostRPS,
	}, browser, scrape.NewHTTPFetcher(cfg.Scrape.Timeout), logger), rc, cfg.Scrape.CacheTTL, logger)

	// ---- Workers ----
	a.workers = worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, logger)
	a.processor = worker.NewProspectProcessor(
		prospectRepo, jobRepo, tm, scraper,
		copywriter.NewGenerator(client, logger),
		red.NewLocker(rc),
		worker.ProcessorOptions{
			LockTTL:                 cfg.Worker.LockTTL,
			LogActivityContext:      cfg.Log.ActivityContext,
			ActivityContextMaxChars: cfg.Log.ActivityContextMaxChars,
			LogPrompt:               cfg.Log.Prompt,
			PromptMaxChars:          cfg.Log.PromptMaxChars,
		},
		logger,
	)

	var dispatcher adapter.RowDispatcher = worker.NewPoolDispatcher(a.workers, a.processor)
	if cfg.Queue.Driver == "rabbitmq" {
		mq, err := queue.NewRabbitMQ(cfg.Queue.RabbitURL, cfg.Queue.RabbitQueue, cfg.Queue.Prefetch)
		if err != nil {
			return fail(err)
		}
		a.rabbit = mq
		dispatcher = queue.NewRabbitDispatcher(mq.Ch, mq.Queue)
		logger.Info().Str("queue", mq.Queue).Msg("rows dispatched through rabbitmq")
	}

	// ---- Use cases ----
	a.files = usecase.NewFileUseCase(fileRepo, cfg.Upload.Dir, cfg.Upload.MaxBytes, logger)
	a.jobs = usecase.NewJobUseCase(fileRepo, jobRepo, prospectRepo, tm, dispatcher, logger)
	a.export = usecase.NewExportUseCase(fileRepo, jobRepo, prospectRepo, logger)
	a.single = usecase.NewSingleUseCase(scraper, client, copywriter.Sender{
		Name:    cfg.Single.Sender.Name,
		Title:   cfg.Single.Sender.Title,
		Company: cfg.Single.Sender.Company,
	}, logger)
	return a, nil
}

// newAIProvider registers every provider that has a key and routes the
// configured one by default. It returns the model completions should ask for.
func newAIProvider(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, string, error) {
	byProvider := map[string]adapter.AIServiceAdapter{
		"noop": ai.NewNoopAIAdapter(logger),
	}
	modelToProvider := map[string]string{}

	if cfg.AI.APIKey != "" {
		oa, err := ai.NewOpenAIAdapter(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Temperature)
		if err != nil {
			return nil, "", fmt.Errorf("openai adapter: %w", err)
		}
		byProvider["openai"] = oa
		modelToProvider[cfg.AI.Model] = "openai"
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := ai.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiModel, cfg.AI.Temperature)
		if err != nil {
			return nil, "", fmt.Errorf("gemini adapter: %w", err)
		}
		byProvider["gemini"] = ga
		modelToProvider[cfg.AI.GeminiModel] = "gemini"
	}

	model := cfg.AI.Model
	if cfg.AI.Provider == "gemini" {
		model = cfg.AI.GeminiModel
	}
	modelToProvider[model] = cfg.AI.Provider
	return ai.NewMultiAIAdapter(cfg.AI.Provider, byProvider, modelToProvider), model, nil
}

// close releases whatever newApp managed to open.
func (a *app) close() {
	if a.jobs != nil {
		a.jobs.Close()
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.log.Warn().Err(err).Msg("rabbitmq close")
		}
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.log.Warn().Err(err).Msg("browser close")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
