// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod

	// ActivityContext logs the activity summary of each row, capped at ActivityContextMaxChars.
	ActivityContext         bool `yaml:"activity_context"`
	ActivityContextMaxChars int  `yaml:"activity_context_max_chars"`
	Prompt                  bool `yaml:"prompt"`
	PromptMaxChars          int  `yaml:"prompt_max_chars"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai (any OpenAI-compatible endpoint) | gemini | noop
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	GeminiKey       string        `yaml:"gemini_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	Timeout         time.Duration `yaml:"timeout"`      // per attempt
	MaxAttempts     uint          `yaml:"max_attempts"` // including the first one
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	Temperature     float64       `yaml:"temperature"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type WorkerConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	QueueSize     int           `yaml:"queue_size"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	StaleInterval time.Duration `yaml:"stale_interval"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
}

type ScrapeConfig struct {
	Concurrency          int           `yaml:"concurrency"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxChars             int           `yaml:"max_chars"`
	Browser              bool          `yaml:"browser"` // false: HTTP fetch only
	BrowserBin           string        `yaml:"browser_bin"`
	ProxyURL             string        `yaml:"proxy_url"`
	ProxyRotationMinutes int           `yaml:"proxy_rotation_minutes"`
	ProxyMaxRetries      int           `yaml:"proxy_max_retries"`
	PerHostRPS           float64       `yaml:"per_host_rps"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
}

type QueueConfig struct {
	Driver      string `yaml:"driver"` // memory | rabbitmq
	RabbitURL   string `yaml:"rabbit_url"`
	RabbitQueue string `yaml:"rabbit_queue"`
	Prefetch    int    `yaml:"prefetch"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Disabled  bool          `yaml:"disabled"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// SenderConfig is the fixed identity used by the single copy flow.
type SenderConfig struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Company string `yaml:"company"`
}

type SingleConfig struct {
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	Sender     SenderConfig  `yaml:"sender"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Worker   WorkerConfig   `yaml:"worker"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Queue    QueueConfig    `yaml:"queue"`
	Auth     AuthConfig     `yaml:"auth"`
	Upload   UploadConfig   `yaml:"upload"`
	Single   SingleConfig   `yaml:"single"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, loads .env when present, applies
// environment overrides and defaults, then validates. A missing file is
// allowed so the service can run from the environment alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.ActivityContextMaxChars <= 0 {
		cfg.Log.ActivityContextMaxChars = 2000
	}
	if cfg.Log.PromptMaxChars <= 0 {
		cfg.Log.PromptMaxChars = 12000
	}

	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 3001
	}
	if cfg.HTTP.CORSOrigin == "" {
		cfg.HTTP.CORSOrigin = "http://localhost:5173"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 2 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.deepseek.com"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "deepseek-chat"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 45 * time.Second
	}
	if cfg.AI.MaxAttempts == 0 {
		cfg.AI.MaxAttempts = 4
	}
	if cfg.AI.BaseDelay <= 0 {
		cfg.AI.BaseDelay = 500 * time.Millisecond
	}
	if cfg.AI.MaxDelay <= 0 {
		cfg.AI.MaxDelay = 8 * time.Second
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 3
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = 256
	}
	if cfg.Worker.StaleAfter <= 0 {
		cfg.Worker.StaleAfter = 10 * time.Minute
	}
	if cfg.Worker.StaleInterval <= 0 {
		cfg.Worker.StaleInterval = time.Minute
	}
	// a row lock must outlive the row's stale window, else a second consumer
	// can claim a row that is still running
	if cfg.Worker.LockTTL < cfg.Worker.StaleAfter {
		cfg.Worker.LockTTL = cfg.Worker.StaleAfter
	}

	if cfg.Scrape.Concurrency <= 0 {
		cfg.Scrape.Concurrency = 5
	}
	if cfg.Scrape.Timeout <= 0 {
		cfg.Scrape.Timeout = 30 * time.Second
	}
	if cfg.Scrape.MaxChars <= 0 {
		cfg.Scrape.MaxChars = 6000
	}
	if cfg.Scrape.ProxyRotationMinutes <= 0 {
		cfg.Scrape.ProxyRotationMinutes = 5
	}
	if cfg.Scrape.PerHostRPS <= 0 {
		cfg.Scrape.PerHostRPS = 1
	}
	if cfg.Scrape.CacheTTL <= 0 {
		cfg.Scrape.CacheTTL = 6 * time.Hour
	}

	if cfg.Queue.Driver == "" {
		cfg.Queue.Driver = "memory"
	}
	if cfg.Queue.RabbitQueue == "" {
		cfg.Queue.RabbitQueue = "coldmail.rows"
	}
	if cfg.Queue.Prefetch <= 0 {
		cfg.Queue.Prefetch = cfg.Worker.Concurrency
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "coldmail-copywriter"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = "uploads"
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 10 << 20
	}

	if cfg.Single.RateLimit <= 0 {
		cfg.Single.RateLimit = 20
	}
	if cfg.Single.RateWindow <= 0 {
		cfg.Single.RateWindow = time.Minute
	}
}

// Validate performs the minimal checks needed to start.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	switch c.AI.Provider {
	case "openai":
		if c.AI.APIKey == "" {
			return errors.New("ai.api_key is required for the openai provider")
		}
	case "gemini":
		if c.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required for the gemini provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	switch c.Queue.Driver {
	case "memory":
	case "rabbitmq":
		if c.Queue.RabbitURL == "" {
			return errors.New("queue.rabbit_url is required for the rabbitmq driver")
		}
	default:
		return fmt.Errorf("unknown queue.driver %q", c.Queue.Driver)
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required unless auth.disabled is set")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	str := func(dst *string, names ...string) {
		for _, n := range names {
			if v := strings.TrimSpace(os.Getenv(n)); v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	num := func(dst *int, name string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("env %s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	millis := func(dst *time.Duration, name string) {
		var ms int
		num(&ms, name)
		if ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	flag := func(dst *bool, name string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
		case "1", "true", "yes", "y", "on":
			*dst = true
		case "0", "false", "no", "n", "off":
			*dst = false
		}
	}

	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.Redis.URL, "REDIS_URL")
	str(&cfg.Redis.Password, "REDIS_PASSWORD")
	num(&cfg.HTTP.Port, "PORT")
	str(&cfg.HTTP.CORSOrigin, "CORS_ORIGIN")

	str(&cfg.AI.Provider, "AI_PROVIDER")
	str(&cfg.AI.APIKey, "DEEPSEEK_API_KEY", "DEEPSEEK_KEY", "OPENAI_API_KEY")
	str(&cfg.AI.BaseURL, "DEEPSEEK_API_URL", "OPENAI_BASE_URL")
	str(&cfg.AI.Model, "DEEPSEEK_MODEL", "OPENAI_MODEL")
	str(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	millis(&cfg.AI.Timeout, "AI_TIMEOUT_MS")

	num(&cfg.Worker.Concurrency, "WORKER_CONCURRENCY")
	num(&cfg.Scrape.Concurrency, "SCRAPE_CONCURRENCY")
	millis(&cfg.Scrape.Timeout, "SCRAPE_TIMEOUT_MS")
	num(&cfg.Scrape.MaxChars, "MAX_SCRAPED_CHARS")
	str(&cfg.Scrape.ProxyURL, "SCRAPE_PROXY_URL")
	num(&cfg.Scrape.ProxyRotationMinutes, "SCRAPE_PROXY_ROTATION_MINUTES")
	num(&cfg.Scrape.ProxyMaxRetries, "SCRAPE_PROXY_MAX_RETRIES")

	str(&cfg.Queue.Driver, "QUEUE_DRIVER")
	str(&cfg.Queue.RabbitURL, "RABBITMQ_URL")
	str(&cfg.Auth.JWTSecret, "JWT_SECRET")
	str(&cfg.Upload.Dir, "UPLOAD_DIR")

	var maxMB int
	num(&maxMB, "MAX_UPLOAD_MB")
	if maxMB > 0 {
		cfg.Upload.MaxBytes = int64(maxMB) << 20
	}

	flag(&cfg.Log.ActivityContext, "LOG_ACTIVITY_CONTEXT")
	num(&cfg.Log.ActivityContextMaxChars, "LOG_ACTIVITY_CONTEXT_MAX_CHARS")
	flag(&cfg.Log.Prompt, "LOG_BULK_PROMPT")
	num(&cfg.Log.PromptMaxChars, "LOG_BULK_PROMPT_MAX_CHARS")

	return errors.Join(errs...)
}
