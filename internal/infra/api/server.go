// Package api exposes the upload, job and single copy flows over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/usecase"
)

// RateLimiter is satisfied by the redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	CORSOrigin     string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	SingleLimit    int
	SingleWindow   time.Duration
}

type Server struct {
	files   usecase.FileUseCase
	jobs    usecase.JobUseCase
	export  usecase.ExportUseCase
	single  usecase.SingleUseCase
	auth    *Authenticator
	limiter RateLimiter
	opts    Options
	log     *zerolog.Logger
}

// NewServer builds the HTTP layer. limiter may be nil, which turns single copy rate limiting off.
func NewServer(
	files usecase.FileUseCase,
	jobs usecase.JobUseCase,
	export usecase.ExportUseCase,
	single usecase.SingleUseCase,
	auth *Authenticator,
	limiter RateLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	if opts.SingleLimit <= 0 {
		opts.SingleLimit = 20
	}
	if opts.SingleWindow <= 0 {
		opts.SingleWindow = time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	compLog := logger.With().Str("component", "API").Logger()
	return &Server{
		files:   files,
		jobs:    jobs,
		export:  export,
		single:  single,
		auth:    auth,
		limiter: limiter,
		opts:    opts,
		log:     &compLog,
	}
}

// Router mounts every route on a fresh chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins(s.opts.CORSOrigin),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout), s.auth.Middleware)

		r.Post("/files", s.uploadFile)
		r.Get("/files/sample", s.sampleFile)
		r.Get("/files/{id}", s.getFile)

		r.Post("/jobs", s.startJob)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Delete("/jobs/{id}", s.deleteJob)
		r.Post("/jobs/{id}/pause", s.pauseJob)
		r.Post("/jobs/{id}/resume", s.resumeJob)
		r.Get("/jobs/{id}/rows", s.jobRows)
		r.Get("/jobs/{id}/download", s.downloadJob)

		r.Post("/single", s.generateSingle)
	})
	return r
}

func origins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
