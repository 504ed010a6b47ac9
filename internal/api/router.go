package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/ragvault/internal/api/handlers"
	"github.com/nikhilbhutani/ragvault/internal/api/middleware"
	"github.com/nikhilbhutani/ragvault/internal/config"
	"github.com/nikhilbhutani/ragvault/internal/rag"
)

// Deps are the services the HTTP surface is built on. DB, Redis and Jobs may
// be nil when the corresponding backend is not configured.
type Deps struct {
	RAG    *rag.Service
	Jobs   handlers.JobLookup
	DB     handlers.Pinger
	Redis  handlers.Pinger
	Logger *slog.Logger
}

type Router struct {
	mux     *chi.Mux
	cfg     config.ServerConfig
	deps    Deps
	limiter *middleware.RateLimiter
}

func NewRouter(cfg config.ServerConfig, deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	logger := rt.deps.Logger

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORSOrigins))

	if rt.cfg.RateLimit > 0 {
		rt.limiter = middleware.NewRateLimiter(rt.cfg.RateLimit, rt.cfg.RateBurst)
		r.Use(rt.limiter.Limit)
	}

	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis, rt.deps.RAG)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1/rag", func(r chi.Router) {
		docH := handlers.NewDocumentHandler(rt.deps.RAG, rt.cfg.MaxUploadBytes, logger)
		searchH := handlers.NewSearchHandler(rt.deps.RAG, logger)
		r.Get("/search", searchH.Search)
		r.Post("/search", searchH.Search)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/search", searchH.Search)
			r.Post("/", docH.Upload)
			r.Post("/upload", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Put("/{id}", docH.Replace)
			r.Get("/{id}/chunks", docH.Chunks)
			r.Delete("/{id}", docH.Delete)
		})

		if rt.deps.Jobs != nil {
			jobH := handlers.NewJobHandler(rt.deps.Jobs, logger)
			r.Get("/jobs/{id}", jobH.Get)
		}
	})

	return r
}

// Close stops background work started by Setup.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Stop()
	}
}
