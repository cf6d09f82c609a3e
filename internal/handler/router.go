package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RouterOptions carries the optional pieces of the router.
type RouterOptions struct {
	// Limiter throttles the public claim endpoint when set.
	Limiter *RateLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ping backs /health when set.
	Ping func(context.Context) error
	// StaticDir is served at / when set.
	StaticDir string
	Logger    logrus.FieldLogger
}

// NewRouter builds the HTTP routes for the lineup API.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = h.log
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)                    // display clients poll cross-origin

	r.Get("/health", HealthCheck(opts.Ping))
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	// Public routes: sign-up and polling displays.
	r.Route("/events/{id}", func(r chi.Router) {
		r.Get("/", h.GetEvent)
		r.Get("/lineup", h.Lineup)
		r.With(limit(opts.Limiter)).Post("/claim", h.Claim)
	})

	// Admin routes. Authentication is handled in front of this service.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/events", h.CreateEvent)
		r.Get("/events", h.ListEvents)
		r.Get("/events/{id}/entries", h.ListEntries)
		r.Put("/events/{id}/entries/{position}", h.UpsertEntry)
		r.Post("/events/{id}/reorder", h.Reorder)
		r.Patch("/entries/{entryID}", h.UpdateEntry)
		r.Delete("/entries/{entryID}", h.DeleteEntry)
	})

	if opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}
	return r
}

func limit(l *RateLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware
}
