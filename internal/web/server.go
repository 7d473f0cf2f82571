// Package web serves content over HTTP: JSON for posts and search, RSS for
// the feed and XML for the sitemap.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/postvault/internal/admin"
	"github.com/dshills/postvault/internal/config"
	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/searcher"
	"github.com/dshills/postvault/internal/storage"
)

// Options wires a Server to the layers it serves
type Options struct {
	Repository *content.Repository
	Searcher   *searcher.Searcher
	Switcher   *admin.Switcher
	Handle     *storage.Handle

	Site       config.Site
	AdminToken string // protects the admin routes when set
	Logger     *slog.Logger
}

// Server holds the HTTP handlers
type Server struct {
	repo     *content.Repository
	search   *searcher.Searcher
	switcher *admin.Switcher
	handle   *storage.Handle

	site       config.Site
	adminToken string
	logger     *slog.Logger
}

// New creates a Server
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		repo:       opts.Repository,
		search:     opts.Searcher,
		switcher:   opts.Switcher,
		handle:     opts.Handle,
		site:       opts.Site,
		adminToken: opts.AdminToken,
		logger:     opts.Logger,
	}
}

// Routes returns the router for every endpoint
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/posts", s.handlePosts)
	r.Get("/post/{id}", s.handlePost)
	r.Get("/about", s.handleSpecial("about"))
	r.Get("/contact", s.handleSpecial("contact"))
	r.Get("/search", s.handleSearch)
	r.Get("/feed", s.handleFeed)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/images/{filename}", s.handleImage)
	r.Get("/healthz", s.handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/switch_db/{filename}", s.handleSwitch)
	})

	return r
}

// requestLogger logs one line per request once it has been served
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
