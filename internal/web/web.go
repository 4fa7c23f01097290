// Package web serves the browser client and the document API over
// gofiber. The server is a thin collaborator: it resolves the request's
// credential (session-stored or statically provisioned), builds a
// document store around it, and maps domain errors onto HTTP statuses.
// All document semantics live in the docstore and auth packages.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"golang.org/x/oauth2"

	"github.com/migralog/migralog/internal/config"
	"github.com/migralog/migralog/internal/docstore"
	"github.com/migralog/migralog/internal/drive"
	"github.com/migralog/migralog/internal/gate"
	"github.com/migralog/migralog/internal/session"
)

// Options carries the server's collaborators. Interactive deployments set
// Sessions, Gate and OAuth and leave Fixed nil: the store is then built
// per request around the session's credential. Static deployments (env or
// file credential source, or the file backend) set Fixed, and optionally
// Remote so the status route can inspect the remote store.
type Options struct {
	Sessions *session.Store
	Gate     *gate.Gate
	OAuth    *oauth2.Config
	Locator  *docstore.Locator
	Fixed    docstore.Store
	Remote   *drive.Client
	HTTP     *http.Client
	Logger   *slog.Logger
}

// Server is the HTTP boundary of the application.
type Server struct {
	cfg      *config.Config
	app      *fiber.App
	sessions *session.Store
	gate     *gate.Gate
	oauth    *oauth2.Config
	locator  *docstore.Locator
	fixed    docstore.Store
	remote   *drive.Client
	http     *http.Client
	logger   *slog.Logger
}

// New builds the server and registers its routes.
func New(cfg *config.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 120 * time.Second}
	}

	s := &Server{
		cfg:      cfg,
		sessions: opts.Sessions,
		gate:     opts.Gate,
		oauth:    opts.OAuth,
		locator:  opts.Locator,
		fixed:    opts.Fixed,
		remote:   opts.Remote,
		http:     opts.HTTP,
		logger:   opts.Logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "migralog",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// Questionnaire PDFs come through as multipart bodies.
		BodyLimit: 32 * 1024 * 1024,
	})

	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New())

	s.app.Get("/healthz", s.handleHealthz)

	s.app.Get("/", s.handleIndex)
	s.app.Use("/static", static.New(s.cfg.Server.StaticDir))

	if s.interactive() {
		s.app.Get("/auth/login", s.handleLogin)
		s.app.Get("/auth/callback", s.handleCallback)
		s.app.Get("/auth/logout", s.handleLogout)
	}

	api := s.app.Group("/api")
	api.Get("/data", s.handleGetData)
	api.Post("/data", s.handlePostData)
	api.Post("/reports", s.handleUploadReport)
	api.Get("/status", s.handleStatus)
}

// interactive reports whether this deployment runs the per-session
// consent flow. Static deployments gate their fixed credential once at
// startup and have no auth routes.
func (s *Server) interactive() bool {
	return s.fixed == nil
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("web server listening", slog.String("addr", s.cfg.Server.Listen))

	return s.app.Listen(s.cfg.Server.Listen, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}
