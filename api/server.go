package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/core"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

// Engine is what the HTTP surface needs from the relay.
type Engine interface {
	Dispatch(ctx context.Context, msg types.Message) int
	State() core.State
	Pending() int
}

type Options struct {
	Port int
	// WebhookSecret guards /webhook/{secret}; empty disables the endpoint.
	WebhookSecret string
	// AdminToken enables the bearer-guarded /admin routes.
	AdminToken string
	Store      *database.Store
	Engine     Engine
}

type Server struct {
	opts   Options
	logger *log.Logger
	srv    *http.Server
}

func New(ctx context.Context, opts Options) *Server {
	s := &Server{opts: opts, logger: log.FromContext(ctx).WithPrefix("api")}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	return s
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.WebhookSecret != "" {
		mux.HandleFunc("POST /webhook/{secret}", s.handleWebhook)
	}
	if s.opts.AdminToken != "" {
		admin := http.NewServeMux()
		admin.HandleFunc("GET /admin/overview", s.handleOverview)
		admin.HandleFunc("GET /admin/jobs/{id}/stats", s.handleJobStats)
		mux.Handle("/admin/", authMiddleware(s.opts.AdminToken)(admin))
	}
	return loggingMiddleware(s.logger)(mux)
}

// Start listens in the background and shuts down when ctx is done.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.logger.Infof("Starting API server on port %d", s.opts.Port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("API server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorf("Failed to shutdown API server: %v", err)
		} else {
			s.logger.Info("API server stopped")
		}
	}()
}
