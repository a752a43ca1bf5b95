// Package server accepts download commands over HTTP, typically from a Slack
// slash command, and runs them on a bounded worker pool.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/mfbot-download/internal/action"
	"github.com/leapstack-labs/mfbot-download/internal/chat"
	"github.com/leapstack-labs/mfbot-download/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Downloads runs bot commands.
type Downloads interface {
	Download(ctx context.Context, cmd action.Command) (*core.Download, error)
	HowTo(ctx context.Context, thread chat.Thread, createThread bool) error
}

// Config holds configuration for the server.
type Config struct {
	Downloads Downloads
	// Store backs the /downloads endpoints. Optional.
	Store core.Store
	// SigningSecret verifies Slack requests. Empty disables verification.
	SigningSecret string
	Addr          string
	// Workers bounds concurrent commands. Defaults to 4.
	Workers int
	// CommandTimeout bounds a single command. Defaults to 10 minutes.
	CommandTimeout time.Duration
	// RateLimit is commands per second per Slack user. Zero disables it.
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

// Server is the command intake server.
type Server struct {
	downloads     Downloads
	store         core.Store
	signingSecret string
	addr          string
	timeout       time.Duration
	limits        *userLimits
	logger        *slog.Logger

	pool   *errgroup.Group
	events *events

	mu      sync.RWMutex
	baseCtx context.Context
}

// NewServer creates a server. It does not start listening.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Downloads == nil {
		return nil, errors.New("server requires a downloader")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	pool := &errgroup.Group{}
	pool.SetLimit(workers)

	return &Server{
		downloads:     cfg.Downloads,
		store:         cfg.Store,
		signingSecret: cfg.SigningSecret,
		addr:          cfg.Addr,
		timeout:       timeout,
		limits:        newUserLimits(cfg.RateLimit, cfg.RateBurst),
		logger:        logger,
		pool:          pool,
		events:        newEvents(),
		baseCtx:       context.Background(),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(s.logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Post("/slack/commands", s.handleSlashCommand)
	r.Route("/downloads", func(r chi.Router) {
		r.Get("/", s.handleListDownloads)
		r.Get("/events", s.handleEvents)
		r.Get("/{id}", s.handleGetDownload)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled.
// Commands still running at shutdown keep their own deadline and are waited
// for before Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting command server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	s.baseCtx = context.WithoutCancel(egctx)
	s.mu.Unlock()

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down command server...")
		err := srv.Shutdown(shutdownCtx)
		_ = s.Wait()
		return err
	})

	return eg.Wait()
}

// Wait blocks until every accepted command has finished.
func (s *Server) Wait() error {
	return s.pool.Wait()
}

func (s *Server) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// submit queues a command on the pool. It reports false when every worker
// is busy.
func (s *Server) submit(name string, fn func(ctx context.Context) error) bool {
	base := s.context()
	return s.pool.TryGo(func() error {
		ctx, cancel := context.WithTimeout(base, s.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("command failed", "command", name, "error", err)
		}
		return nil
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
