package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonny/switchyard/internal/adapter/inbound/httpapi/middleware"
)

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// AdminToken guards /api/v1. Empty leaves the API open.
	AdminToken string
	// RateLimit is requests per minute per client IP. Zero disables limiting.
	RateLimit  int
	TrustProxy bool
	MaxBody    int64
}

// Server wraps the admin HTTP server with graceful shutdown support.
type Server struct {
	cfg     ServerConfig
	handler *Handler
	logger  *slog.Logger
	srv     *http.Server
}

func NewServer(cfg ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// SetupRoutes builds the http.Handler with all middleware applied.
//
//	GET  /health             liveness, unauthenticated
//	     /api/v1/...         admin API, see Handler.Register
func (s *Server) SetupRoutes() http.Handler {
	api := http.NewServeMux()
	s.handler.Register(api)

	var guarded http.Handler = api
	guarded = middleware.BearerAuth(s.cfg.AdminToken)(guarded)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/api/", guarded)

	// Outermost first: SecurityHeaders -> Logging -> RateLimit -> MaxBody
	var h http.Handler = mux
	h = middleware.MaxBody(s.cfg.MaxBody)(h)
	h = middleware.RateLimit(s.cfg.RateLimit, s.cfg.TrustProxy)(h)
	h = middleware.Logging(s.logger)(h)
	h = middleware.SecurityHeaders(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.SetupRoutes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin api listening", "port", s.cfg.Port, "auth", s.cfg.AdminToken != "")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin api shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
