package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	apimiddleware "github.com/helixml/vidchat/infrastructure/api/middleware"
)

// Server owns the root router and the net/http server listening on addr.
type Server struct {
	addr   string
	router chi.Router
	logger *slog.Logger
	http   *http.Server
}

// NewServer builds a router with request IDs, correlation IDs, access logs,
// panic recovery and CORS for corsOrigins. Handlers are mounted on Router.
func NewServer(addr string, corsOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	// No global Timeout: it buffers the ResponseWriter and breaks streaming.
	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		apimiddleware.CorrelationID,
		apimiddleware.Logging(logger),
		chimiddleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", apimiddleware.CorrelationIDHeader, "Mcp-Session-Id"},
			ExposedHeaders:   []string{apimiddleware.CorrelationIDHeader, "Mcp-Session-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	return &Server{addr: addr, router: r, logger: logger}
}

// Router returns the root router.
func (s *Server) Router() chi.Router { return s.router }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Start listens until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Answers stream for as long as the model generates.
		WriteTimeout: 0,
	}

	s.logger.Info("listening", slog.String("addr", s.addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}
