package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/helixml/vidchat"
	apimiddleware "github.com/helixml/vidchat/infrastructure/api/middleware"
	v1 "github.com/helixml/vidchat/infrastructure/api/v1"
	mcpinternal "github.com/helixml/vidchat/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// requestTimeout bounds the non-streaming chatroom endpoints. Ingesting a
// long video fetches, chunks and embeds its whole transcript.
const requestTimeout = 5 * time.Minute

// APIServer provides an HTTP API backed by a vidchat Client.
type APIServer struct {
	client       *vidchat.Client
	corsOrigins  []string
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given vidchat Client.
// Browsers may call it cross-origin from corsOrigins.
func NewAPIServer(client *vidchat.Client, corsOrigins []string, version string) *APIServer {
	return &APIServer{
		client:      client,
		corsOrigins: corsOrigins,
		version:     version,
		logger:      client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all API routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	chatrooms := a.client.Chatrooms
	chatroomsRouter := v1.NewChatroomsRouter(chatrooms, a.logger)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	router.Route("/api/chatrooms", func(r chi.Router) {
		routes := chatroomsRouter.Routes()

		// Query answers stream for as long as the model generates, so only
		// the other endpoints get a timeout.
		r.Post("/{id}/query", chatroomsRouter.Query)
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(requestTimeout))
			r.Mount("/", routes)
		})
	})

	router.Mount("/docs", NewDocsRouter("/docs/swagger.json").Routes())

	// MCP uses streaming responses and manages its own session state via
	// response headers, so it gets no timeout middleware either.
	mcpSrv := mcpinternal.NewServer(chatrooms, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.corsOrigins, a.logger)
	a.server = server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
