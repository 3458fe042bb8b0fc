package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/taskboard/internal/api/v1"
	"github.com/gosuda/taskboard/internal/api/ws"
	"github.com/gosuda/taskboard/internal/config"
	"github.com/gosuda/taskboard/internal/server/middleware"
)

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Auth     v1.AuthService
	Tasks    v1.TaskService
	Presence v1.PresenceReader
	Hub      *ws.Hub
	// Ping reports backing store health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	hub        *ws.Hub
}

// New creates a Server with all routes wired. ctx bounds the background
// sweepers of the rate limiters.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		hub:    deps.Hub,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	cookie := v1.CookieOptions{
		Secure: cfg.JWT.CookieSecure,
		MaxAge: cfg.JWT.AccessTTL,
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated: register, login, logout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
			registerAuthRoutes(newAPI(r, "Taskboard Auth API"), deps.Auth, cookie)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret))
			r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
			registerAPIRoutes(newAPI(r, "Taskboard API"), deps)
		})
	})

	// The push channel identifies users through its handshake parameter.
	router.Route("/ws", func(r chi.Router) {
		registerWSRoutes(r, deps.Hub)
	})

	router.Get("/healthz", healthHandler(deps.Ping))

	// Must stay last so API and websocket routes take priority.
	if dir := cfg.Server.StaticDir; dir != "" {
		router.NotFound(spaFileServer(os.DirFS(dir)).ServeHTTP)
		log.Info().Str("dir", dir).Msg("serving web client")
	}

	return s
}

func newAPI(r chi.Router, title string) huma.API {
	apiConfig := huma.DefaultConfig(title, "1.0.0")
	apiConfig.Servers = []*huma.Server{
		{URL: "/api/v1"},
	}
	return humachi.New(r, apiConfig)
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown closes every push-channel connection, then gracefully stops the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
